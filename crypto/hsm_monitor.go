// Package crypto provides a software DeviceKeystore fallback and a health
// monitor for device-bound keystore availability.
package crypto

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// KeystoreState represents the three operating states of a device keystore.
type KeystoreState int32

const (
	KeystoreStateNormal   KeystoreState = 0 // keystore reachable, seal/open works
	KeystoreStateReadOnly KeystoreState = 1 // keystore unreachable, new wraps disabled, open of existing blobs still attempted
	KeystoreStateFailed   KeystoreState = 2 // timeout exceeded, account operations must stop
)

func (s KeystoreState) String() string {
	switch s {
	case KeystoreStateNormal:
		return "NORMAL"
	case KeystoreStateReadOnly:
		return "READ_ONLY"
	case KeystoreStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// KeystoreMonitorConfig holds tunables loaded from env (see WORLDID_KEYSTORE_* vars).
type KeystoreMonitorConfig struct {
	HealthInterval  time.Duration // WORLDID_KEYSTORE_HEALTH_INTERVAL (default 10s)
	FailThreshold   int           // WORLDID_KEYSTORE_FAIL_THRESHOLD (default 3)
	FailoverTimeout time.Duration // WORLDID_KEYSTORE_FAILOVER_TIMEOUT (default 300s, 0=∞)
	AlertWebhook    string        // WORLDID_KEYSTORE_ALERT_WEBHOOK (optional)
}

// KeystoreMonitorConfigFromEnv reads config from environment variables with safe defaults.
func KeystoreMonitorConfigFromEnv() KeystoreMonitorConfig {
	cfg := KeystoreMonitorConfig{
		HealthInterval:  10 * time.Second,
		FailThreshold:   3,
		FailoverTimeout: 300 * time.Second,
	}
	if v := os.Getenv("WORLDID_KEYSTORE_HEALTH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HealthInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("WORLDID_KEYSTORE_FAIL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FailThreshold = n
		}
	}
	if v := os.Getenv("WORLDID_KEYSTORE_FAILOVER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FailoverTimeout = time.Duration(n) * time.Second
		}
	}
	cfg.AlertWebhook = os.Getenv("WORLDID_KEYSTORE_ALERT_WEBHOOK")
	return cfg
}

// HealthCheckFn is called to verify keystore reachability.
// In production: attempt a no-op seal/open round trip against the device.
// In tests: inject a mock.
type HealthCheckFn func() error

// KeystoreHealthMonitor runs the health check loop and drives the state machine.
type KeystoreHealthMonitor struct {
	cfg           KeystoreMonitorConfig
	check         HealthCheckFn
	state         atomic.Int32
	failCount     int
	readOnlySince time.Time
	mu            sync.Mutex
	onFailed      func() // called when entering FAILED (trigger account handle shutdown)
	logger        *slog.Logger
}

// NewKeystoreHealthMonitor creates a KeystoreHealthMonitor. onFailed is
// called once when the keystore transitions to FAILED state — use it to
// stop accepting new account operations.
func NewKeystoreHealthMonitor(cfg KeystoreMonitorConfig, check HealthCheckFn, onFailed func()) *KeystoreHealthMonitor {
	m := &KeystoreHealthMonitor{
		cfg:      cfg,
		check:    check,
		onFailed: onFailed,
		logger:   slog.Default(),
	}
	m.state.Store(int32(KeystoreStateNormal))
	return m
}

// State returns the current keystore state (safe for concurrent reads).
func (m *KeystoreHealthMonitor) State() KeystoreState {
	return KeystoreState(m.state.Load())
}

// CanWrap returns true only when the keystore is in NORMAL state. New wraps
// (account creation, key rewraps) must not proceed outside NORMAL.
func (m *KeystoreHealthMonitor) CanWrap() bool {
	return m.State() == KeystoreStateNormal
}

// CanOpen returns true unless the keystore has been declared FAILED.
// READ_ONLY still permits opening existing blobs — only FAILED stops all
// keystore operations.
func (m *KeystoreHealthMonitor) CanOpen() bool {
	return m.State() != KeystoreStateFailed
}

// Run starts the health check loop. Blocks until ctx is cancelled.
func (m *KeystoreHealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *KeystoreHealthMonitor) tick() {
	err := m.check()
	m.mu.Lock()
	defer m.mu.Unlock()

	current := KeystoreState(m.state.Load())

	if err == nil {
		if current != KeystoreStateNormal {
			m.logger.Info("keystore recovered", "from", current.String(), "to", "NORMAL")
			m.logStructured("keystore_state_change", current, KeystoreStateNormal, 0, "")
		}
		m.failCount = 0
		m.state.Store(int32(KeystoreStateNormal))
		return
	}

	m.failCount++
	m.logger.Warn("keystore health check failed",
		"fail_count", m.failCount,
		"threshold", m.cfg.FailThreshold,
		"error", err.Error(),
	)

	if current == KeystoreStateNormal && m.failCount >= m.cfg.FailThreshold {
		m.readOnlySince = time.Now()
		m.state.Store(int32(KeystoreStateReadOnly))
		m.logger.Warn("keystore unreachable — entering READ_ONLY mode. New key wraps disabled.",
			"fail_count", m.failCount,
		)
		m.logStructured("keystore_state_change", KeystoreStateNormal, KeystoreStateReadOnly, m.failCount, err.Error())
		m.sendAlert(KeystoreStateReadOnly, m.failCount)
		return
	}

	if current == KeystoreStateReadOnly && m.cfg.FailoverTimeout > 0 {
		if time.Since(m.readOnlySince) >= m.cfg.FailoverTimeout {
			m.state.Store(int32(KeystoreStateFailed))
			m.logger.Error("keystore timeout exceeded — account operations must stop.",
				"timeout", m.cfg.FailoverTimeout.String(),
			)
			m.logStructured("keystore_state_change", KeystoreStateReadOnly, KeystoreStateFailed, m.failCount, err.Error())
			m.sendAlert(KeystoreStateFailed, m.failCount)
			if m.onFailed != nil {
				go m.onFailed()
			}
		}
	}
}

type keystoreEvent struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	FailCount int    `json:"fail_count"`
	Reason    string `json:"reason,omitempty"`
}

func (m *KeystoreHealthMonitor) logStructured(event string, from, to KeystoreState, fc int, reason string) {
	ev := keystoreEvent{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Level:     levelFor(to),
		Event:     event,
		From:      from.String(),
		To:        to.String(),
		FailCount: fc,
		Reason:    reason,
	}
	b, _ := json.Marshal(ev)
	m.logger.Log(context.Background(), slogLevelFor(to), "keystore_state_change", "event", string(b))
}

func levelFor(s KeystoreState) string {
	switch s {
	case KeystoreStateFailed:
		return "ERROR"
	case KeystoreStateReadOnly:
		return "WARN"
	default:
		return "INFO"
	}
}

func slogLevelFor(s KeystoreState) slog.Level {
	switch s {
	case KeystoreStateFailed:
		return slog.LevelError
	case KeystoreStateReadOnly:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type alertPayload struct {
	Event     string `json:"event"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
	FailCount int    `json:"fail_count"`
}

func (m *KeystoreHealthMonitor) sendAlert(state KeystoreState, fc int) {
	if m.cfg.AlertWebhook == "" {
		return
	}
	payload := alertPayload{
		Event:     "keystore_failover",
		State:     state.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		FailCount: fc,
	}
	b, _ := json.Marshal(payload)
	go func() {
		resp, err := http.Post(m.cfg.AlertWebhook, "application/json", bytes.NewReader(b))
		if err != nil {
			m.logger.Warn("keystore alert webhook failed", "error", err.Error())
			return
		}
		resp.Body.Close()
	}()
}
