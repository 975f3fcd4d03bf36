package crypto

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestKeystoreHealthMonitor_NormalToReadOnly verifies that 3 consecutive
// failures cause a NORMAL→READ_ONLY transition.
func TestKeystoreHealthMonitor_NormalToReadOnly(t *testing.T) {
	var calls atomic.Int32
	check := func() error {
		calls.Add(1)
		return errors.New("keystore unavailable")
	}

	cfg := KeystoreMonitorConfig{
		HealthInterval:  1 * time.Millisecond,
		FailThreshold:   3,
		FailoverTimeout: 0, // disabled so we don't reach FAILED in this test
	}

	mon := NewKeystoreHealthMonitor(cfg, check, nil)
	if mon.State() != KeystoreStateNormal {
		t.Fatal("expected initial state NORMAL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go mon.Run(ctx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if mon.State() == KeystoreStateReadOnly {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if mon.State() != KeystoreStateReadOnly {
		t.Fatalf("expected READ_ONLY after %d failures, got %s", cfg.FailThreshold, mon.State())
	}
	if mon.CanWrap() {
		t.Error("CanWrap must be false in READ_ONLY state")
	}
}

// TestKeystoreHealthMonitor_Recovery verifies NORMAL→READ_ONLY→NORMAL recovery.
func TestKeystoreHealthMonitor_Recovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	check := func() error {
		if fail.Load() {
			return errors.New("keystore unavailable")
		}
		return nil
	}

	cfg := KeystoreMonitorConfig{
		HealthInterval:  2 * time.Millisecond,
		FailThreshold:   3,
		FailoverTimeout: 0,
	}

	mon := NewKeystoreHealthMonitor(cfg, check, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go mon.Run(ctx)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if mon.State() == KeystoreStateReadOnly {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if mon.State() != KeystoreStateReadOnly {
		t.Fatal("did not reach READ_ONLY")
	}

	fail.Store(false)

	deadline = time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if mon.State() == KeystoreStateNormal {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if mon.State() != KeystoreStateNormal {
		t.Fatalf("expected recovery to NORMAL, got %s", mon.State())
	}
	if !mon.CanWrap() {
		t.Error("CanWrap must be true in NORMAL state")
	}
}

// TestKeystoreHealthMonitor_FailoverTimeout verifies READ_ONLY→FAILED after timeout.
func TestKeystoreHealthMonitor_FailoverTimeout(t *testing.T) {
	failedCalled := make(chan struct{}, 1)

	check := func() error { return errors.New("keystore unavailable") }
	onFailed := func() { failedCalled <- struct{}{} }

	cfg := KeystoreMonitorConfig{
		HealthInterval:  2 * time.Millisecond,
		FailThreshold:   2,
		FailoverTimeout: 20 * time.Millisecond,
	}

	mon := NewKeystoreHealthMonitor(cfg, check, onFailed)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go mon.Run(ctx)

	select {
	case <-failedCalled:
	case <-time.After(1 * time.Second):
		t.Fatal("onFailed was not called within timeout")
	}

	if mon.State() != KeystoreStateFailed {
		t.Fatalf("expected FAILED state, got %s", mon.State())
	}
}

// TestKeystoreHealthMonitor_CanWrap verifies CanWrap semantics across states.
func TestKeystoreHealthMonitor_CanWrap(t *testing.T) {
	mon := &KeystoreHealthMonitor{}
	mon.state.Store(int32(KeystoreStateNormal))
	if !mon.CanWrap() {
		t.Error("NORMAL: CanWrap must be true")
	}
	mon.state.Store(int32(KeystoreStateReadOnly))
	if mon.CanWrap() {
		t.Error("READ_ONLY: CanWrap must be false")
	}
	mon.state.Store(int32(KeystoreStateFailed))
	if mon.CanWrap() {
		t.Error("FAILED: CanWrap must be false")
	}
}

// TestKeystoreHealthMonitor_CanOpen verifies CanOpen semantics across states:
// only FAILED disables opens, READ_ONLY still allows them.
func TestKeystoreHealthMonitor_CanOpen(t *testing.T) {
	mon := &KeystoreHealthMonitor{}
	mon.state.Store(int32(KeystoreStateNormal))
	if !mon.CanOpen() {
		t.Error("NORMAL: CanOpen must be true")
	}
	mon.state.Store(int32(KeystoreStateReadOnly))
	if !mon.CanOpen() {
		t.Error("READ_ONLY: CanOpen must be true")
	}
	mon.state.Store(int32(KeystoreStateFailed))
	if mon.CanOpen() {
		t.Error("FAILED: CanOpen must be false")
	}
}

type fakeDeviceKeystore struct {
	sealCalls int
	openCalls int
}

func (k *fakeDeviceKeystore) Seal(aad, plaintext []byte) ([]byte, error) {
	k.sealCalls++
	out := append([]byte(nil), plaintext...)
	return out, nil
}

func (k *fakeDeviceKeystore) Open(aad, ciphertext []byte) ([]byte, error) {
	k.openCalls++
	out := append([]byte(nil), ciphertext...)
	return out, nil
}

// TestMonitoredKeystore_SealGatedOnCanWrap verifies that Seal fails fast once
// the monitor leaves NORMAL, without ever reaching the inner keystore.
func TestMonitoredKeystore_SealGatedOnCanWrap(t *testing.T) {
	inner := &fakeDeviceKeystore{}
	mon := &KeystoreHealthMonitor{}
	mon.state.Store(int32(KeystoreStateNormal))
	mk := NewMonitoredKeystore(inner, mon)

	if _, err := mk.Seal(nil, []byte("pt")); err != nil {
		t.Fatalf("expected seal to succeed in NORMAL, got %v", err)
	}
	if inner.sealCalls != 1 {
		t.Fatalf("expected inner Seal called once, got %d", inner.sealCalls)
	}

	mon.state.Store(int32(KeystoreStateReadOnly))
	if _, err := mk.Seal(nil, []byte("pt")); err == nil {
		t.Fatal("expected seal to fail in READ_ONLY")
	}
	if inner.sealCalls != 1 {
		t.Fatalf("expected inner Seal not called again in READ_ONLY, got %d", inner.sealCalls)
	}
}

// TestMonitoredKeystore_OpenGatedOnCanOpen verifies that Open still succeeds
// in READ_ONLY and only fails once the monitor reaches FAILED.
func TestMonitoredKeystore_OpenGatedOnCanOpen(t *testing.T) {
	inner := &fakeDeviceKeystore{}
	mon := &KeystoreHealthMonitor{}
	mon.state.Store(int32(KeystoreStateReadOnly))
	mk := NewMonitoredKeystore(inner, mon)

	if _, err := mk.Open(nil, []byte("ct")); err != nil {
		t.Fatalf("expected open to succeed in READ_ONLY, got %v", err)
	}
	if inner.openCalls != 1 {
		t.Fatalf("expected inner Open called once, got %d", inner.openCalls)
	}

	mon.state.Store(int32(KeystoreStateFailed))
	if _, err := mk.Open(nil, []byte("ct")); err == nil {
		t.Fatal("expected open to fail in FAILED")
	}
	if inner.openCalls != 1 {
		t.Fatalf("expected inner Open not called again in FAILED, got %d", inner.openCalls)
	}
}

// TestRoundTripHealthCheck verifies the health check succeeds against a
// working keystore using exactly one Seal and one Open.
func TestRoundTripHealthCheck(t *testing.T) {
	inner := &fakeDeviceKeystore{}
	check := RoundTripHealthCheck(inner)
	if err := check(); err != nil {
		t.Fatalf("expected health check to pass, got %v", err)
	}
	if inner.sealCalls != 1 || inner.openCalls != 1 {
		t.Fatalf("expected exactly one seal and one open, got seal=%d open=%d", inner.sealCalls, inner.openCalls)
	}
}
