// Package config centralizes the tunables that must agree between
// producers and consumers of vault data: pending-entry TTL, pending store
// capacity, and wire format versions.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunables shared across the vault file engine, the
// pending-action store, and the transfer/provisioning formats.
type Config struct {
	PendingTTL      time.Duration
	PendingCapacity int
	LockTimeout     time.Duration

	FileHeaderVersion   uint32
	IndexVersion        uint32
	RecordVersion       uint32
	PendingVersion      uint32
	TransferVersion     uint32
	ProvisioningVersion uint32
	AccountStateVersion uint32
}

// DefaultConfig returns the normative defaults fixed by the wire format.
func DefaultConfig() Config {
	return Config{
		PendingTTL:      900 * time.Second,
		PendingCapacity: 16,
		LockTimeout:     0, // block indefinitely

		FileHeaderVersion:   1,
		IndexVersion:        1,
		RecordVersion:       1,
		PendingVersion:      1,
		TransferVersion:     1,
		ProvisioningVersion: 1,
		AccountStateVersion: 1,
	}
}

// ConfigFromEnv overlays environment variables onto DefaultConfig. Values
// that fail to parse or are non-positive are ignored, leaving the default.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("WORLDID_VAULT_PENDING_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PendingTTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("WORLDID_VAULT_PENDING_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PendingCapacity = n
		}
	}
	if v := os.Getenv("WORLDID_VAULT_LOCK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LockTimeout = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}
