package crypto

import (
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// roundTripAAD and roundTripPlaintext are the fixed inputs used to probe
// keystore reachability: RoundTripHealthCheck never persists this output, it
// only checks that Seal-then-Open still round-trips.
var (
	roundTripAAD       = []byte("worldid-keystore-health-check")
	roundTripPlaintext = []byte("ping")
)

// RoundTripHealthCheck builds a HealthCheckFn that probes ks by sealing and
// then opening a fixed plaintext, failing if either step errors or the
// round trip doesn't return the original bytes.
func RoundTripHealthCheck(ks platform.DeviceKeystore) HealthCheckFn {
	return func() error {
		sealed, err := ks.Seal(roundTripAAD, roundTripPlaintext)
		if err != nil {
			return err
		}
		opened, err := ks.Open(roundTripAAD, sealed)
		if err != nil {
			return err
		}
		if string(opened) != string(roundTripPlaintext) {
			return vaulterr.New(vaulterr.CodeKeystoreError, "keystore health check round trip mismatch")
		}
		return nil
	}
}

// MonitoredKeystore wraps a platform.DeviceKeystore with a
// KeystoreHealthMonitor, gating every Seal (new wraps and rewraps) on
// CanWrap and every Open on CanOpen. It is itself a platform.DeviceKeystore,
// so it drops in wherever the unmonitored keystore was used.
type MonitoredKeystore struct {
	inner   platform.DeviceKeystore
	monitor *KeystoreHealthMonitor
}

// NewMonitoredKeystore wraps inner, gating its operations on monitor's state.
func NewMonitoredKeystore(inner platform.DeviceKeystore, monitor *KeystoreHealthMonitor) *MonitoredKeystore {
	return &MonitoredKeystore{inner: inner, monitor: monitor}
}

// Seal refuses to wrap unless the keystore is in NORMAL state: account
// creation and key rewraps fail fast instead of silently degrading.
func (k *MonitoredKeystore) Seal(aad, plaintext []byte) ([]byte, error) {
	if !k.monitor.CanWrap() {
		return nil, vaulterr.New(vaulterr.CodeKeystoreError, "keystore is "+k.monitor.State().String()+", wraps are disabled")
	}
	return k.inner.Seal(aad, plaintext)
}

// Open refuses only once the keystore is FAILED; READ_ONLY still permits
// opening existing blobs.
func (k *MonitoredKeystore) Open(aad, ciphertext []byte) ([]byte, error) {
	if !k.monitor.CanOpen() {
		return nil, vaulterr.New(vaulterr.CodeKeystoreError, "keystore is FAILED, opens are disabled")
	}
	return k.inner.Open(aad, ciphertext)
}
