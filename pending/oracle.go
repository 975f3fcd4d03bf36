// Package pending implements the device-bound pending-action store and the
// nullifier single-use protocol layered on top of an external consumption
// oracle.
package pending

// ConsumptionOracle is the authority on cross-device nullifier consumption.
// The pending store only tracks this device's in-flight intent; the oracle
// is consulted before promising a proof package and notified once the
// disclosure is finalized.
type ConsumptionOracle interface {
	CheckConsumed(nullifier [32]byte) (bool, error)
	MarkConsumed(nullifier [32]byte) error
}
