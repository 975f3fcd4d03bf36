// Package platform specifies the four capability contracts the credential
// storage core depends on but does not implement for every target: a
// device-bound keystore, an atomic blob store, a random-access vault file
// store, and a cross-process account lock manager. Concrete
// implementations live in fsplatform (blob and vault file stores), lockmgr
// (file-lock manager), crypto (software keystore) and this package's
// in-memory variants (tests).
package platform

import "context"

// DeviceKeystore is a two-operation AEAD capability tied to the device.
// Implementations should use non-exportable, hardware-backed keys where the
// platform supports it, and must never let the wrapping key survive a
// device backup.
type DeviceKeystore interface {
	Seal(aad, plaintext []byte) (ciphertext []byte, err error)
	Open(aad, ciphertext []byte) (plaintext []byte, err error)
}

// AtomicBlobStore persists small named blobs with crash-safe atomic writes:
// write-temp, fsync temp, rename, fsync parent directory.
type AtomicBlobStore interface {
	Read(name string) ([]byte, error)
	WriteAtomic(name string, data []byte) error
	Delete(name string) error
	Exists(name string) (bool, error)
}

// VaultFileStore is random-access storage for the vault container file,
// with an explicit fsync primitive.
type VaultFileStore interface {
	Len() (int64, error)
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Append(p []byte) (offset int64, err error)
	Sync() error
	SetLen(size int64) error
	Close() error
}

// AccountLockManager provides cross-process exclusion per account id.
type AccountLockManager interface {
	// WithAccountLock blocks until the lock is acquired (or ctx is done),
	// runs fn, then releases the lock.
	WithAccountLock(ctx context.Context, accountID string, fn func() error) error
	// TryWithAccountLock attempts to acquire the lock without blocking; it
	// returns (false, nil) if the lock is currently held elsewhere.
	TryWithAccountLock(accountID string, fn func() error) (acquired bool, err error)
}
