// Package proofcache implements the supplemental, purely regenerable cache
// of externally-fetched Merkle inclusion proofs, session keys, and a local
// replay-guard fast path. It is never guarded by the account write lock and
// is never a source of truth: when the file cannot be opened it is deleted
// and rebuilt empty rather than failing the caller. A corrupt entry found
// later is returned as a CorruptedData error.
package proofcache

import (
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

var (
	bucketMerkleProofs = []byte("merkle_proofs")
	bucketSessionKeys  = []byte("session_keys")
	bucketReplayGuard  = []byte("replay_guard")
)

// Cache is the bbolt-backed regenerable cache for one account.
type Cache struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the cache database at path. If the existing file is
// corrupt, it is deleted and rebuilt empty — callers never see a corruption
// error from this path, since nothing here is authoritative.
func Open(path string) (*Cache, error) {
	db, err := openOrRebuild(path)
	if err != nil {
		return nil, err
	}
	return &Cache{path: path, db: db}, nil
}

func openOrRebuild(path string) (*bolt.DB, error) {
	db, err := tryOpen(path)
	if err == nil {
		return db, nil
	}
	// Non-authoritative: discard and rebuild rather than fail.
	_ = os.Remove(path)
	return tryOpen(path)
}

func tryOpen(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, vaulterr.IO("open proof cache", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMerkleProofs, bucketSessionKeys, bucketReplayGuard} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, vaulterr.Wrap(vaulterr.CodeCorruptedData, "init proof cache buckets", err)
	}
	return db, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return vaulterr.IO("close proof cache", err)
	}
	return nil
}

// Path returns the on-disk path of this cache.
func (c *Cache) Path() string { return c.path }
