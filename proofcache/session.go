package proofcache

import (
	bolt "go.etcd.io/bbolt"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

func sessionKey(rpID [32]byte) []byte {
	return append([]byte(nil), rpID[:]...)
}

// GetSessionKey returns a cached session key for rpID if present and unexpired.
func (c *Cache) GetSessionKey(rpID [32]byte, now int64) ([32]byte, bool, error) {
	var out [32]byte
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSessionKeys).Get(sessionKey(rpID))
		if v == nil {
			return nil
		}
		expiresAt, payload, err := decodeExpiring(v)
		if err != nil {
			return err
		}
		if now >= expiresAt || len(payload) != 32 {
			return nil
		}
		copy(out[:], payload)
		found = true
		return nil
	})
	if err != nil {
		return out, false, vaulterr.IO("read session key cache", err)
	}
	return out, found, nil
}

// PutSessionKey inserts or replaces the cached session key for rpID.
func (c *Cache) PutSessionKey(rpID [32]byte, kSession [32]byte, now, ttlSeconds int64) error {
	value := encodeExpiring(now+ttlSeconds, kSession[:])
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionKeys)
		if err := pruneExpired(b, now); err != nil {
			return err
		}
		return b.Put(sessionKey(rpID), value)
	})
	if err != nil {
		return vaulterr.IO("write session key cache", err)
	}
	return nil
}
