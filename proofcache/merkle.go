package proofcache

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

func merkleKey(registryKind uint8, root [32]byte, leafIndex uint64) []byte {
	key := make([]byte, 1+32+8)
	key[0] = registryKind
	copy(key[1:33], root[:])
	binary.LittleEndian.PutUint64(key[33:41], leafIndex)
	return key
}

// GetMerkleProof returns a cached proof if present and not expired by now.
func (c *Cache) GetMerkleProof(registryKind uint8, root [32]byte, leafIndex uint64, now int64) ([]byte, bool, error) {
	key := merkleKey(registryKind, root, leafIndex)
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMerkleProofs).Get(key)
		if v == nil {
			return nil
		}
		expiresAt, payload, err := decodeExpiring(v)
		if err != nil {
			return err
		}
		if now >= expiresAt {
			return nil
		}
		out = append([]byte(nil), payload...)
		return nil
	})
	if err != nil {
		return nil, false, vaulterr.IO("read merkle proof cache", err)
	}
	return out, out != nil, nil
}

// PutMerkleProof inserts or replaces a cached proof with the given TTL,
// pruning expired entries from the bucket first.
func (c *Cache) PutMerkleProof(registryKind uint8, root [32]byte, leafIndex uint64, proofBytes []byte, now, ttlSeconds int64) error {
	key := merkleKey(registryKind, root, leafIndex)
	value := encodeExpiring(now+ttlSeconds, proofBytes)
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMerkleProofs)
		if err := pruneExpired(b, now); err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return vaulterr.IO("write merkle proof cache", err)
	}
	return nil
}
