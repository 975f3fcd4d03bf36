package proofcache

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// encodeExpiring prefixes payload with a little-endian expiry timestamp.
func encodeExpiring(expiresAt int64, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(out[0:8], uint64(expiresAt))
	copy(out[8:], payload)
	return out
}

func decodeExpiring(v []byte) (int64, []byte, error) {
	if len(v) < 8 {
		return 0, nil, vaulterr.New(vaulterr.CodeCorruptedData, "cache entry truncated")
	}
	expiresAt := int64(binary.LittleEndian.Uint64(v[0:8]))
	return expiresAt, v[8:], nil
}

// pruneExpired deletes every entry in bucket whose expiry has elapsed by now.
func pruneExpired(b *bolt.Bucket, now int64) error {
	var stale [][]byte
	if err := b.ForEach(func(k, v []byte) error {
		expiresAt, _, err := decodeExpiring(v)
		if err != nil {
			return err
		}
		if now >= expiresAt {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
