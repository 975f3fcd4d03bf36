package proofcache

import (
	bolt "go.etcd.io/bbolt"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// replayGuard is a local, non-authoritative fast path consulted before
// begin_action_disclosure calls the external consumption oracle. It never
// replaces the oracle or the pending-action store: losing this cache never
// weakens the nullifier single-use guarantee, it only costs an extra oracle
// round trip.

func requestKey(requestID [32]byte) []byte {
	k := make([]byte, 1+32)
	k[0] = 'r'
	copy(k[1:], requestID[:])
	return k
}

func nullifierKey(nullifier [32]byte) []byte {
	k := make([]byte, 1+32)
	k[0] = 'n'
	copy(k[1:], nullifier[:])
	return k
}

// neverExpires marks a nullifier-consumed marker as permanent: oracle
// consumption never reverses, so unlike the TTL-bound pending-reply cache
// this entry is never allowed to silently expire back into a false miss.
const neverExpires = int64(1) << 62

// ReplayGuardByRequestID returns the proof package previously cached for
// requestID, if still unexpired — the fast path for idempotent replay while
// a disclosure is still pending.
func (c *Cache) ReplayGuardByRequestID(requestID [32]byte, now int64) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketReplayGuard).Get(requestKey(requestID))
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
		return nil, false, vaulterr.IO("read replay guard", err)
	}
	return out, out != nil, nil
}

// HasSeenNullifier reports whether this device has locally recorded the
// nullifier as consumed (via MarkNullifierConsumed, written once
// CommitAction's oracle call succeeds). It never reports true for a
// nullifier that is merely pending under a distinct request id — that case
// is, and must remain, ActionAlreadyPending, decided by the authoritative
// pending store's own scope lookup, not this cache.
func (c *Cache) HasSeenNullifier(nullifier [32]byte, now int64) (bool, error) {
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketReplayGuard).Get(nullifierKey(nullifier))
		if v == nil {
			return nil
		}
		expiresAt, _, err := decodeExpiring(v)
		if err != nil {
			return err
		}
		found = now < expiresAt
		return nil
	})
	if err != nil {
		return false, vaulterr.IO("read replay guard", err)
	}
	return found, nil
}

// RecordPendingReply caches request_id -> proof_package for the idempotent
// replay fast path, pruning expired entries from the bucket first. This is
// written as soon as a disclosure enters the Pending state — before the
// nullifier is consumed — so a retry with the identical request id never
// needs the account lock or the pending store at all.
func (c *Cache) RecordPendingReply(requestID [32]byte, proofPackage []byte, now, ttlSeconds int64) error {
	expiresAt := now + ttlSeconds
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplayGuard)
		if err := pruneExpired(b, now); err != nil {
			return err
		}
		return b.Put(requestKey(requestID), encodeExpiring(expiresAt, proofPackage))
	})
	if err != nil {
		return vaulterr.IO("write replay guard", err)
	}
	return nil
}

// MarkNullifierConsumed permanently records that the oracle has observed
// nullifier as consumed, so a later BeginActionDisclosure for the same
// nullifier can short-circuit straight to NullifierAlreadyConsumed without
// an oracle round trip. Called once CommitAction's oracle.MarkConsumed call
// succeeds — never at Begin, since the nullifier is not yet consumed then.
func (c *Cache) MarkNullifierConsumed(nullifier [32]byte, now int64) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReplayGuard)
		if err := pruneExpired(b, now); err != nil {
			return err
		}
		return b.Put(nullifierKey(nullifier), encodeExpiring(neverExpires, nil))
	})
	if err != nil {
		return vaulterr.IO("write replay guard", err)
	}
	return nil
}
