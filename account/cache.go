package account

import (
	"context"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// CacheMerkleProof stores a regenerable Merkle inclusion proof fetched by an
// external collaborator. It is never guarded by the account lock: losing
// this cache never loses a credential, it only costs a re-fetch. A nil
// cache (proof caching disabled for this account) is a no-op.
func (a *Account) CacheMerkleProof(registryKind uint8, root [32]byte, leafIndex uint64, proofBytes []byte, now, ttlSeconds int64) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.PutMerkleProof(registryKind, root, leafIndex, proofBytes, now, ttlSeconds)
}

// CachedMerkleProof returns a previously cached proof, if present and
// unexpired. A nil cache always reports a miss.
func (a *Account) CachedMerkleProof(registryKind uint8, root [32]byte, leafIndex uint64, now int64) ([]byte, bool, error) {
	if a.cache == nil {
		return nil, false, nil
	}
	return a.cache.GetMerkleProof(registryKind, root, leafIndex, now)
}

// CacheSessionKey stores a regenerable per-relying-party session key.
func (a *Account) CacheSessionKey(rpID [32]byte, kSession [32]byte, now, ttlSeconds int64) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.PutSessionKey(rpID, kSession, now, ttlSeconds)
}

// CachedSessionKey returns a previously cached session key, if unexpired.
func (a *Account) CachedSessionKey(rpID [32]byte, now int64) ([32]byte, bool, error) {
	if a.cache == nil {
		return [32]byte{}, false, nil
	}
	return a.cache.GetSessionKey(rpID, now)
}

// LeafIndexCache returns this account's optional, non-authoritative leaf
// index hint, if one has been recorded.
func (a *Account) LeafIndexCache() *uint64 {
	return a.state.LeafIndexCache
}

// SetLeafIndexCache updates the optional leaf index hint and rewrites
// account_state.bin. This is a hint, never a source of truth: callers must
// still validate any cached leaf index against the authoritative registry.
func (a *Account) SetLeafIndexCache(leafIndex uint64, now int64) error {
	return a.withLock(context.Background(), func() error {
		a.state.LeafIndexCache = &leafIndex
		a.state.UpdatedAt = now
		if err := saveAccountState(a.blobs, a.keystore, a.state); err != nil {
			return vaulterr.Wrap(vaulterr.CodeIO, "persist leaf index cache", err)
		}
		return nil
	})
}
