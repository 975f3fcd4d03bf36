package account

import (
	"context"

	"github.com/worldcoin/walletkit-vault/pending"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// BeginActionDisclosure runs the nullifier single-use protocol's entry
// point. A local, non-authoritative replay-guard cache is consulted first:
// a hit by request id short-circuits straight to the idempotent reply
// without touching the pending store or the oracle; a hit against the
// nullifier-consumed marker (written once a prior CommitAction actually
// consumed it) short-circuits to NullifierAlreadyConsumed, again without an
// oracle round trip. A nullifier that is merely pending under a distinct
// request id is deliberately NOT short-circuited here — that distinction
// belongs to the authoritative pending.Store scope lookup, which returns
// ActionAlreadyPending without ever touching the oracle. Any cache miss
// falls through to pending.Store under the account lock; on success the
// reply is recorded into the replay guard for next time. The replay guard
// is never solely relied upon — losing it only costs an extra oracle round
// trip, never a second distinct disclosure.
func (a *Account) BeginActionDisclosure(
	ctx context.Context,
	rpID, actionID [32]byte,
	signedRequest []byte,
	nullifier [32]byte,
	proofPackage []byte,
	oracle pending.ConsumptionOracle,
	now int64,
) ([]byte, error) {
	requestID := vaultcrypto.ComputeRequestID(signedRequest)

	if a.cache != nil {
		if cached, ok, err := a.cache.ReplayGuardByRequestID(requestID, now); err == nil && ok {
			return cached, nil
		} else if err != nil {
			a.logger.Warn("replay guard read failed, falling through to pending store", "error", err.Error())
		}
		if seen, err := a.cache.HasSeenNullifier(nullifier, now); err == nil && seen {
			return nil, vaulterr.ErrNullifierAlreadyConsumed
		} else if err != nil {
			a.logger.Warn("replay guard nullifier lookup failed, falling through to pending store", "error", err.Error())
		}
	}

	var result []byte
	err := a.withLock(ctx, func() error {
		pkg, err := a.pending.BeginActionDisclosure(rpID, actionID, signedRequest, nullifier, proofPackage, oracle, now)
		if err != nil {
			return err
		}
		result = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		ttl := int64(a.cfg.PendingTTL.Seconds())
		if err := a.cache.RecordPendingReply(requestID, result, now, ttl); err != nil {
			a.logger.Warn("replay guard write failed", "error", err.Error())
		}
	}
	return result, nil
}

// CommitAction finalizes a pending disclosure, marking the nullifier
// consumed with the oracle and removing the local pending entry. Once the
// commit succeeds, the nullifier is recorded in the replay guard cache so a
// later BeginActionDisclosure for the same nullifier short-circuits to
// NullifierAlreadyConsumed without another oracle round trip.
func (a *Account) CommitAction(ctx context.Context, rpID, actionID [32]byte, oracle pending.ConsumptionOracle, now int64) error {
	var nullifier [32]byte
	haveNullifier := false
	if entry, ok, err := a.pending.GetPendingAction(rpID, actionID, now); err == nil && ok {
		nullifier, haveNullifier = entry.Nullifier, true
	}

	if err := a.withLock(ctx, func() error {
		return a.pending.CommitAction(rpID, actionID, oracle, now)
	}); err != nil {
		return err
	}

	if haveNullifier && a.cache != nil {
		if err := a.cache.MarkNullifierConsumed(nullifier, now); err != nil {
			a.logger.Warn("replay guard consumed-marker write failed", "error", err.Error())
		}
	}
	return nil
}

// CancelAction removes a pending entry if present; absence is not an error.
func (a *Account) CancelAction(ctx context.Context, rpID, actionID [32]byte, now int64) error {
	return a.withLock(ctx, func() error {
		return a.pending.CancelAction(rpID, actionID, now)
	})
}

// ListPendingActions returns every unexpired pending disclosure.
func (a *Account) ListPendingActions(now int64) ([]vaulttypes.PendingActionEntry, error) {
	return a.pending.ListPendingActions(now)
}

// GetPendingAction returns the pending entry for (rpID, actionID), if any.
func (a *Account) GetPendingAction(rpID, actionID [32]byte, now int64) (*vaulttypes.PendingActionEntry, bool, error) {
	return a.pending.GetPendingAction(rpID, actionID, now)
}
