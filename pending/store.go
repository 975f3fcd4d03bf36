package pending

import (
	"encoding/json"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

const blobName = "pending_actions.bin"

// Store is the device-bound, AEAD-encrypted pending-action log for one
// account on one device. Every operation loads, prunes expired entries,
// and (for mutations) re-encrypts and writes the whole blob back
// atomically — there is no partial update.
type Store struct {
	blobs     platform.AtomicBlobStore
	keystore  platform.DeviceKeystore
	accountID vaulttypes.AccountID
	deviceID  vaulttypes.DeviceID
	cfg       config.Config
}

// NewStore constructs a pending-action store bound to one account/device pair.
func NewStore(blobs platform.AtomicBlobStore, keystore platform.DeviceKeystore, accountID vaulttypes.AccountID, deviceID vaulttypes.DeviceID, cfg config.Config) *Store {
	return &Store{blobs: blobs, keystore: keystore, accountID: accountID, deviceID: deviceID, cfg: cfg}
}

func (s *Store) aad() []byte {
	return vaultcrypto.AADPendingStore([32]byte(s.accountID), [16]byte(s.deviceID))
}

func (s *Store) load() (vaulttypes.PendingActionStore, error) {
	exists, err := s.blobs.Exists(blobName)
	if err != nil {
		return vaulttypes.PendingActionStore{}, vaulterr.IO("check pending store", err)
	}
	if !exists {
		return vaulttypes.PendingActionStore{Version: s.cfg.PendingVersion}, nil
	}
	raw, err := s.blobs.Read(blobName)
	if err != nil {
		return vaulttypes.PendingActionStore{}, vaulterr.IO("read pending store", err)
	}
	plaintext, err := s.keystore.Open(s.aad(), raw)
	if err != nil {
		return vaulttypes.PendingActionStore{}, err
	}
	var store vaulttypes.PendingActionStore
	if err := json.Unmarshal(plaintext, &store); err != nil {
		return vaulttypes.PendingActionStore{}, vaulterr.Wrap(vaulterr.CodeDeserializationError, "decode pending store", err)
	}
	return store, nil
}

func (s *Store) save(store vaulttypes.PendingActionStore) error {
	store.Version = s.cfg.PendingVersion
	plaintext, err := json.Marshal(store)
	if err != nil {
		return vaulterr.Wrap(vaulterr.CodeSerializationError, "encode pending store", err)
	}
	sealed, err := s.keystore.Seal(s.aad(), plaintext)
	if err != nil {
		return err
	}
	if err := s.blobs.WriteAtomic(blobName, sealed); err != nil {
		return vaulterr.IO("write pending store", err)
	}
	return nil
}

// BeginActionDisclosure implements the begin_action_disclosure state
// transition described in the pending-action protocol: idempotent replay
// for a repeated request against the same scope, ActionAlreadyPending for a
// distinct concurrent request, NullifierAlreadyConsumed when the oracle
// already observed the nullifier, and PendingActionStoreFull at capacity.
func (s *Store) BeginActionDisclosure(
	rpID, actionID [32]byte,
	signedRequest []byte,
	nullifier [32]byte,
	proofPackage []byte,
	oracle ConsumptionOracle,
	now int64,
) ([]byte, error) {
	actionScope := vaultcrypto.ComputeActionScope(rpID, actionID)
	requestID := vaultcrypto.ComputeRequestID(signedRequest)

	store, err := s.load()
	if err != nil {
		return nil, err
	}
	store.PruneExpired(now)

	if existing := store.FindByScope(actionScope); existing != nil {
		if existing.RequestID == requestID {
			return existing.ProofPackage, nil
		}
		return nil, vaulterr.ErrActionAlreadyPending
	}

	consumed, err := oracle.CheckConsumed(nullifier)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, vaulterr.ErrNullifierAlreadyConsumed
	}

	entry := vaulttypes.PendingActionEntry{
		ActionScope:  actionScope,
		RequestID:    requestID,
		Nullifier:    nullifier,
		ProofPackage: proofPackage,
		CreatedAt:    now,
		ExpiresAt:    now + int64(s.cfg.PendingTTL.Seconds()),
	}
	if !store.Insert(entry, s.cfg.PendingCapacity) {
		return nil, vaulterr.ErrPendingActionStoreFull
	}
	if err := s.save(store); err != nil {
		return nil, err
	}
	return proofPackage, nil
}

// CommitAction finalizes a pending disclosure: marks the nullifier consumed
// with the oracle, then removes the local entry. If the oracle call fails,
// the entry is left in place so the caller can retry safely.
func (s *Store) CommitAction(rpID, actionID [32]byte, oracle ConsumptionOracle, now int64) error {
	actionScope := vaultcrypto.ComputeActionScope(rpID, actionID)

	store, err := s.load()
	if err != nil {
		return err
	}
	store.PruneExpired(now)

	entry := store.FindByScope(actionScope)
	if entry == nil {
		return vaulterr.ErrPendingActionNotFound
	}
	if err := oracle.MarkConsumed(entry.Nullifier); err != nil {
		return err
	}
	store.Remove(actionScope)
	return s.save(store)
}

// CancelAction removes a pending entry if present; absence is not an error.
func (s *Store) CancelAction(rpID, actionID [32]byte, now int64) error {
	actionScope := vaultcrypto.ComputeActionScope(rpID, actionID)

	store, err := s.load()
	if err != nil {
		return err
	}
	store.PruneExpired(now)
	store.Remove(actionScope)
	return s.save(store)
}

// ListPendingActions returns all unexpired entries.
func (s *Store) ListPendingActions(now int64) ([]vaulttypes.PendingActionEntry, error) {
	store, err := s.load()
	if err != nil {
		return nil, err
	}
	store.PruneExpired(now)
	return store.Entries, nil
}

// GetPendingAction returns the entry for (rp_id, action_id), if any and unexpired.
func (s *Store) GetPendingAction(rpID, actionID [32]byte, now int64) (*vaulttypes.PendingActionEntry, bool, error) {
	store, err := s.load()
	if err != nil {
		return nil, false, err
	}
	store.PruneExpired(now)
	entry := store.FindByScope(vaultcrypto.ComputeActionScope(rpID, actionID))
	if entry == nil {
		return nil, false, nil
	}
	return entry, true, nil
}
