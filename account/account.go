// Package account implements the per-account handle that sits above the
// vault file engine, the pending-action store, and the regenerable proof
// cache: the device-wrapped key hierarchy, the credential CRUD surface, the
// nullifier disclosure protocol, and blinding-seed derivation.
package account

import (
	"context"
	"log/slog"
	"sort"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/pending"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/proofcache"
	"github.com/worldcoin/walletkit-vault/vault"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// Account is one open credential vault for a single account on a single
// device. It owns the vault key in memory (zeroized on Close) and
// serializes every mutation through the account lock manager.
type Account struct {
	accountID vaulttypes.AccountID
	deviceID  vaulttypes.DeviceID
	key       vaulttypes.VaultKey
	state     vaulttypes.AccountState

	blobs    platform.AtomicBlobStore
	vault    *vault.Vault
	pending  *pending.Store
	cache    *proofcache.Cache
	keystore platform.DeviceKeystore
	lock     platform.AccountLockManager
	cfg      config.Config
	logger   *slog.Logger
}

// Create generates and persists a brand new account from km (typically
// freshly generated by NewKeyMaterial, but also used by provisioning import
// to install key material received from another device) and opens its
// vault file for the first time.
func Create(
	blobs platform.AtomicBlobStore,
	vaultStore platform.VaultFileStore,
	keystore platform.DeviceKeystore,
	lock platform.AccountLockManager,
	cache *proofcache.Cache,
	deviceID vaulttypes.DeviceID,
	km KeyMaterial,
	cfg config.Config,
	now int64,
	logger *slog.Logger,
) (*Account, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, accountID, err := buildAccountState(keystore, km, deviceID, cfg, now)
	if err != nil {
		return nil, err
	}
	var v *vault.Vault
	err = lock.WithAccountLock(context.Background(), accountID.String(), func() error {
		if err := saveAccountState(blobs, keystore, state); err != nil {
			return err
		}
		var openErr error
		v, openErr = vault.OpenOrCreate(vaultStore, accountID, [32]byte(km.VaultKey), cfg, now)
		return openErr
	})
	if err != nil {
		return nil, err
	}

	a := &Account{
		accountID: accountID,
		deviceID:  deviceID,
		key:       km.VaultKey,
		state:     state,
		blobs:     blobs,
		vault:     v,
		pending:   pending.NewStore(blobs, keystore, accountID, deviceID, cfg),
		cache:     cache,
		keystore:  keystore,
		lock:      lock,
		cfg:       cfg,
		logger:    logger,
	}
	logger.Info("account created", "account_id", accountID.String(), "device_id", deviceID.String())
	return a, nil
}

// Open reads the device-protected AccountState, unwraps the vault key, and
// opens the existing vault file for accountID on this device.
func Open(
	blobs platform.AtomicBlobStore,
	vaultStore platform.VaultFileStore,
	keystore platform.DeviceKeystore,
	lock platform.AccountLockManager,
	cache *proofcache.Cache,
	accountID vaulttypes.AccountID,
	deviceID vaulttypes.DeviceID,
	cfg config.Config,
	logger *slog.Logger,
) (*Account, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := loadAccountState(blobs, keystore, accountID, deviceID)
	if err != nil {
		return nil, err
	}
	key, err := unwrapVaultKey(keystore, state)
	if err != nil {
		return nil, err
	}

	v, err := vault.OpenOrCreate(vaultStore, accountID, [32]byte(key), cfg, 0)
	if err != nil {
		key.Zero()
		return nil, err
	}

	a := &Account{
		accountID: accountID,
		deviceID:  deviceID,
		key:       key,
		state:     state,
		blobs:     blobs,
		vault:     v,
		pending:   pending.NewStore(blobs, keystore, accountID, deviceID, cfg),
		cache:     cache,
		keystore:  keystore,
		lock:      lock,
		cfg:       cfg,
		logger:    logger,
	}
	logger.Info("account opened", "account_id", accountID.String(), "device_id", deviceID.String())
	return a, nil
}

// AccountID returns this account's identifier.
func (a *Account) AccountID() vaulttypes.AccountID { return a.accountID }

// DeviceID returns this device's identifier within the account.
func (a *Account) DeviceID() vaulttypes.DeviceID { return a.deviceID }

// Close zeroizes every secret this handle holds, then closes the
// regenerable proof cache and finally the vault file's backing handle.
func (a *Account) Close() error {
	a.key.Zero()
	a.state.Zero()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("proof cache close failed", "account_id", a.accountID.String(), "error", err.Error())
		}
	}
	return a.vault.Close()
}

func (a *Account) withLock(ctx context.Context, fn func() error) error {
	return a.lock.WithAccountLock(ctx, a.accountID.String(), fn)
}

// GetCredentialRecord returns metadata only, performing no blob I/O.
func (a *Account) GetCredentialRecord(id vaulttypes.CredentialID) (vaulttypes.CredentialRecord, error) {
	idx := a.vault.Index()
	rec := idx.FindCredential(id)
	if rec == nil {
		return vaulttypes.CredentialRecord{}, vaulterr.ErrCredentialNotFound
	}
	return *rec, nil
}

// GetCredential returns the decrypted credential blob and, if present, its
// associated data blob.
func (a *Account) GetCredential(id vaulttypes.CredentialID) (cred []byte, assoc []byte, err error) {
	idx := a.vault.Index()
	rec := idx.FindCredential(id)
	if rec == nil {
		return nil, nil, vaulterr.ErrCredentialNotFound
	}
	credPtr := idx.FindBlob(rec.CredentialBlobCID)
	if credPtr == nil {
		return nil, nil, vaulterr.New(vaulterr.CodeBlobNotFound, "credential blob pointer missing")
	}
	cred, err = a.vault.ReadBlob(*credPtr)
	if err != nil {
		return nil, nil, err
	}
	if rec.AssociatedDataCID != nil {
		assocPtr := idx.FindBlob(*rec.AssociatedDataCID)
		if assocPtr == nil {
			return nil, nil, vaulterr.New(vaulterr.CodeBlobNotFound, "associated data blob pointer missing")
		}
		assoc, err = a.vault.ReadBlob(*assocPtr)
		if err != nil {
			return nil, nil, err
		}
	}
	return cred, assoc, nil
}

// ListCredentials returns every record matching filter, newest-updated
// first. A nil filter applies the default: active, non-expired, any issuer.
func (a *Account) ListCredentials(filter *vaulttypes.CredentialFilter, now int64) []vaulttypes.CredentialRecord {
	f := vaulttypes.NewCredentialFilter()
	if filter != nil {
		f = *filter
	}
	idx := a.vault.Index()
	out := make([]vaulttypes.CredentialRecord, 0, len(idx.Records))
	for i := range idx.Records {
		if f.Matches(&idx.Records[i], now) {
			out = append(out, idx.Records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out
}

// PutCredential upserts a credential record and its blobs inside one vault
// transaction under the account lock. On update, CreatedAt and Status carry
// over from the existing record; UpdatedAt always advances to now.
func (a *Account) PutCredential(ctx context.Context, id vaulttypes.CredentialID, issuerSchemaID uint64, expiresAt *int64, credBlob, assocData []byte, now int64) error {
	return a.withLock(ctx, func() error {
		return a.vault.Transaction(now, func(t *vault.Txn) error {
			credPtr, err := t.PutBlob(credBlob, vaulttypes.BlobKindCredential)
			if err != nil {
				return err
			}

			rec := vaulttypes.CredentialRecord{
				CredentialID:      id,
				IssuerSchemaID:    issuerSchemaID,
				CreatedAt:         now,
				UpdatedAt:         now,
				ExpiresAt:         expiresAt,
				CredentialBlobCID: credPtr.ContentID,
				Status:            vaulttypes.CredentialStatusActive,
			}
			if assocData != nil {
				assocPtr, err := t.PutBlob(assocData, vaulttypes.BlobKindAssociatedData)
				if err != nil {
					return err
				}
				cid := assocPtr.ContentID
				rec.AssociatedDataCID = &cid
			}

			idx := t.Index()
			if existing := idx.FindCredential(id); existing != nil {
				rec.CreatedAt = existing.CreatedAt
				rec.Status = existing.Status
			}
			idx.UpsertRecord(rec)
			return nil
		})
	})
}

// RetireCredential marks a credential Retired and refreshes UpdatedAt. The
// record and its blobs remain in place for audit; retired credentials stop
// appearing under the default list filter but stay retrievable by id.
func (a *Account) RetireCredential(ctx context.Context, id vaulttypes.CredentialID, now int64) error {
	return a.withLock(ctx, func() error {
		return a.vault.Transaction(now, func(t *vault.Txn) error {
			idx := t.Index()
			rec := idx.FindCredential(id)
			if rec == nil {
				return vaulterr.ErrCredentialNotFound
			}
			rec.Status = vaulttypes.CredentialStatusRetired
			rec.UpdatedAt = now
			return nil
		})
	})
}
