package account

import (
	"crypto/rand"
	"encoding/json"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

const accountStateBlobName = "account_state.bin"

// KeyMaterial is the freshly generated, not-yet-wrapped key hierarchy for a
// brand new account: the vault key plus two independently generated
// blinding seeds from which the issuer and session blinds are derived
// downstream. Callers must Zero it once the
// account has been created.
type KeyMaterial struct {
	VaultKey         vaulttypes.VaultKey
	IssuerBlindSeed  vaulttypes.BlindSeed
	SessionBlindSeed vaulttypes.BlindSeed
}

// Zero clears every secret held in the key material.
func (k *KeyMaterial) Zero() {
	k.VaultKey.Zero()
	k.IssuerBlindSeed.Zero()
	k.SessionBlindSeed.Zero()
}

// NewKeyMaterial generates a fresh, high-entropy key hierarchy for account
// creation: a 32-byte vault key and two independent 32-byte blinding seeds.
func NewKeyMaterial() (KeyMaterial, error) {
	var km KeyMaterial
	if _, err := rand.Read(km.VaultKey[:]); err != nil {
		return km, vaulterr.Wrap(vaulterr.CodeInternal, "generate vault key", err)
	}
	if _, err := rand.Read(km.IssuerBlindSeed[:]); err != nil {
		return km, vaulterr.Wrap(vaulterr.CodeInternal, "generate issuer blind seed", err)
	}
	if _, err := rand.Read(km.SessionBlindSeed[:]); err != nil {
		return km, vaulterr.Wrap(vaulterr.CodeInternal, "generate session blind seed", err)
	}
	return km, nil
}

// buildAccountState wraps the vault key under the device keystore and
// assembles the AccountState record that account_state.bin persists.
func buildAccountState(keystore platform.DeviceKeystore, km KeyMaterial, deviceID vaulttypes.DeviceID, cfg config.Config, now int64) (vaulttypes.AccountState, vaulttypes.AccountID, error) {
	accountID := vaulttypes.AccountID(vaultcrypto.DeriveAccountID([32]byte(km.VaultKey)))

	wrapped, err := keystore.Seal(vaultcrypto.AADVaultKeyWrap([32]byte(accountID), [16]byte(deviceID)), km.VaultKey[:])
	if err != nil {
		return vaulttypes.AccountState{}, accountID, vaulterr.Wrap(vaulterr.CodeKeystoreError, "wrap vault key", err)
	}

	state := vaulttypes.AccountState{
		Version:          cfg.AccountStateVersion,
		AccountID:        accountID,
		IssuerBlindSeed:  km.IssuerBlindSeed,
		SessionBlindSeed: km.SessionBlindSeed,
		WrappedVaultKey:  wrapped,
		DeviceID:         deviceID,
		UpdatedAt:        now,
	}
	return state, accountID, nil
}

// saveAccountState seals the whole AccountState record under the device
// keystore with the device-state AAD and writes it atomically.
func saveAccountState(blobs platform.AtomicBlobStore, keystore platform.DeviceKeystore, state vaulttypes.AccountState) error {
	plaintext, err := json.Marshal(state)
	if err != nil {
		return vaulterr.Wrap(vaulterr.CodeSerializationError, "encode account state", err)
	}
	sealed, err := keystore.Seal(vaultcrypto.AADDeviceState([32]byte(state.AccountID), [16]byte(state.DeviceID)), plaintext)
	if err != nil {
		return vaulterr.Wrap(vaulterr.CodeKeystoreError, "seal account state", err)
	}
	if err := blobs.WriteAtomic(accountStateBlobName, sealed); err != nil {
		return vaulterr.IO("write account state", err)
	}
	return nil
}

// loadAccountState reads and decrypts account_state.bin. accountID and
// deviceID must already be known to the caller (the account id from the
// account directory name, the device id from the store-level device
// identity) since both are bound into the AAD the blob is sealed under.
func loadAccountState(blobs platform.AtomicBlobStore, keystore platform.DeviceKeystore, accountID vaulttypes.AccountID, deviceID vaulttypes.DeviceID) (vaulttypes.AccountState, error) {
	raw, err := blobs.Read(accountStateBlobName)
	if err != nil {
		return vaulttypes.AccountState{}, vaulterr.IO("read account state", err)
	}
	plaintext, err := keystore.Open(vaultcrypto.AADDeviceState([32]byte(accountID), [16]byte(deviceID)), raw)
	if err != nil {
		return vaulttypes.AccountState{}, vaulterr.Wrap(vaulterr.CodeKeystoreError, "open account state", err)
	}
	var state vaulttypes.AccountState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return vaulttypes.AccountState{}, vaulterr.Wrap(vaulterr.CodeDeserializationError, "decode account state", err)
	}
	if state.AccountID != accountID {
		return vaulttypes.AccountState{}, vaulterr.ErrAccountIDMismatch
	}
	return state, nil
}

// unwrapVaultKey recovers the 32-byte vault key from a loaded AccountState.
func unwrapVaultKey(keystore platform.DeviceKeystore, state vaulttypes.AccountState) (vaulttypes.VaultKey, error) {
	var key vaulttypes.VaultKey
	pt, err := keystore.Open(vaultcrypto.AADVaultKeyWrap([32]byte(state.AccountID), [16]byte(state.DeviceID)), state.WrappedVaultKey)
	if err != nil {
		return key, vaulterr.Wrap(vaulterr.CodeKeystoreError, "unwrap vault key", err)
	}
	if len(pt) != len(key) {
		return key, vaulterr.New(vaulterr.CodeCorruptedData, "unwrapped vault key has wrong length")
	}
	copy(key[:], pt)
	return key, nil
}
