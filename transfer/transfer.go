// Package transfer implements the encrypted credential transfer wire
// format that lets one device hand a single credential to another over an
// untrusted channel, plus the last-writer-wins conflict resolution applied
// on import.
package transfer

import (
	"encoding/json"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// Bytes is the plaintext payload of a credential transfer, sealed as one
// AEAD message under the account's vault key. An active export carries the
// credential's blobs; a tombstone export carries only the retired record.
type Bytes struct {
	Version     uint32                      `json:"version"`
	AccountID   vaulttypes.AccountID        `json:"account_id"`
	Record      vaulttypes.CredentialRecord `json:"record"`
	IsTombstone bool                        `json:"is_tombstone"`
	CredBlob    []byte                      `json:"cred_blob,omitempty"`
	AssocData   []byte                      `json:"assoc_data,omitempty"`
}

// Outcome reports what import did with a decoded transfer.
type Outcome string

const (
	// Applied means the incoming record replaced local state.
	Applied Outcome = "applied"
	// NoOp means the local record was already at least as new.
	NoOp Outcome = "no_op"
)

// Encode seals payload as a credential transfer message under key, bound to
// accountID via the credential-transfer AAD.
func Encode(key [32]byte, accountID vaulttypes.AccountID, payload Bytes) ([]byte, error) {
	payload.AccountID = accountID
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeSerializationError, "encode transfer payload", err)
	}
	sealed, err := vaultcrypto.Seal(key, vaultcrypto.AADTransfer([32]byte(accountID)), plaintext)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// Decode opens and validates a credential transfer message: the decrypted
// account id must equal the local account, and the payload version must not
// exceed what this implementation understands.
func Decode(key [32]byte, accountID vaulttypes.AccountID, sealed []byte, cfg config.Config) (Bytes, error) {
	plaintext, err := vaultcrypto.Open(key, vaultcrypto.AADTransfer([32]byte(accountID)), sealed)
	if err != nil {
		return Bytes{}, err
	}
	var payload Bytes
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Bytes{}, vaulterr.Wrap(vaulterr.CodeDeserializationError, "decode transfer payload", err)
	}
	if payload.AccountID != accountID {
		return Bytes{}, vaulterr.ErrInvalidTransfer
	}
	if payload.Version > cfg.TransferVersion {
		return Bytes{}, vaulterr.ErrUnsupportedVersion
	}
	return payload, nil
}

// ShouldApply implements the last-writer-wins conflict rule: an incoming
// record is applied only when no local record exists, or the incoming
// record is strictly newer than the local one.
func ShouldApply(local *vaulttypes.CredentialRecord, incoming vaulttypes.CredentialRecord) bool {
	return local == nil || incoming.UpdatedAt > local.UpdatedAt
}
