// Package vaulttypes defines the core entities shared across the vault file
// engine, the account handle, the pending-action store, and the transfer
// and provisioning formats.
package vaulttypes

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// AccountID is the 32-byte identifier derived deterministically from the
// vault key.
type AccountID [32]byte

func (id AccountID) String() string { return hex.EncodeToString(id[:]) }

func (id AccountID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := AccountIDFromHex(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AccountIDFromHex parses a hex-encoded account id.
func AccountIDFromHex(s string) (AccountID, error) {
	var id AccountID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, vaulterr.New(vaulterr.CodeInvalidInput, "invalid account id hex")
	}
	copy(id[:], b)
	return id, nil
}

// CredentialID is a 16-byte identifier, randomly generated per credential.
type CredentialID [16]byte

func (id CredentialID) String() string { return hex.EncodeToString(id[:]) }

func (id CredentialID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *CredentialID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return vaulterr.New(vaulterr.CodeInvalidInput, "invalid credential id hex")
	}
	copy(id[:], b)
	return nil
}

// NewCredentialID generates a fresh random credential id.
func NewCredentialID() (CredentialID, error) {
	var id CredentialID
	if _, err := rand.Read(id[:]); err != nil {
		return id, vaulterr.Wrap(vaulterr.CodeInternal, "generate credential id", err)
	}
	return id, nil
}

// ContentID is the SHA-256 of a blob's plaintext, enabling deduplication.
type ContentID [32]byte

func (id ContentID) String() string { return hex.EncodeToString(id[:]) }

func (id ContentID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *ContentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return vaulterr.New(vaulterr.CodeInvalidInput, "invalid content id hex")
	}
	copy(id[:], b)
	return nil
}

// BlobKind tags the kind of payload a BlobPointer refers to.
type BlobKind uint8

const (
	BlobKindCredential     BlobKind = 0x01
	BlobKindAssociatedData BlobKind = 0x02
)

func (k BlobKind) Valid() bool {
	return k == BlobKindCredential || k == BlobKindAssociatedData
}

// CredentialStatus tags whether a credential is active or retired.
type CredentialStatus uint8

const (
	CredentialStatusActive CredentialStatus = iota
	CredentialStatusRetired
)

func (s CredentialStatus) String() string {
	if s == CredentialStatusRetired {
		return "retired"
	}
	return "active"
}

// DeviceID is a 16-byte per-device identifier.
type DeviceID [16]byte

func (id DeviceID) String() string { return hex.EncodeToString(id[:]) }

func (id DeviceID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *DeviceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return vaulterr.New(vaulterr.CodeInvalidInput, "invalid device id hex")
	}
	copy(id[:], b)
	return nil
}

// NewDeviceID generates a fresh random device id.
func NewDeviceID() (DeviceID, error) {
	var id DeviceID
	if _, err := rand.Read(id[:]); err != nil {
		return id, vaulterr.Wrap(vaulterr.CodeInternal, "generate device id", err)
	}
	return id, nil
}
