package vaultcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// Domain-separation labels, exact byte strings fixed by the wire format.
var (
	labelAccountID    = []byte("worldid:account-id")
	labelIssuerBlind  = []byte("worldid:issuer-blind")
	labelSessionR     = []byte("worldid:session-r")
	labelActionScope  = []byte("worldid:action-scope")
	labelProofRequest = []byte("worldid:proof-request")

	aadSuffixDeviceState   = []byte("worldid:device-state")
	aadSuffixVaultKeyWrap  = []byte("worldid:vault-key-wrap")
	aadSuffixPendingStore  = []byte("worldid:pending-actions")
	aadSuffixBlobCred      = []byte("vault:blob:cred")
	aadSuffixBlobAD        = []byte("vault:blob:ad")
	aadSuffixVaultIndex    = []byte("vault:index")
	aadSuffixTransfer      = []byte("worldid:credential-transfer")
	aadSuffixProvisioning  = []byte("worldid:vault-provisioning")
)

// DeriveAccountID computes account_id = SHA256("worldid:account-id" || vaultKey).
func DeriveAccountID(vaultKey [32]byte) [32]byte {
	h := sha256.New()
	h.Write(labelAccountID)
	h.Write(vaultKey[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hkdfExpand32(secret, info []byte) ([32]byte, error) {
	var out [32]byte
	r := hkdf.Expand(sha256.New, secret, info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, vaulterr.Wrap(vaulterr.CodeKeyDerivationFailed, "hkdf expand", err)
	}
	return out, nil
}

// DeriveIssuerBlind computes issuer_blind = HKDF_Expand(seed, "worldid:issuer-blind" || schema_id_le8, 32).
func DeriveIssuerBlind(issuerBlindSeed [32]byte, schemaID uint64) ([32]byte, error) {
	info := make([]byte, 0, len(labelIssuerBlind)+8)
	info = append(info, labelIssuerBlind...)
	var le8 [8]byte
	binary.LittleEndian.PutUint64(le8[:], schemaID)
	info = append(info, le8[:]...)
	return hkdfExpand32(issuerBlindSeed[:], info)
}

// DeriveSessionR computes session_r = HKDF_Expand(seed, "worldid:session-r" || rp_id || action_id, 32).
func DeriveSessionR(sessionBlindSeed [32]byte, rpID, actionID [32]byte) ([32]byte, error) {
	info := make([]byte, 0, len(labelSessionR)+64)
	info = append(info, labelSessionR...)
	info = append(info, rpID[:]...)
	info = append(info, actionID[:]...)
	return hkdfExpand32(sessionBlindSeed[:], info)
}

// ComputeActionScope computes action_scope = SHA256("worldid:action-scope" || rp_id || action_id).
func ComputeActionScope(rpID, actionID [32]byte) [32]byte {
	h := sha256.New()
	h.Write(labelActionScope)
	h.Write(rpID[:])
	h.Write(actionID[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeRequestID computes request_id = SHA256("worldid:proof-request" || signed_request_bytes).
func ComputeRequestID(signedRequest []byte) [32]byte {
	h := sha256.New()
	h.Write(labelProofRequest)
	h.Write(signedRequest)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// AADDeviceState builds the AAD for the per-device AccountState blob.
func AADDeviceState(accountID [32]byte, deviceID [16]byte) []byte {
	return concatAAD(accountID[:], deviceID[:], aadSuffixDeviceState)
}

// AADVaultKeyWrap builds the AAD for the wrapped vault key.
func AADVaultKeyWrap(accountID [32]byte, deviceID [16]byte) []byte {
	return concatAAD(accountID[:], deviceID[:], aadSuffixVaultKeyWrap)
}

// AADPendingStore builds the AAD for the pending-action store blob.
func AADPendingStore(accountID [32]byte, deviceID [16]byte) []byte {
	return concatAAD(accountID[:], deviceID[:], aadSuffixPendingStore)
}

// AADBlobCredential builds the AAD for a credential blob ciphertext.
func AADBlobCredential(accountID, contentID [32]byte) []byte {
	return concatAAD(accountID[:], contentID[:], aadSuffixBlobCred)
}

// AADBlobAssociatedData builds the AAD for an associated-data blob ciphertext.
func AADBlobAssociatedData(accountID, contentID [32]byte) []byte {
	return concatAAD(accountID[:], contentID[:], aadSuffixBlobAD)
}

// AADVaultIndex builds the AAD for the vault index snapshot.
func AADVaultIndex(accountID [32]byte) []byte {
	out := make([]byte, 0, 32+len(aadSuffixVaultIndex))
	out = append(out, accountID[:]...)
	out = append(out, aadSuffixVaultIndex...)
	return out
}

// AADTransfer builds the AAD for a credential transfer ciphertext.
func AADTransfer(accountID [32]byte) []byte {
	out := make([]byte, 0, 32+len(aadSuffixTransfer))
	out = append(out, accountID[:]...)
	out = append(out, aadSuffixTransfer...)
	return out
}

// AADProvisioning builds the AAD for a provisioning envelope ciphertext.
func AADProvisioning(ephemeralPub, recipientPub [32]byte) []byte {
	out := make([]byte, 0, 64+len(aadSuffixProvisioning))
	out = append(out, ephemeralPub[:]...)
	out = append(out, recipientPub[:]...)
	out = append(out, aadSuffixProvisioning...)
	return out
}

func concatAAD(a, b, suffix []byte) []byte {
	out := make([]byte, 0, len(a)+len(b)+len(suffix))
	out = append(out, a...)
	out = append(out, b...)
	out = append(out, suffix...)
	return out
}

// ProvisioningHKDFInfo builds the HKDF info for the provisioning envelope's
// AEAD key: label || ephemeral_pub || recipient_pub.
func ProvisioningHKDFInfo(ephemeralPub, recipientPub [32]byte) []byte {
	out := make([]byte, 0, len(aadSuffixProvisioning)+64)
	out = append(out, aadSuffixProvisioning...)
	out = append(out, ephemeralPub[:]...)
	out = append(out, recipientPub[:]...)
	return out
}

// DeriveProvisioningKey derives the AEAD key for a provisioning envelope from
// the X25519 shared secret.
func DeriveProvisioningKey(sharedSecret [32]byte, ephemeralPub, recipientPub [32]byte) ([32]byte, error) {
	return hkdfExpand32(sharedSecret[:], ProvisioningHKDFInfo(ephemeralPub, recipientPub))
}
