// Package provisioning implements the asymmetrically-encrypted envelope
// that moves an account's vault key and blinding seeds to a new device:
// X25519 key agreement between a sender-generated ephemeral keypair and the
// recipient device's public key, feeding an HKDF-derived AEAD key.
package provisioning

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"

	"golang.org/x/crypto/curve25519"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// headerSize is the version u32 prefix preceding ephemeral_pub[32] and the
// sealed payload (nonce[24] || ciphertext_with_tag).
const headerSize = 4

// Payload is the plaintext moved inside the envelope: the vault key and the
// two blinding seeds needed to reconstruct the full key hierarchy.
type Payload struct {
	VaultKey         [32]byte `json:"vault_key"`
	IssuerBlindSeed  [32]byte `json:"issuer_blind_seed"`
	SessionBlindSeed [32]byte `json:"session_blind_seed"`
}

// GenerateDeviceKeypair creates a fresh X25519 keypair for a new device to
// receive provisioning envelopes. The private scalar is the device_secret
// passed to Import; the public key is published out-of-band (e.g. QR code)
// to whichever device will call Export.
func GenerateDeviceKeypair() (priv, pub [32]byte, err error) {
	if _, rerr := rand.Read(priv[:]); rerr != nil {
		return priv, pub, vaulterr.Wrap(vaulterr.CodeInternal, "generate device scalar", rerr)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, vaulterr.Wrap(vaulterr.CodeInternal, "derive device public key", err)
	}
	copy(pub[:], p)
	return priv, pub, nil
}

// Export builds a provisioning envelope carrying payload, encrypted for the
// device holding the private key matching recipientPub.
func Export(recipientPub [32]byte, payload Payload, cfg config.Config) ([]byte, error) {
	var ephemeralPriv [32]byte
	if _, err := rand.Read(ephemeralPriv[:]); err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeInternal, "generate ephemeral scalar", err)
	}
	ephemeralPubBytes, err := curve25519.X25519(ephemeralPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeInternal, "derive ephemeral public key", err)
	}
	var ephemeralPub [32]byte
	copy(ephemeralPub[:], ephemeralPubBytes)

	sharedBytes, err := curve25519.X25519(ephemeralPriv[:], recipientPub[:])
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeKeyDerivationFailed, "x25519 agreement", err)
	}
	var shared [32]byte
	copy(shared[:], sharedBytes)

	key, err := vaultcrypto.DeriveProvisioningKey(shared, ephemeralPub, recipientPub)
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeSerializationError, "encode provisioning payload", err)
	}
	sealed, err := vaultcrypto.Seal(key, vaultcrypto.AADProvisioning(ephemeralPub, recipientPub), plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+32+len(sealed))
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], cfg.ProvisioningVersion)
	out = append(out, verBuf[:]...)
	out = append(out, ephemeralPub[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Import decrypts a provisioning envelope using the recipient's device
// private key, recovering the payload Export sealed.
func Import(recipientPriv [32]byte, envelope []byte, cfg config.Config) (Payload, error) {
	if len(envelope) < headerSize+32 {
		return Payload{}, vaulterr.New(vaulterr.CodeUnexpectedEOF, "provisioning envelope truncated")
	}
	version := binary.LittleEndian.Uint32(envelope[0:4])
	if version > cfg.ProvisioningVersion {
		return Payload{}, vaulterr.ErrUnsupportedVersion
	}
	var ephemeralPub [32]byte
	copy(ephemeralPub[:], envelope[4:36])
	sealed := envelope[36:]

	recipientPubBytes, err := curve25519.X25519(recipientPriv[:], curve25519.Basepoint)
	if err != nil {
		return Payload{}, vaulterr.Wrap(vaulterr.CodeInternal, "derive recipient public key", err)
	}
	var recipientPub [32]byte
	copy(recipientPub[:], recipientPubBytes)

	sharedBytes, err := curve25519.X25519(recipientPriv[:], ephemeralPub[:])
	if err != nil {
		return Payload{}, vaulterr.Wrap(vaulterr.CodeKeyDerivationFailed, "x25519 agreement", err)
	}
	var shared [32]byte
	copy(shared[:], sharedBytes)

	key, err := vaultcrypto.DeriveProvisioningKey(shared, ephemeralPub, recipientPub)
	if err != nil {
		return Payload{}, err
	}
	plaintext, err := vaultcrypto.Open(key, vaultcrypto.AADProvisioning(ephemeralPub, recipientPub), sealed)
	if err != nil {
		return Payload{}, err
	}
	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Payload{}, vaulterr.Wrap(vaulterr.CodeDeserializationError, "decode provisioning payload", err)
	}
	return payload, nil
}

// PayloadFromKeyMaterial builds an envelope Payload from a vault key and
// its two blinding seeds.
func PayloadFromKeyMaterial(vaultKey vaulttypes.VaultKey, issuerSeed, sessionSeed vaulttypes.BlindSeed) Payload {
	return Payload{
		VaultKey:         [32]byte(vaultKey),
		IssuerBlindSeed:  [32]byte(issuerSeed),
		SessionBlindSeed: [32]byte(sessionSeed),
	}
}
