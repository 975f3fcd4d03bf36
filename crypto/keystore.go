package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// SoftwareKeystore is a platform.DeviceKeystore fallback for targets without
// a hardware-backed secure enclave: an inner RFC 3394 AES-256 key wrap under
// an outer XChaCha20-Poly1305 seal, both keyed off a root secret supplied by
// the caller at construction. It satisfies platform.DeviceKeystore but must
// never be used where the root secret cannot itself be stored at least as
// securely as the data it protects — real deployments should prefer a
// hardware keystore and treat this as the dev/CI/no-enclave path.
type SoftwareKeystore struct {
	kek     [32]byte // RFC 3394 key-encryption key, inner layer
	sealKey [32]byte // XChaCha20-Poly1305 key, outer layer
}

var (
	labelKEK     = []byte("worldid:keystore-kek")
	labelSealKey = []byte("worldid:keystore-seal")
)

// NewSoftwareKeystore derives the inner wrap key and outer seal key from a
// 32-byte root secret via domain-separated HKDF-Expand.
func NewSoftwareKeystore(rootSecret [32]byte) (*SoftwareKeystore, error) {
	kek, err := hkdfExpand32Keystore(rootSecret[:], labelKEK)
	if err != nil {
		return nil, err
	}
	sealKey, err := hkdfExpand32Keystore(rootSecret[:], labelSealKey)
	if err != nil {
		return nil, err
	}
	return &SoftwareKeystore{kek: kek, sealKey: sealKey}, nil
}

func hkdfExpand32Keystore(secret, info []byte) ([32]byte, error) {
	var out [32]byte
	r := hkdf.Expand(sha256.New, secret, info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, vaulterr.Wrap(vaulterr.CodeKeyDerivationFailed, "hkdf expand", err)
	}
	return out, nil
}

// Seal implements platform.DeviceKeystore. It pads plaintext to a multiple
// of 8 bytes (RFC 3394 requirement), AES-KW wraps it under kek, then seals
// the wrapped blob with XChaCha20-Poly1305 under sealKey with aad bound in.
func (k *SoftwareKeystore) Seal(aad, plaintext []byte) ([]byte, error) {
	padded, padLen := kwPad(plaintext)
	wrapped, err := AESKeyWrapRFC3394(k.kek[:], padded)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeEncryptionFailed, "aes key wrap", err)
	}
	out := make([]byte, 0, 1+len(wrapped))
	out = append(out, byte(padLen))
	out = append(out, wrapped...)
	sealed, err := vaultcrypto.Seal(k.sealKey, aad, out)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// Open implements platform.DeviceKeystore, reversing Seal.
func (k *SoftwareKeystore) Open(aad, ciphertext []byte) ([]byte, error) {
	out, err := vaultcrypto.Open(k.sealKey, aad, ciphertext)
	if err != nil {
		return nil, err
	}
	if len(out) < 1 {
		return nil, vaulterr.New(vaulterr.CodeDecryptionFailed, "keystore blob truncated")
	}
	padLen := int(out[0])
	wrapped := out[1:]
	padded, err := AESKeyUnwrapRFC3394(k.kek[:], wrapped)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeDecryptionFailed, "aes key unwrap", err)
	}
	if padLen > len(padded) {
		return nil, vaulterr.New(vaulterr.CodeDecryptionFailed, "keystore pad length invalid")
	}
	return padded[:len(padded)-padLen], nil
}

// kwPad pads data up to the next multiple of 8 bytes (minimum 16, the RFC
// 3394 floor), returning the padded buffer and how many pad bytes were added.
func kwPad(data []byte) ([]byte, int) {
	size := len(data)
	if size < 16 {
		size = 16
	}
	if rem := size % 8; rem != 0 {
		size += 8 - rem
	}
	padLen := size - len(data)
	out := make([]byte, size)
	copy(out, data)
	if padLen > 0 {
		pad := make([]byte, padLen)
		_, _ = rand.Read(pad) // padding bytes are discarded on unwrap, randomness just avoids a fixed pattern
		copy(out[len(data):], pad)
	}
	return out, padLen
}
