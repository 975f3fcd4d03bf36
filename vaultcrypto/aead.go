// Package vaultcrypto implements the AEAD sealing, content hashing, and
// domain-separated key derivation used throughout the credential vault.
// Every ciphertext in the system is XChaCha20-Poly1305 with a random
// 24-byte nonce and an exact, non-negotiable associated-data string.
package vaultcrypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

const (
	KeySize   = chacha20poly1305.KeySize // 32
	NonceSize = chacha20poly1305.NonceSizeX // 24
	TagSize   = 16
)

// Seal encrypts plaintext under key with aad bound in, using a fresh random
// nonce. The returned slice is nonce || ciphertext||tag.
func Seal(key [KeySize]byte, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeEncryptionFailed, "construct aead", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeEncryptionFailed, "read nonce", err)
	}
	out := make([]byte, 0, NonceSize+len(plaintext)+TagSize)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)
	return out, nil
}

// Open decrypts a nonce||ciphertext||tag blob produced by Seal, verifying aad.
func Open(key [KeySize]byte, aad, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, vaulterr.New(vaulterr.CodeDecryptionFailed, "sealed blob too short")
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeDecryptionFailed, "construct aead", err)
	}
	nonce := sealed[:NonceSize]
	ct := sealed[NonceSize:]
	pt, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeDecryptionFailed, "aead open", err)
	}
	return pt, nil
}

// ContentID computes the content-addressed identifier of a blob's plaintext.
func ContentID(plaintext []byte) [32]byte {
	return sha256.Sum256(plaintext)
}

// RecordHash computes the hash used to bind a superblock commit to its
// referenced record body.
func RecordHash(body []byte) [32]byte {
	return sha256.Sum256(body)
}
