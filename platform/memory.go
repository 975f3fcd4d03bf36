package platform

import (
	"context"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// MemoryBlobStore is an in-memory AtomicBlobStore for tests. WriteAtomic
// replaces the named entry wholesale, mirroring the all-or-nothing contract
// without touching a filesystem.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Read(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, vaulterr.IO("blob not found: "+name, nil)
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBlobStore) WriteAtomic(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *MemoryBlobStore) Exists(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[name]
	return ok, nil
}

// MemoryVaultStore is an in-memory VaultFileStore for tests.
type MemoryVaultStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryVaultStore() *MemoryVaultStore {
	return &MemoryVaultStore{}
}

func (m *MemoryVaultStore) Len() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

func (m *MemoryVaultStore) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off > int64(len(m.data)) {
		return 0, vaulterr.New(vaulterr.CodeUnexpectedEOF, "read past end of vault store")
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, vaulterr.New(vaulterr.CodeUnexpectedEOF, "short read from vault store")
	}
	return n, nil
}

func (m *MemoryVaultStore) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

func (m *MemoryVaultStore) Append(p []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int64(len(m.data))
	m.data = append(m.data, p...)
	return off, nil
}

func (m *MemoryVaultStore) Sync() error { return nil }

func (m *MemoryVaultStore) SetLen(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < 0 {
		return vaulterr.New(vaulterr.CodeInvalidInput, "negative length")
	}
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

func (m *MemoryVaultStore) Close() error { return nil }

// MemoryKeystore is an in-memory DeviceKeystore backed by a fixed key, for
// tests that do not exercise real device-bound hardware.
type MemoryKeystore struct {
	key [chacha20poly1305.KeySize]byte
}

func NewMemoryKeystore(key [32]byte) *MemoryKeystore {
	return &MemoryKeystore{key: key}
}

func (k *MemoryKeystore) Seal(aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(k.key[:])
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeKeystoreError, "construct aead", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	out := aead.Seal(nonce, nonce, plaintext, aad)
	return out, nil
}

func (k *MemoryKeystore) Open(aad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return nil, vaulterr.New(vaulterr.CodeKeystoreError, "ciphertext too short")
	}
	aead, err := chacha20poly1305.NewX(k.key[:])
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeKeystoreError, "construct aead", err)
	}
	nonce := ciphertext[:chacha20poly1305.NonceSizeX]
	pt, err := aead.Open(nil, nonce, ciphertext[chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeKeystoreError, "aead open", err)
	}
	return pt, nil
}

// MemoryLockManager provides in-process-only account exclusion for tests.
type MemoryLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *MemoryLockManager) lockFor(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	return l
}

func (m *MemoryLockManager) WithAccountLock(_ context.Context, accountID string, fn func() error) error {
	l := m.lockFor(accountID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (m *MemoryLockManager) TryWithAccountLock(accountID string, fn func() error) (bool, error) {
	l := m.lockFor(accountID)
	if !l.TryLock() {
		return false, nil
	}
	defer l.Unlock()
	if err := fn(); err != nil {
		return true, err
	}
	return true, nil
}
