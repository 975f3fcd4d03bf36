package fsplatform

import (
	"os"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// FSVaultStore is a platform.VaultFileStore backed by a single os.File
// opened for random access, with an explicit fsync primitive and an
// append operation that always targets the current end of file.
type FSVaultStore struct {
	f *os.File
}

// OpenFSVaultStore opens (creating if necessary) the vault file at path.
func OpenFSVaultStore(path string) (*FSVaultStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, vaulterr.IO("open vault file", err)
	}
	return &FSVaultStore{f: f}, nil
}

func (s *FSVaultStore) Len() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, vaulterr.IO("stat vault file", err)
	}
	return fi.Size(), nil
}

func (s *FSVaultStore) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(p, off)
	if err != nil {
		return n, vaulterr.IO("read vault file", err)
	}
	return n, nil
}

func (s *FSVaultStore) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, vaulterr.IO("write vault file", err)
	}
	return n, nil
}

func (s *FSVaultStore) Append(p []byte) (int64, error) {
	off, err := s.Len()
	if err != nil {
		return 0, err
	}
	if _, err := s.WriteAt(p, off); err != nil {
		return 0, err
	}
	return off, nil
}

func (s *FSVaultStore) Sync() error {
	if err := s.f.Sync(); err != nil {
		return vaulterr.IO("fsync vault file", err)
	}
	return nil
}

func (s *FSVaultStore) SetLen(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return vaulterr.IO("truncate vault file", err)
	}
	return nil
}

func (s *FSVaultStore) Close() error {
	if err := s.f.Close(); err != nil {
		return vaulterr.IO("close vault file", err)
	}
	return nil
}
