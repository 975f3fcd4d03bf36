package fsplatform

import (
	"os"
	"path/filepath"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// FSBlobStore is a platform.AtomicBlobStore rooted at one directory. It
// generalizes the write-temp -> fsync temp -> rename -> fsync dir pattern
// to an arbitrary named blob instead of one hardcoded manifest file.
type FSBlobStore struct {
	dir string
}

// NewFSBlobStore creates the backing directory if needed and returns a
// blob store rooted at it.
func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &FSBlobStore{dir: dir}, nil
}

func (s *FSBlobStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FSBlobStore) Read(name string) ([]byte, error) {
	return readFileFromDir(s.dir, name)
}

func (s *FSBlobStore) Exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, vaulterr.IO("stat "+name, err)
}

func (s *FSBlobStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return vaulterr.IO("remove "+name, err)
	}
	return nil
}

// WriteAtomic writes data as a crash-safe commit point: write temp -> fsync
// temp -> rename -> fsync dir.
func (s *FSBlobStore) WriteAtomic(name string, data []byte) error {
	final := s.path(name)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return vaulterr.IO("open tmp for "+name, err)
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return vaulterr.IO("write tmp for "+name, werr)
	}
	if serr != nil {
		return vaulterr.IO("fsync tmp for "+name, serr)
	}
	if cerr != nil {
		return vaulterr.IO("close tmp for "+name, cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return vaulterr.IO("rename for "+name, err)
	}

	d, err := os.Open(s.dir)
	if err != nil {
		return vaulterr.IO("open dir for fsync", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return vaulterr.IO("fsync dir", err)
	}
	if err := d.Close(); err != nil {
		return vaulterr.IO("close dir", err)
	}
	return nil
}
