package fsplatform

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFSBlobStoreWriteAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBlobStore(dir)
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}
	if ok, _ := s.Exists("account_state.bin"); ok {
		t.Fatalf("expected blob to be absent initially")
	}
	if err := s.WriteAtomic("account_state.bin", []byte("payload-v1")); err != nil {
		t.Fatalf("write atomic: %v", err)
	}
	got, err := s.Read("account_state.bin")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("payload-v1")) {
		t.Fatalf("unexpected contents: %q", got)
	}
	// No leftover .tmp file after a successful write.
	if _, err := os.Stat(filepath.Join(dir, "account_state.bin.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be gone, stat err = %v", err)
	}

	if err := s.WriteAtomic("account_state.bin", []byte("payload-v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Read("account_state.bin")
	if err != nil {
		t.Fatalf("read after overwrite: %v", err)
	}
	if !bytes.Equal(got, []byte("payload-v2")) {
		t.Fatalf("unexpected contents after overwrite: %q", got)
	}

	if err := s.Delete("account_state.bin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := s.Exists("account_state.bin"); ok {
		t.Fatalf("expected blob deleted")
	}
}

func TestFSVaultStoreAppendReadAtSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "account.vault")
	v, err := OpenFSVaultStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = v.Close() })

	off1, err := v.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("expected offset 0, got %d", off1)
	}
	off2, err := v.Append([]byte("world"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if off2 != 5 {
		t.Fatalf("expected offset 5, got %d", off2)
	}
	if err := v.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	buf := make([]byte, 10)
	if _, err := v.ReadAt(buf, 0); err != nil {
		t.Fatalf("read at: %v", err)
	}
	if string(buf) != "helloworld" {
		t.Fatalf("unexpected contents: %q", buf)
	}

	l, err := v.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if l != 10 {
		t.Fatalf("expected len 10, got %d", l)
	}

	if err := v.SetLen(5); err != nil {
		t.Fatalf("set len: %v", err)
	}
	l, _ = v.Len()
	if l != 5 {
		t.Fatalf("expected truncated len 5, got %d", l)
	}
}

func TestAccountDirLayout(t *testing.T) {
	got := AccountDir("/tmp/wid-s1", "deadbeef")
	want := filepath.Join("/tmp/wid-s1", "worldid", "accounts", "deadbeef")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
