package proofcache

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proof_cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMerkleProofCacheGetPutExpiry(t *testing.T) {
	c := openTestCache(t)
	var root [32]byte
	root[0] = 0xAA

	if _, ok, err := c.GetMerkleProof(1, root, 7, 1000); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.PutMerkleProof(1, root, 7, []byte("proof-bytes"), 1000, 60); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.GetMerkleProof(1, root, 7, 1030)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "proof-bytes" {
		t.Fatalf("unexpected proof bytes: %q", got)
	}
	if _, ok, _ := c.GetMerkleProof(1, root, 7, 1061); ok {
		t.Fatalf("expected expiry after TTL")
	}
}

func TestSessionKeyCacheGetPut(t *testing.T) {
	c := openTestCache(t)
	var rp [32]byte
	rp[0] = 0x01
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	if err := c.PutSessionKey(rp, k, 100, 10); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.GetSessionKey(rp, 105)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != k {
		t.Fatalf("unexpected session key")
	}
	if _, ok, _ := c.GetSessionKey(rp, 111); ok {
		t.Fatalf("expected expiry")
	}
}

func TestReplayGuardIdempotentFastPath(t *testing.T) {
	c := openTestCache(t)
	var req [32]byte
	req[0] = 1

	if err := c.RecordPendingReply(req, []byte("pkg1"), 0, 900); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, ok, err := c.ReplayGuardByRequestID(req, 500)
	if err != nil || !ok {
		t.Fatalf("expected replay hit, ok=%v err=%v", ok, err)
	}
	if string(got) != "pkg1" {
		t.Fatalf("unexpected package: %q", got)
	}
	if _, ok, _ := c.ReplayGuardByRequestID(req, 901); ok {
		t.Fatalf("expected pending reply to expire after its TTL")
	}
}

func TestMarkNullifierConsumedIsPermanentAndDistinctFromPending(t *testing.T) {
	c := openTestCache(t)
	var n [32]byte
	n[0] = 2

	if seen, _ := c.HasSeenNullifier(n, 0); seen {
		t.Fatalf("expected nullifier not seen yet")
	}
	if err := c.MarkNullifierConsumed(n, 1000); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if seen, err := c.HasSeenNullifier(n, 1000); err != nil || !seen {
		t.Fatalf("expected nullifier seen immediately, seen=%v err=%v", seen, err)
	}
	if seen, err := c.HasSeenNullifier(n, 1000+int64(365*24*3600)); err != nil || !seen {
		t.Fatalf("expected consumed marker to never expire, seen=%v err=%v", seen, err)
	}
}

func TestOpenRebuildsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proof_cache.db")
	if err := os.WriteFile(path, []byte("not a bolt database"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	c, err := Open(path)
	if err != nil {
		t.Fatalf("expected rebuild to succeed, got: %v", err)
	}
	defer c.Close()
	var root [32]byte
	if _, ok, err := c.GetMerkleProof(1, root, 0, 0); err != nil || ok {
		t.Fatalf("expected empty rebuilt cache, ok=%v err=%v", ok, err)
	}
}
