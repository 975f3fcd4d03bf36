package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestSoftwareKeystoreSealOpenRoundTrip(t *testing.T) {
	var root [32]byte
	if _, err := rand.Read(root[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	ks, err := NewSoftwareKeystore(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	aad := []byte("account-id||device-id||worldid:vault-key-wrap")
	plaintexts := [][]byte{
		[]byte("short"),
		make([]byte, 64),
		{},
	}
	for _, pt := range plaintexts {
		sealed, err := ks.Seal(aad, pt)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		got, err := ks.Open(aad, sealed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip mismatch: got %x want %x", got, pt)
		}
	}
}

func TestSoftwareKeystoreRejectsWrongAAD(t *testing.T) {
	var root [32]byte
	ks, _ := NewSoftwareKeystore(root)
	sealed, err := ks.Seal([]byte("aad-a"), []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := ks.Open([]byte("aad-b"), sealed); err == nil {
		t.Fatal("expected open with wrong aad to fail")
	}
}

func TestSoftwareKeystoreDifferentRootsDontInterop(t *testing.T) {
	var rootA, rootB [32]byte
	rootA[0] = 1
	rootB[0] = 2
	ksA, _ := NewSoftwareKeystore(rootA)
	ksB, _ := NewSoftwareKeystore(rootB)

	sealed, err := ksA.Seal([]byte("aad"), []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := ksB.Open([]byte("aad"), sealed); err == nil {
		t.Fatal("expected cross-root open to fail")
	}
}
