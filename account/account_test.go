package account

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/proofcache"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	km, err := NewKeyMaterial()
	if err != nil {
		t.Fatalf("new key material: %v", err)
	}
	var keystoreKey [32]byte
	keystoreKey[0] = 0x42

	var deviceID vaulttypes.DeviceID
	deviceID[0] = 0x01

	cache, err := proofcache.Open(filepath.Join(t.TempDir(), "proof_cache.db"))
	if err != nil {
		t.Fatalf("open proof cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	a, err := Create(
		platform.NewMemoryBlobStore(),
		platform.NewMemoryVaultStore(),
		platform.NewMemoryKeystore(keystoreKey),
		platform.NewMemoryLockManager(),
		cache,
		deviceID,
		km,
		config.DefaultConfig(),
		1000,
		nil,
	)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestPutGetListRetireCredential(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()

	credID, _ := vaulttypes.NewCredentialID()
	blob := []byte("world id credential payload")

	if err := a.PutCredential(ctx, credID, 7, nil, blob, nil, 1000); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	got, assoc, err := a.GetCredential(credID)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("credential mismatch: got %q want %q", got, blob)
	}
	if assoc != nil {
		t.Fatalf("expected no associated data, got %q", assoc)
	}

	list := a.ListCredentials(nil, 1000)
	if len(list) != 1 || list[0].CredentialID != credID {
		t.Fatalf("expected one active credential in list, got %+v", list)
	}

	if err := a.RetireCredential(ctx, credID, 2000); err != nil {
		t.Fatalf("retire credential: %v", err)
	}
	rec, err := a.GetCredentialRecord(credID)
	if err != nil {
		t.Fatalf("get record after retire: %v", err)
	}
	if rec.Status != vaulttypes.CredentialStatusRetired {
		t.Fatalf("expected retired status, got %v", rec.Status)
	}
	if rec.UpdatedAt != 2000 {
		t.Fatalf("expected updated_at to advance, got %d", rec.UpdatedAt)
	}

	activeOnly := a.ListCredentials(nil, 2000)
	if len(activeOnly) != 0 {
		t.Fatalf("expected retired credential to drop from default filter, got %+v", activeOnly)
	}
}

func TestPutCredentialUpdatePreservesCreatedAt(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	credID, _ := vaulttypes.NewCredentialID()

	if err := a.PutCredential(ctx, credID, 1, nil, []byte("v1"), nil, 1000); err != nil {
		t.Fatalf("initial put: %v", err)
	}
	if err := a.PutCredential(ctx, credID, 1, nil, []byte("v2"), nil, 2000); err != nil {
		t.Fatalf("update put: %v", err)
	}

	rec, err := a.GetCredentialRecord(credID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.CreatedAt != 1000 {
		t.Fatalf("expected created_at preserved at 1000, got %d", rec.CreatedAt)
	}
	if rec.UpdatedAt != 2000 {
		t.Fatalf("expected updated_at to advance to 2000, got %d", rec.UpdatedAt)
	}

	got, _, err := a.GetCredential(credID)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("expected updated blob, got %q", got)
	}
}

func TestGetCredentialNotFound(t *testing.T) {
	a := newTestAccount(t)
	var missing vaulttypes.CredentialID
	missing[0] = 0xFF
	if _, _, err := a.GetCredential(missing); err == nil {
		t.Fatal("expected error for missing credential")
	}
}

func TestDeriveIssuerBlindAndSessionRAreDeterministic(t *testing.T) {
	a := newTestAccount(t)
	b1, err := a.DeriveIssuerBlind(99)
	if err != nil {
		t.Fatalf("derive issuer blind: %v", err)
	}
	b2, err := a.DeriveIssuerBlind(99)
	if err != nil {
		t.Fatalf("derive issuer blind: %v", err)
	}
	if b1 != b2 {
		t.Fatal("expected deterministic issuer blind for the same schema id")
	}

	var rpID, actionID [32]byte
	rpID[0] = 1
	actionID[0] = 2
	r1, err := a.DeriveSessionR(rpID, actionID)
	if err != nil {
		t.Fatalf("derive session r: %v", err)
	}
	r2, err := a.DeriveSessionR(rpID, actionID)
	if err != nil {
		t.Fatalf("derive session r: %v", err)
	}
	if r1 != r2 {
		t.Fatal("expected deterministic session r for the same (rp_id, action_id)")
	}
}

func TestLeafIndexCacheRoundTrip(t *testing.T) {
	a := newTestAccount(t)
	if a.LeafIndexCache() != nil {
		t.Fatal("expected no leaf index cache initially")
	}
	if err := a.SetLeafIndexCache(42, 1500); err != nil {
		t.Fatalf("set leaf index cache: %v", err)
	}
	got := a.LeafIndexCache()
	if got == nil || *got != 42 {
		t.Fatalf("expected leaf index cache 42, got %v", got)
	}
}
