package transfer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

func testKey() [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key := testKey()
	var accountID vaulttypes.AccountID
	accountID[0] = 0xAB
	credID, _ := vaulttypes.NewCredentialID()

	payload := Bytes{
		Version: 1,
		Record: vaulttypes.CredentialRecord{
			CredentialID: credID,
			UpdatedAt:    5000,
			Status:       vaulttypes.CredentialStatusActive,
		},
		CredBlob:  []byte("credential bytes"),
		AssocData: []byte("assoc bytes"),
	}

	sealed, err := Encode(key, accountID, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(key, accountID, sealed, config.DefaultConfig())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Record.CredentialID != credID {
		t.Fatalf("credential id mismatch: got %v want %v", got.Record.CredentialID, credID)
	}
	if !bytes.Equal(got.CredBlob, payload.CredBlob) {
		t.Fatalf("cred blob mismatch: got %q want %q", got.CredBlob, payload.CredBlob)
	}
	if !bytes.Equal(got.AssocData, payload.AssocData) {
		t.Fatalf("assoc data mismatch: got %q want %q", got.AssocData, payload.AssocData)
	}
}

func TestDecodeRejectsAccountIDMismatch(t *testing.T) {
	key := testKey()
	var accountID, otherID vaulttypes.AccountID
	accountID[0] = 0xAB
	otherID[0] = 0xCD

	sealed, err := Encode(key, accountID, Bytes{Version: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = Decode(key, otherID, sealed, config.DefaultConfig())
	if err == nil {
		t.Fatal("expected error when decoding under the wrong account id's AAD")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	key := testKey()
	var accountID vaulttypes.AccountID
	accountID[0] = 0xAB

	sealed, err := Encode(key, accountID, Bytes{Version: 99})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.TransferVersion = 1
	_, err = Decode(key, accountID, sealed, cfg)
	if !errors.Is(err, vaulterr.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestShouldApply(t *testing.T) {
	older := vaulttypes.CredentialRecord{UpdatedAt: 1000}
	newer := vaulttypes.CredentialRecord{UpdatedAt: 2000}

	if !ShouldApply(nil, newer) {
		t.Fatal("expected apply when no local record exists")
	}
	if !ShouldApply(&older, newer) {
		t.Fatal("expected apply when incoming is strictly newer")
	}
	if ShouldApply(&newer, older) {
		t.Fatal("expected no-op when incoming is older than local")
	}
	if ShouldApply(&newer, newer) {
		t.Fatal("expected no-op when incoming is not strictly newer than local")
	}
}
