package provisioning

import (
	"testing"

	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

func testPayload() Payload {
	var p Payload
	for i := range p.VaultKey {
		p.VaultKey[i] = byte(i)
	}
	for i := range p.IssuerBlindSeed {
		p.IssuerBlindSeed[i] = byte(i + 1)
	}
	for i := range p.SessionBlindSeed {
		p.SessionBlindSeed[i] = byte(i + 2)
	}
	return p
}

func TestExportImportRoundTrip(t *testing.T) {
	recipientPriv, recipientPub, err := GenerateDeviceKeypair()
	if err != nil {
		t.Fatalf("generate device keypair: %v", err)
	}
	cfg := config.DefaultConfig()
	payload := testPayload()

	envelope, err := Export(recipientPub, payload, cfg)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := Import(recipientPriv, envelope, cfg)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got != payload {
		t.Fatalf("payload mismatch: got %+v want %+v", got, payload)
	}
}

func TestImportRejectsWrongRecipient(t *testing.T) {
	_, recipientPub, err := GenerateDeviceKeypair()
	if err != nil {
		t.Fatalf("generate recipient keypair: %v", err)
	}
	wrongPriv, _, err := GenerateDeviceKeypair()
	if err != nil {
		t.Fatalf("generate wrong keypair: %v", err)
	}
	cfg := config.DefaultConfig()

	envelope, err := Export(recipientPub, testPayload(), cfg)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := Import(wrongPriv, envelope, cfg); err == nil {
		t.Fatal("expected decryption failure for the wrong recipient key")
	}
}

func TestImportRejectsTruncatedEnvelope(t *testing.T) {
	recipientPriv, recipientPub, err := GenerateDeviceKeypair()
	if err != nil {
		t.Fatalf("generate device keypair: %v", err)
	}
	cfg := config.DefaultConfig()
	envelope, err := Export(recipientPub, testPayload(), cfg)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := Import(recipientPriv, envelope[:10], cfg); err == nil {
		t.Fatal("expected error for truncated envelope")
	}
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	recipientPriv, recipientPub, err := GenerateDeviceKeypair()
	if err != nil {
		t.Fatalf("generate device keypair: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.ProvisioningVersion = 99
	envelope, err := Export(recipientPub, testPayload(), cfg)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	importCfg := config.DefaultConfig()
	importCfg.ProvisioningVersion = 1
	if _, err := Import(recipientPriv, envelope, importCfg); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestPayloadFromKeyMaterialMatchesExportedFields(t *testing.T) {
	payload := testPayload()
	rebuilt := PayloadFromKeyMaterial(
		vaulttypes.VaultKey(payload.VaultKey),
		vaulttypes.BlindSeed(payload.IssuerBlindSeed),
		vaulttypes.BlindSeed(payload.SessionBlindSeed),
	)
	if rebuilt != payload {
		t.Fatalf("rebuilt payload mismatch: got %+v want %+v", rebuilt, payload)
	}
}
