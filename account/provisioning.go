package account

import "github.com/worldcoin/walletkit-vault/provisioning"

// ExportVaultProvisioningEnvelope builds a provisioning envelope carrying
// this account's vault key and blinding seeds, encrypted for the device
// holding the private key matching recipientPub.
func (a *Account) ExportVaultProvisioningEnvelope(recipientPub [32]byte) ([]byte, error) {
	payload := provisioning.PayloadFromKeyMaterial(a.key, a.state.IssuerBlindSeed, a.state.SessionBlindSeed)
	return provisioning.Export(recipientPub, payload, a.cfg)
}
