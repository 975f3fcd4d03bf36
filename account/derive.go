package account

import "github.com/worldcoin/walletkit-vault/vaultcrypto"

// DeriveIssuerBlind derives the per-schema issuer blinding factor from this
// account's issuer blind seed.
func (a *Account) DeriveIssuerBlind(schemaID uint64) ([32]byte, error) {
	return vaultcrypto.DeriveIssuerBlind([32]byte(a.state.IssuerBlindSeed), schemaID)
}

// DeriveSessionR derives the per-(relying party, action) session blinding
// factor from this account's session blind seed.
func (a *Account) DeriveSessionR(rpID, actionID [32]byte) ([32]byte, error) {
	return vaultcrypto.DeriveSessionR([32]byte(a.state.SessionBlindSeed), rpID, actionID)
}
