// Package fsplatform implements the platform capability contracts against
// the local filesystem: an atomic blob store, a random-access vault file
// store, and the on-disk account directory layout.
package fsplatform

import (
	"os"
	"path/filepath"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// AccountDir returns the on-disk directory for one account under root.
//
// Storage layout:
//
//	<root>/worldid/accounts/<account_id_hex>/
func AccountDir(root, accountIDHex string) string {
	return filepath.Join(root, "worldid", "accounts", accountIDHex)
}

// AccountsRoot returns the directory containing every account under root.
func AccountsRoot(root string) string {
	return filepath.Join(root, "worldid", "accounts")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return vaulterr.IO("mkdir "+path, err)
	}
	return nil
}
