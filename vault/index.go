package vault

import (
	"encoding/json"

	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

// serializeIndex renders a VaultIndex to its canonical plaintext encoding,
// JSON, the same way the platform blob store persists off-vault metadata.
func serializeIndex(idx vaulttypes.VaultIndex) ([]byte, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CodeSerializationError, "encode vault index", err)
	}
	return b, nil
}

func deserializeIndex(b []byte) (vaulttypes.VaultIndex, error) {
	var idx vaulttypes.VaultIndex
	if err := json.Unmarshal(b, &idx); err != nil {
		return idx, vaulterr.Wrap(vaulterr.CodeDeserializationError, "decode vault index", err)
	}
	return idx, nil
}
