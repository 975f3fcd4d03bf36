package fsplatform

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

func readFileFromDir(dir, name string) ([]byte, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, vaulterr.New(vaulterr.CodeInvalidInput, "invalid file name: "+name)
	}
	b, err := fs.ReadFile(os.DirFS(dir), name)
	if err != nil {
		return nil, vaulterr.IO("read "+name, err)
	}
	return b, nil
}
