// Package store implements the top-level lifecycle surface of the
// credential storage core: opening the on-disk root, listing and creating
// accounts, and importing a vault via a provisioning envelope from another
// device. Every account it opens is independently lockable and owns its
// own vault file; this package only wires the platform capabilities
// together per account directory.
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/worldcoin/walletkit-vault/account"
	"github.com/worldcoin/walletkit-vault/config"
	"github.com/worldcoin/walletkit-vault/crypto"
	"github.com/worldcoin/walletkit-vault/fsplatform"
	"github.com/worldcoin/walletkit-vault/lockmgr"
	"github.com/worldcoin/walletkit-vault/platform"
	"github.com/worldcoin/walletkit-vault/proofcache"
	"github.com/worldcoin/walletkit-vault/provisioning"
	"github.com/worldcoin/walletkit-vault/vaultcrypto"
	"github.com/worldcoin/walletkit-vault/vaulterr"
	"github.com/worldcoin/walletkit-vault/vaulttypes"
)

const deviceIDBlobName = "device_id.bin"

// Store is the root of one device's worldid credential storage: the device
// identity, the keystore, the account lock manager, and the directory of
// per-account vaults under root/worldid/accounts.
type Store struct {
	root     string
	cfg      config.Config
	keystore platform.DeviceKeystore
	monitor  *crypto.KeystoreHealthMonitor
	cancel   context.CancelFunc
	lock     platform.AccountLockManager
	deviceID vaulttypes.DeviceID
	logger   *slog.Logger
}

// OpenStore opens (creating if necessary) the device-level state at root:
// the device identity and the account lock manager. keystore is supplied by
// the platform layer (hardware-backed where available) and is wrapped with
// a KeystoreHealthMonitor: new wraps and rewraps fail fast once the device
// keystore stops responding, instead of every account silently blocking.
func OpenStore(root string, keystore platform.DeviceKeystore, cfg config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deviceDir := filepath.Join(root, "worldid")
	deviceBlobs, err := fsplatform.NewFSBlobStore(deviceDir)
	if err != nil {
		return nil, err
	}
	deviceID, err := loadOrCreateDeviceID(deviceBlobs)
	if err != nil {
		return nil, err
	}

	lock := lockmgr.NewFSLockManager(fsplatform.AccountsRoot(root), 0, logger)

	monitor := crypto.NewKeystoreHealthMonitor(crypto.KeystoreMonitorConfigFromEnv(), crypto.RoundTripHealthCheck(keystore), nil)
	monitored := crypto.NewMonitoredKeystore(keystore, monitor)
	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Run(ctx)

	return &Store{
		root:     root,
		cfg:      cfg,
		keystore: monitored,
		monitor:  monitor,
		cancel:   cancel,
		lock:     lock,
		deviceID: deviceID,
		logger:   logger,
	}, nil
}

// Close stops the background keystore health check loop. It does not close
// any open account handles.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func loadOrCreateDeviceID(blobs platform.AtomicBlobStore) (vaulttypes.DeviceID, error) {
	exists, err := blobs.Exists(deviceIDBlobName)
	if err != nil {
		return vaulttypes.DeviceID{}, err
	}
	if exists {
		raw, err := blobs.Read(deviceIDBlobName)
		if err != nil {
			return vaulttypes.DeviceID{}, err
		}
		if len(raw) != 16 {
			return vaulttypes.DeviceID{}, vaulterr.New(vaulterr.CodeCorruptedData, "device id file has wrong length")
		}
		var id vaulttypes.DeviceID
		copy(id[:], raw)
		return id, nil
	}
	id, err := vaulttypes.NewDeviceID()
	if err != nil {
		return id, err
	}
	if err := blobs.WriteAtomic(deviceIDBlobName, id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// DeviceID returns this device's persistent identity, established once per
// install and shared across every account it holds.
func (s *Store) DeviceID() vaulttypes.DeviceID { return s.deviceID }

// ListAccounts returns every account id with a directory under this store's
// root, in no particular order.
func (s *Store) ListAccounts() ([]vaulttypes.AccountID, error) {
	entries, err := os.ReadDir(fsplatform.AccountsRoot(s.root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vaulterr.IO("list accounts", err)
	}
	out := make([]vaulttypes.AccountID, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := vaulttypes.AccountIDFromHex(e.Name())
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) accountDir(id vaulttypes.AccountID) string {
	return fsplatform.AccountDir(s.root, id.String())
}

func (s *Store) accountExists(id vaulttypes.AccountID) (bool, error) {
	_, err := os.Stat(s.accountDir(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, vaulterr.IO("stat account dir", err)
}

// openHandles wires the platform capabilities for one account directory:
// the atomic blob store, the random-access vault file, and the regenerable
// proof cache.
func (s *Store) openHandles(id vaulttypes.AccountID) (platform.AtomicBlobStore, platform.VaultFileStore, *proofcache.Cache, error) {
	dir := s.accountDir(id)
	blobs, err := fsplatform.NewFSBlobStore(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	vaultStore, err := fsplatform.OpenFSVaultStore(filepath.Join(dir, "account.vault"))
	if err != nil {
		return nil, nil, nil, err
	}
	cache, err := proofcache.Open(filepath.Join(dir, "proof_cache.db"))
	if err != nil {
		_ = vaultStore.Close()
		return nil, nil, nil, err
	}
	return blobs, vaultStore, cache, nil
}

// CreateAccount generates a fresh key hierarchy, persists the account
// state, and opens a new empty vault file for it.
func (s *Store) CreateAccount(now int64) (*account.Account, error) {
	km, err := account.NewKeyMaterial()
	if err != nil {
		return nil, err
	}
	accountID := vaulttypes.AccountID(vaultcrypto.DeriveAccountID([32]byte(km.VaultKey)))

	exists, err := s.accountExists(accountID)
	if err != nil {
		km.Zero()
		return nil, err
	}
	if exists {
		km.Zero()
		return nil, vaulterr.ErrAccountAlreadyExists
	}

	blobs, vaultStore, cache, err := s.openHandles(accountID)
	if err != nil {
		km.Zero()
		return nil, err
	}
	a, err := account.Create(blobs, vaultStore, s.keystore, s.lock, cache, s.deviceID, km, s.cfg, now, s.logger)
	km.Zero()
	if err != nil {
		return nil, err
	}
	return a, nil
}

// OpenAccount opens an existing account directory for this device.
func (s *Store) OpenAccount(id vaulttypes.AccountID) (*account.Account, error) {
	exists, err := s.accountExists(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, vaulterr.ErrAccountNotFound
	}
	blobs, vaultStore, cache, err := s.openHandles(id)
	if err != nil {
		return nil, err
	}
	return account.Open(blobs, vaultStore, s.keystore, s.lock, cache, id, s.deviceID, s.cfg, s.logger)
}

// DeleteAccount removes an account's entire directory: its vault file,
// device-protected blobs, proof cache, and lock file.
func (s *Store) DeleteAccount(id vaulttypes.AccountID) error {
	exists, err := s.accountExists(id)
	if err != nil {
		return err
	}
	if !exists {
		return vaulterr.ErrAccountNotFound
	}
	if err := os.RemoveAll(s.accountDir(id)); err != nil {
		return vaulterr.IO("delete account directory", err)
	}
	return nil
}

// ImportProvisioning decrypts a provisioning envelope with this device's
// provisioning secret and installs the resulting key hierarchy as a new
// account on this device, opening its vault for the first time.
func (s *Store) ImportProvisioning(envelope []byte, deviceSecret [32]byte, now int64) (*account.Account, error) {
	payload, err := provisioning.Import(deviceSecret, envelope, s.cfg)
	if err != nil {
		return nil, err
	}
	km := account.KeyMaterial{
		VaultKey:         vaulttypes.VaultKey(payload.VaultKey),
		IssuerBlindSeed:  vaulttypes.BlindSeed(payload.IssuerBlindSeed),
		SessionBlindSeed: vaulttypes.BlindSeed(payload.SessionBlindSeed),
	}
	accountID := vaulttypes.AccountID(vaultcrypto.DeriveAccountID([32]byte(km.VaultKey)))

	exists, err := s.accountExists(accountID)
	if err != nil {
		km.Zero()
		return nil, err
	}
	if exists {
		km.Zero()
		return nil, vaulterr.ErrAccountAlreadyExists
	}

	blobs, vaultStore, cache, err := s.openHandles(accountID)
	if err != nil {
		km.Zero()
		return nil, err
	}
	a, err := account.Create(blobs, vaultStore, s.keystore, s.lock, cache, s.deviceID, km, s.cfg, now, s.logger)
	km.Zero()
	if err != nil {
		return nil, err
	}
	return a, nil
}
