// Package lockmgr implements the per-account cross-process advisory lock:
// a gofrs/flock file lock on disk, guarded by a secondary in-process mutex
// so goroutines in the same process don't thunder-herd the syscall.
package lockmgr

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

// FSLockManager is a platform.AccountLockManager backed by one lock file per
// account directory. Held for the entire duration of a vault transaction or
// a device-protected blob mutation (account_state.bin, pending_actions.bin).
type FSLockManager struct {
	root   string
	poll   time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	inproc map[string]*sync.Mutex
}

// NewFSLockManager constructs a lock manager rooted at root, where each
// account's lock file lives at root/<account_id_hex>/account.lock. poll is
// the retry interval used while blocking on WithAccountLock; logger
// defaults to slog.Default() when nil.
func NewFSLockManager(root string, poll time.Duration, logger *slog.Logger) *FSLockManager {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSLockManager{root: root, poll: poll, logger: logger, inproc: make(map[string]*sync.Mutex)}
}

func (m *FSLockManager) lockFilePath(accountID string) string {
	return filepath.Join(m.root, accountID, "account.lock")
}

// ensureLockDir creates the account directory the lock file lives in, since
// flock will not create missing parent directories itself.
func (m *FSLockManager) ensureLockDir(accountID string) error {
	if err := os.MkdirAll(filepath.Join(m.root, accountID), 0o755); err != nil {
		return vaulterr.IO("create account lock dir", err)
	}
	return nil
}

func (m *FSLockManager) inprocMutex(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.inproc[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.inproc[accountID] = l
	}
	return l
}

// WithAccountLock blocks until both the in-process mutex and the
// cross-process file lock are acquired, runs fn, then releases both — file
// lock first, in-process mutex last, mirroring acquisition order in reverse.
func (m *FSLockManager) WithAccountLock(ctx context.Context, accountID string, fn func() error) error {
	inproc := m.inprocMutex(accountID)
	inproc.Lock()
	defer inproc.Unlock()

	if err := m.ensureLockDir(accountID); err != nil {
		return err
	}
	fl := flock.New(m.lockFilePath(accountID))
	locked, err := fl.TryLockContext(ctx, m.poll)
	if err != nil {
		return vaulterr.Wrap(vaulterr.CodeLockError, "acquire account lock", err)
	}
	if !locked {
		return vaulterr.New(vaulterr.CodeLockError, "account lock not acquired")
	}
	m.logger.Info("account lock acquired", "account_id", accountID)
	defer func() {
		if uerr := fl.Unlock(); uerr != nil {
			m.logger.Warn("account lock release failed", "account_id", accountID, "error", uerr.Error())
		} else {
			m.logger.Info("account lock released", "account_id", accountID)
		}
	}()

	return fn()
}

// TryWithAccountLock attempts to acquire both locks without blocking. It
// returns (false, nil) — not an error — when the lock is currently held
// elsewhere, reserved for opportunistic maintenance callers.
func (m *FSLockManager) TryWithAccountLock(accountID string, fn func() error) (bool, error) {
	inproc := m.inprocMutex(accountID)
	if !inproc.TryLock() {
		return false, nil
	}
	defer inproc.Unlock()

	if err := m.ensureLockDir(accountID); err != nil {
		return false, err
	}
	fl := flock.New(m.lockFilePath(accountID))
	locked, err := fl.TryLock()
	if err != nil {
		return false, vaulterr.Wrap(vaulterr.CodeLockError, "try-acquire account lock", err)
	}
	if !locked {
		m.logger.Warn("account lock contended", "account_id", accountID)
		return false, nil
	}
	defer func() {
		if uerr := fl.Unlock(); uerr != nil {
			m.logger.Warn("account lock release failed", "account_id", accountID, "error", uerr.Error())
		}
	}()

	if err := fn(); err != nil {
		return true, err
	}
	return true, nil
}
