package lockmgr

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithAccountLockExcludesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	mgr := NewFSLockManager(dir, 5*time.Millisecond, nil)

	var inCriticalSection atomic.Bool
	var violations atomic.Int32
	done := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			done <- mgr.WithAccountLock(context.Background(), "acct1", func() error {
				if !inCriticalSection.CompareAndSwap(false, true) {
					violations.Add(1)
				}
				time.Sleep(20 * time.Millisecond)
				inCriticalSection.Store(false)
				return nil
			})
		}()
	}

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("WithAccountLock: %v", err)
		}
	}
	if violations.Load() != 0 {
		t.Fatalf("expected mutual exclusion, saw %d violations", violations.Load())
	}
}

func TestTryWithAccountLockReportsContention(t *testing.T) {
	dir := t.TempDir()
	mgr := NewFSLockManager(dir, 5*time.Millisecond, nil)

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = mgr.WithAccountLock(context.Background(), "acct1", func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	acquired, err := mgr.TryWithAccountLock("acct1", func() error { return nil })
	if err != nil {
		t.Fatalf("TryWithAccountLock: %v", err)
	}
	if acquired {
		t.Fatalf("expected contention, lock was acquired")
	}
	close(release)
}

func TestWithAccountLockCreatesLockFile(t *testing.T) {
	dir := t.TempDir()
	mgr := NewFSLockManager(dir, 5*time.Millisecond, nil)
	if err := mgr.WithAccountLock(context.Background(), "acct2", func() error { return nil }); err != nil {
		t.Fatalf("WithAccountLock: %v", err)
	}
	if _, err := os.Stat(mgr.lockFilePath("acct2")); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
}
