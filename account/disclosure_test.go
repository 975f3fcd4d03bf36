package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/worldcoin/walletkit-vault/vaulterr"
)

type mockOracle struct {
	mu       sync.Mutex
	consumed map[[32]byte]bool
}

func newMockOracle() *mockOracle { return &mockOracle{consumed: make(map[[32]byte]bool)} }

func (o *mockOracle) CheckConsumed(nullifier [32]byte) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed[nullifier], nil
}

func (o *mockOracle) MarkConsumed(nullifier [32]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consumed[nullifier] = true
	return nil
}

func TestBeginActionDisclosureIdempotentReplay(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	oracle := newMockOracle()

	var rpID, actionID, nullifier [32]byte
	rpID[0] = 1
	actionID[0] = 2
	nullifier[0] = 3
	signedRequest := []byte("same-signed-request")
	proofPkg := []byte("proof-package")

	first, err := a.BeginActionDisclosure(ctx, rpID, actionID, signedRequest, nullifier, proofPkg, oracle, 1000)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	second, err := a.BeginActionDisclosure(ctx, rpID, actionID, signedRequest, nullifier, proofPkg, oracle, 1001)
	if err != nil {
		t.Fatalf("second begin (replay): %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected idempotent replay to return the same proof package")
	}
}

func TestBeginActionDisclosureDistinctRequestConflicts(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	oracle := newMockOracle()

	var rpID, actionID, nullifier [32]byte
	rpID[0] = 1
	actionID[0] = 2
	nullifier[0] = 3

	if _, err := a.BeginActionDisclosure(ctx, rpID, actionID, []byte("request-a"), nullifier, []byte("proof"), oracle, 1000); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	_, err := a.BeginActionDisclosure(ctx, rpID, actionID, []byte("request-b"), nullifier, []byte("proof"), oracle, 1001)
	if !errors.Is(err, vaulterr.ErrActionAlreadyPending) {
		t.Fatalf("expected ErrActionAlreadyPending, got %v", err)
	}
}

func TestCommitActionConsumesNullifierAndClearsPending(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	oracle := newMockOracle()

	var rpID, actionID, nullifier [32]byte
	rpID[0] = 1
	actionID[0] = 2
	nullifier[0] = 3

	if _, err := a.BeginActionDisclosure(ctx, rpID, actionID, []byte("req"), nullifier, []byte("proof"), oracle, 1000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := a.CommitAction(ctx, rpID, actionID, oracle, 1100); err != nil {
		t.Fatalf("commit: %v", err)
	}

	consumed, _ := oracle.CheckConsumed(nullifier)
	if !consumed {
		t.Fatal("expected oracle to observe the nullifier as consumed")
	}

	entries, err := a.ListPendingActions(1100)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no pending entries after commit, got %+v", entries)
	}
}

func TestCancelActionRemovesPendingEntry(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	oracle := newMockOracle()

	var rpID, actionID, nullifier [32]byte
	rpID[0] = 5
	actionID[0] = 6
	nullifier[0] = 7

	if _, err := a.BeginActionDisclosure(ctx, rpID, actionID, []byte("req"), nullifier, []byte("proof"), oracle, 1000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := a.CancelAction(ctx, rpID, actionID, 1100); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, ok, err := a.GetPendingAction(rpID, actionID, 1100)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if ok {
		t.Fatal("expected no pending entry after cancel")
	}
}

func TestBeginActionDisclosureRejectsConsumedNullifier(t *testing.T) {
	a := newTestAccount(t)
	ctx := context.Background()
	oracle := newMockOracle()

	var rpID, actionID, nullifier [32]byte
	rpID[0] = 1
	actionID[0] = 2
	nullifier[0] = 3
	_ = oracle.MarkConsumed(nullifier)

	_, err := a.BeginActionDisclosure(ctx, rpID, actionID, []byte("req"), nullifier, []byte("proof"), oracle, 1000)
	if !errors.Is(err, vaulterr.ErrNullifierAlreadyConsumed) {
		t.Fatalf("expected ErrNullifierAlreadyConsumed, got %v", err)
	}
}
