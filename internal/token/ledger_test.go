package token

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	shareAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	alice     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob       = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger(tokenAddr, shareAddr, vaultAddr)
	if err := l.Mint(alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return l
}

func balance(t *testing.T, l *Ledger, account common.Address) uint64 {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Uint64()
}

func TestTransferInSpendsAllowance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.TransferIn(ctx, alice, uint256.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	l.Approve(alice, vaultAddr, uint256.NewInt(300))
	if err := l.TransferIn(ctx, alice, uint256.NewInt(200)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}

	if got := balance(t, l, alice); got != 800 {
		t.Fatalf("alice balance = %d", got)
	}
	if got := balance(t, l, vaultAddr); got != 200 {
		t.Fatalf("vault balance = %d", got)
	}
	left, _ := l.Allowance(ctx, alice)
	if left.Uint64() != 100 {
		t.Fatalf("allowance left = %d", left.Uint64())
	}
}

func TestTransferOutInsufficientBalance(t *testing.T) {
	l := newTestLedger(t)
	if err := l.TransferOut(context.Background(), bob, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
}

func TestShareMintBurn(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.MintShares(ctx, alice, uint256.NewInt(50)); err != nil {
		t.Fatalf("mint shares: %v", err)
	}
	if err := l.BurnShares(ctx, alice, uint256.NewInt(60)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected burn to fail, got %v", err)
	}
	if err := l.BurnShares(ctx, alice, uint256.NewInt(20)); err != nil {
		t.Fatalf("burn shares: %v", err)
	}
	if got := l.ShareBalanceOf(alice).Uint64(); got != 30 {
		t.Fatalf("share balance = %d", got)
	}
	if got := l.ShareSupply().Uint64(); got != 30 {
		t.Fatalf("share supply = %d", got)
	}
}

func TestAtomicRollsBack(t *testing.T) {
	l := newTestLedger(t)
	l.Approve(alice, vaultAddr, uint256.NewInt(1000))
	before := l.State()

	boom := errors.New("boom")
	err := l.Atomic(context.Background(), func(ctx context.Context) error {
		if err := l.TransferIn(ctx, alice, uint256.NewInt(400)); err != nil {
			return err
		}
		if err := l.MintShares(ctx, alice, uint256.NewInt(400)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if after := l.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed after rollback: %+v != %+v", before, after)
	}
	if got := l.ShareSupply().Uint64(); got != 0 {
		t.Fatalf("share supply = %d", got)
	}
}

func TestAtomicCommits(t *testing.T) {
	l := newTestLedger(t)
	err := l.Atomic(context.Background(), func(ctx context.Context) error {
		return l.MintShares(ctx, bob, uint256.NewInt(7))
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
	if got := l.ShareBalanceOf(bob).Uint64(); got != 7 {
		t.Fatalf("share balance = %d", got)
	}
}

func TestAtomicRollbackKeepsConcurrentTransfer(t *testing.T) {
	l := newTestLedger(t)
	started := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("boom")

	atomicDone := make(chan error, 1)
	go func() {
		atomicDone <- l.Atomic(context.Background(), func(ctx context.Context) error {
			if err := l.MintShares(ctx, alice, uint256.NewInt(5)); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	transferDone := make(chan error, 1)
	go func() {
		transferDone <- l.Transfer(alice, bob, uint256.NewInt(100))
	}()
	select {
	case err := <-transferDone:
		t.Fatalf("transfer ran inside an open atomic section: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-atomicDone; !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-transferDone; err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, l, bob); got != 100 {
		t.Fatalf("bob balance = %d", got)
	}
	if got := l.ShareSupply().Uint64(); got != 0 {
		t.Fatalf("share supply = %d", got)
	}
}

func TestAtomicDoesNotNest(t *testing.T) {
	l := newTestLedger(t)
	err := l.Atomic(context.Background(), func(ctx context.Context) error {
		return l.Atomic(ctx, func(context.Context) error { return nil })
	})
	if err == nil {
		t.Fatalf("expected nested atomic section to fail")
	}
}

func TestStateRestore(t *testing.T) {
	l := newTestLedger(t)
	l.Approve(alice, vaultAddr, uint256.NewInt(250))
	if err := l.MintShares(context.Background(), bob, uint256.NewInt(9)); err != nil {
		t.Fatalf("mint shares: %v", err)
	}
	state := l.State()

	restored := NewLedger(tokenAddr, shareAddr, vaultAddr)
	if err := restored.Restore(state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(state, restored.State()) {
		t.Fatalf("restored state mismatch")
	}
	if got := restored.Supply().Uint64(); got != 1000 {
		t.Fatalf("supply = %d", got)
	}

	other := NewLedger(shareAddr, tokenAddr, vaultAddr)
	if err := other.Restore(state); err == nil {
		t.Fatalf("expected token mismatch error")
	}
}
