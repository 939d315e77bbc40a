package vault

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func maxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func TestShareLedgerBootstrap(t *testing.T) {
	l := NewShareLedger()
	shares, err := l.SharesForDeposit(uint256.NewInt(100_000))
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if shares.Uint64() != 100_000 {
		t.Fatalf("bootstrap shares = %d", shares.Uint64())
	}
	if out, _ := l.UnderlyingForShares(uint256.NewInt(5)); !out.IsZero() {
		t.Fatalf("empty pool pays %s", out.Dec())
	}
}

func TestShareLedgerRecord(t *testing.T) {
	l := NewShareLedger()
	if err := l.RecordDeposit(uint256.NewInt(900), uint256.NewInt(300)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	out, err := l.UnderlyingForShares(uint256.NewInt(100))
	if err != nil {
		t.Fatalf("underlying: %v", err)
	}
	if out.Uint64() != 300 {
		t.Fatalf("underlying = %d", out.Uint64())
	}
	if err := l.RecordWithdrawal(uint256.NewInt(100), out); err != nil {
		t.Fatalf("record withdrawal: %v", err)
	}
	if l.TotalShares().Uint64() != 200 || l.TotalUnderlying().Uint64() != 600 {
		t.Fatalf("totals = %s/%s", l.TotalShares().Dec(), l.TotalUnderlying().Dec())
	}
	if err := l.RecordWithdrawal(uint256.NewInt(201), uint256.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected underflow error, got %v", err)
	}
	if l.TotalShares().Uint64() != 200 {
		t.Fatalf("failed withdrawal mutated totals")
	}
}

func TestShareLedgerOverflow(t *testing.T) {
	l := NewShareLedger()
	if err := l.RecordDeposit(maxUint256(), maxUint256()); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	if err := l.RecordDeposit(uint256.NewInt(1), uint256.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
	if !l.TotalShares().Eq(maxUint256()) {
		t.Fatalf("failed deposit mutated totals")
	}

	clone := l.Clone()
	clone.Restore(uint256.NewInt(1), uint256.NewInt(1))
	if !l.TotalUnderlying().Eq(maxUint256()) {
		t.Fatalf("clone shares state with original")
	}

	skewed := NewShareLedger()
	if err := skewed.Restore(maxUint256(), uint256.NewInt(1)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := skewed.SharesForDeposit(uint256.NewInt(2)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestShareLedgerRestoreRejectsHalfEmpty(t *testing.T) {
	l := NewShareLedger()
	if err := l.Restore(uint256.NewInt(1), new(uint256.Int)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPositionTracker(t *testing.T) {
	tr := NewPositionTracker()
	who := common.HexToAddress("0x1111111111111111111111111111111111111111")

	if _, err := tr.Elapsed(who, 10); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
	if err := tr.AddShares(who, uint256.NewInt(10)); err != nil {
		t.Fatalf("add shares: %v", err)
	}
	tr.RecordStake(who, 100)
	tr.RecordStake(who, 150)
	if elapsed, _ := tr.Elapsed(who, 200); elapsed != 50 {
		t.Fatalf("elapsed = %d", elapsed)
	}
	if elapsed, _ := tr.Elapsed(who, 120); elapsed != 0 {
		t.Fatalf("clock behind stamp gave %d", elapsed)
	}
	if err := tr.SubShares(who, uint256.NewInt(11)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if err := tr.SubShares(who, uint256.NewInt(10)); err != nil {
		t.Fatalf("sub shares: %v", err)
	}
	if _, ok := tr.Get(who); ok {
		t.Fatalf("empty position kept")
	}
}
