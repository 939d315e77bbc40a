package vault

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ShareLedger tracks pool totals and converts between underlying tokens and shares.
// Conversions round down in favour of the pool.
type ShareLedger struct {
	totalShares     *uint256.Int
	totalUnderlying *uint256.Int
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		totalShares:     new(uint256.Int),
		totalUnderlying: new(uint256.Int),
	}
}

// TotalShares returns a copy of the outstanding share supply.
func (l *ShareLedger) TotalShares() *uint256.Int {
	return new(uint256.Int).Set(l.totalShares)
}

// TotalUnderlying returns a copy of the tokens held by the pool.
func (l *ShareLedger) TotalUnderlying() *uint256.Int {
	return new(uint256.Int).Set(l.totalUnderlying)
}

// SharesForDeposit returns the shares minted for amount underlying tokens.
func (l *ShareLedger) SharesForDeposit(amount *uint256.Int) (*uint256.Int, error) {
	if l.totalShares.IsZero() {
		return new(uint256.Int).Set(amount), nil
	}
	if l.totalUnderlying.IsZero() {
		return nil, fmt.Errorf("%w: shares outstanding with empty pool", ErrArithmeticOverflow)
	}
	shares, overflow := new(uint256.Int).MulDivOverflow(amount, l.totalShares, l.totalUnderlying)
	if overflow {
		return nil, fmt.Errorf("%w: shares for deposit %s", ErrArithmeticOverflow, amount.Dec())
	}
	return shares, nil
}

// UnderlyingForShares returns the underlying tokens backing shares.
func (l *ShareLedger) UnderlyingForShares(shares *uint256.Int) (*uint256.Int, error) {
	if l.totalShares.IsZero() {
		return new(uint256.Int), nil
	}
	amount, overflow := new(uint256.Int).MulDivOverflow(shares, l.totalUnderlying, l.totalShares)
	if overflow {
		return nil, fmt.Errorf("%w: underlying for shares %s", ErrArithmeticOverflow, shares.Dec())
	}
	return amount, nil
}

// RecordDeposit adds a deposit to the pool totals.
func (l *ShareLedger) RecordDeposit(amount, minted *uint256.Int) error {
	underlying, shares, err := l.afterDeposit(amount, minted)
	if err != nil {
		return err
	}
	l.totalUnderlying = underlying
	l.totalShares = shares
	return nil
}

// RecordWithdrawal removes burned shares and the underlying paid out of the pool.
func (l *ShareLedger) RecordWithdrawal(burned, paid *uint256.Int) error {
	underlying, shares, err := l.afterWithdrawal(burned, paid)
	if err != nil {
		return err
	}
	l.totalUnderlying = underlying
	l.totalShares = shares
	return nil
}

// Restore replaces the pool totals, used when loading a snapshot.
func (l *ShareLedger) Restore(totalShares, totalUnderlying *uint256.Int) error {
	if totalShares.IsZero() != totalUnderlying.IsZero() {
		return fmt.Errorf("inconsistent totals: shares=%s underlying=%s", totalShares.Dec(), totalUnderlying.Dec())
	}
	l.totalShares = new(uint256.Int).Set(totalShares)
	l.totalUnderlying = new(uint256.Int).Set(totalUnderlying)
	return nil
}

// Clone returns an independent copy of the ledger.
func (l *ShareLedger) Clone() *ShareLedger {
	return &ShareLedger{
		totalShares:     new(uint256.Int).Set(l.totalShares),
		totalUnderlying: new(uint256.Int).Set(l.totalUnderlying),
	}
}

func (l *ShareLedger) afterDeposit(amount, minted *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	underlying, overflow := new(uint256.Int).AddOverflow(l.totalUnderlying, amount)
	if overflow {
		return nil, nil, fmt.Errorf("%w: total underlying", ErrArithmeticOverflow)
	}
	shares, overflow := new(uint256.Int).AddOverflow(l.totalShares, minted)
	if overflow {
		return nil, nil, fmt.Errorf("%w: total shares", ErrArithmeticOverflow)
	}
	return underlying, shares, nil
}

func (l *ShareLedger) afterWithdrawal(burned, paid *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	underlying, underflow := new(uint256.Int).SubOverflow(l.totalUnderlying, paid)
	if underflow {
		return nil, nil, fmt.Errorf("%w: total underlying below zero", ErrArithmeticOverflow)
	}
	shares, underflow := new(uint256.Int).SubOverflow(l.totalShares, burned)
	if underflow {
		return nil, nil, fmt.Errorf("%w: total shares below zero", ErrArithmeticOverflow)
	}
	return underlying, shares, nil
}
