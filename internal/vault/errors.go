package vault

import "errors"

var (
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrLocked             = errors.New("position is locked")
	ErrTierExceeded       = errors.New("withdrawal exceeds tier cap")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no position")
	ErrTransferFailed     = errors.New("token transfer failed")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrReentrantCall      = errors.New("reentrant call")
)
