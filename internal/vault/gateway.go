package vault

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenGateway is the token layer the vault drives. Underlying tokens move with
// TransferIn/TransferOut; shares are minted and burned on the share token.
type TokenGateway interface {
	// Token returns the underlying token identifier.
	Token() common.Address
	TransferIn(ctx context.Context, from common.Address, amount *uint256.Int) error
	TransferOut(ctx context.Context, to common.Address, amount *uint256.Int) error
	MintShares(ctx context.Context, to common.Address, amount *uint256.Int) error
	BurnShares(ctx context.Context, from common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	// Allowance returns what owner has approved the vault to pull.
	Allowance(ctx context.Context, owner common.Address) (*uint256.Int, error)
	// Atomic runs fn so that either every gateway call inside it takes effect
	// or none does.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock reports the current time in unix seconds.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// SystemClock is wall-clock time shifted by Offset seconds.
type SystemClock struct {
	Offset uint64
}

func (c SystemClock) Now(context.Context) (uint64, error) {
	now := uint64(time.Now().Unix())
	if now > math.MaxUint64-c.Offset {
		return 0, fmt.Errorf("%w: clock offset %d", ErrArithmeticOverflow, c.Offset)
	}
	return now + c.Offset, nil
}

// ManualClock is a settable clock.
type ManualClock struct {
	T uint64
}

func (c *ManualClock) Now(context.Context) (uint64, error) {
	return c.T, nil
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(seconds uint64) {
	c.T += seconds
}

// Deposit describes a successful enter.
type Deposit struct {
	Owner        common.Address
	AmountIn     *uint256.Int
	SharesMinted *uint256.Int
	Timestamp    uint64
}

// Withdrawal describes a successful leave.
type Withdrawal struct {
	Owner        common.Address
	SharesBurned *uint256.Int
	NetPaid      *uint256.Int
	TaxPaid      *uint256.Int
	Elapsed      uint64
	Timestamp    uint64
}

// EventSink receives committed vault events.
type EventSink interface {
	OnDeposit(ctx context.Context, ev Deposit) error
	OnWithdrawal(ctx context.Context, ev Withdrawal) error
}

// RejectionObserver is optionally implemented by sinks that track failed calls.
type RejectionObserver interface {
	OnRejected(op string, err error)
}
