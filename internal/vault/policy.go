package vault

import (
	"fmt"

	"github.com/holiman/uint256"
)

// WithdrawalPolicy caps how much of a position may leave the pool for a given
// time since the last stake.
type WithdrawalPolicy struct {
	schedule Schedule
}

func NewWithdrawalPolicy(schedule Schedule) WithdrawalPolicy {
	return WithdrawalPolicy{schedule: schedule}
}

// MaxWithdrawable returns floor(shares * cap) for the tier active at elapsed.
func (p WithdrawalPolicy) MaxWithdrawable(shares *uint256.Int, elapsed uint64) *uint256.Int {
	tier, _ := p.schedule.TierAt(elapsed)
	return applyBps(shares, tier.WithdrawBps)
}

// Validate checks requested against the position size and the active tier.
func (p WithdrawalPolicy) Validate(requested, shares *uint256.Int, elapsed uint64) error {
	if requested.Gt(shares) {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientShares, shares.Dec(), requested.Dec())
	}
	tier, idx := p.schedule.TierAt(elapsed)
	if tier.WithdrawBps == 0 {
		return fmt.Errorf("%w: cannot unstake before %s", ErrLocked, formatDays(p.schedule.Unlock()))
	}
	if tier.WithdrawBps >= BasisPoints {
		return nil
	}
	if max := applyBps(shares, tier.WithdrawBps); requested.Gt(max) {
		pct := formatPercent(tier.WithdrawBps)
		if until, ok := p.schedule.nextCapIncrease(idx); ok {
			return fmt.Errorf("%w: cannot unstake more than %s before %s", ErrTierExceeded, pct, formatDays(until))
		}
		return fmt.Errorf("%w: cannot unstake more than %s", ErrTierExceeded, pct)
	}
	return nil
}

// applyBps returns floor(amount * bps / BasisPoints). bps never exceeds
// BasisPoints so the result fits.
func applyBps(amount *uint256.Int, bps uint64) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(bps), uint256.NewInt(BasisPoints))
	return out
}

func formatPercent(bps uint64) string {
	if bps%100 == 0 {
		return fmt.Sprintf("%d%%", bps/100)
	}
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}

func formatDays(seconds uint64) string {
	if seconds%Day != 0 {
		return fmt.Sprintf("%ds", seconds)
	}
	switch days := seconds / Day; days {
	case 1:
		return "one day"
	case 2:
		return "two days"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
