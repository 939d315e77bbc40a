package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Status describes where a position sits in the tier schedule.
type Status struct {
	Position        Position
	Now             uint64
	Elapsed         uint64
	Tier            Tier
	MaxWithdrawable *uint256.Int
	Underlying      *uint256.Int
	TaxBps          uint64
	// NextTierAt is the timestamp the next tier opens, zero once fully unlocked.
	NextTierAt uint64
}

// Status reports the owner's position against the current time.
func (v *Vault) Status(ctx context.Context, owner common.Address) (Status, error) {
	now, err := v.clock.Now(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read clock: %w", err)
	}

	v.stateMu.RLock()
	defer v.stateMu.RUnlock()

	pos, ok := v.positions.Get(owner)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNoPosition, owner.Hex())
	}
	elapsed, err := v.positions.Elapsed(owner, now)
	if err != nil {
		return Status{}, err
	}
	underlying, err := v.ledger.UnderlyingForShares(pos.Shares)
	if err != nil {
		return Status{}, err
	}

	tier, idx := v.cfg.Schedule.TierAt(elapsed)
	st := Status{
		Position:        pos,
		Now:             now,
		Elapsed:         elapsed,
		Tier:            tier,
		MaxWithdrawable: v.policy.MaxWithdrawable(pos.Shares, elapsed),
		Underlying:      underlying,
		TaxBps:          v.tax.TaxBps(elapsed),
	}
	if tiers := v.cfg.Schedule.tiers; idx+1 < len(tiers) {
		st.NextTierAt = pos.LastStake + tiers[idx+1].From
	}
	return st, nil
}
