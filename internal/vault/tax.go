package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TaxEngine splits withdrawn value between the holder and the reward pool.
type TaxEngine struct {
	schedule   Schedule
	rewardPool common.Address
}

func NewTaxEngine(schedule Schedule, rewardPool common.Address) TaxEngine {
	return TaxEngine{schedule: schedule, rewardPool: rewardPool}
}

// RewardPool returns the account receiving the tax.
func (e TaxEngine) RewardPool() common.Address {
	return e.rewardPool
}

// TaxBps returns the tax fraction in basis points at elapsed.
func (e TaxEngine) TaxBps(elapsed uint64) uint64 {
	tier, _ := e.schedule.TierAt(elapsed)
	return tier.TaxBps
}

// Split returns the net amount for the holder and the tax for the reward pool.
// The tax is computed on underlying value and rounds down.
func (e TaxEngine) Split(amount *uint256.Int, elapsed uint64) (net, tax *uint256.Int) {
	tax = applyBps(amount, e.TaxBps(elapsed))
	net = new(uint256.Int).Sub(amount, tax)
	return net, tax
}
