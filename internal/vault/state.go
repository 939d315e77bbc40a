package vault

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"sushiBar/internal/model"
)

// State exports the vault for persistence.
func (v *Vault) State() model.VaultState {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()

	positions := v.positions.All()
	out := model.VaultState{
		Pool: model.PoolState{
			Vault:           v.cfg.Address.Hex(),
			Token:           v.gateway.Token().Hex(),
			RewardPool:      v.cfg.RewardPool.Hex(),
			TotalShares:     v.ledger.TotalShares().Dec(),
			TotalUnderlying: v.ledger.TotalUnderlying().Dec(),
		},
		Positions: make([]model.Position, 0, len(positions)),
	}
	for _, pos := range positions {
		out.Positions = append(out.Positions, model.Position{
			Owner:       pos.Owner.Hex(),
			Shares:      pos.Shares.Dec(),
			LastStakeTS: pos.LastStake,
		})
	}
	return out
}

// Restore replaces the vault's pool and positions with a persisted state. The
// state must belong to this vault and be internally consistent.
func (v *Vault) Restore(state model.VaultState) error {
	if v.callouts.Load() > 0 {
		return ErrReentrantCall
	}
	if !sameAddress(state.Pool.Vault, v.cfg.Address) {
		return fmt.Errorf("state belongs to vault %s", state.Pool.Vault)
	}
	if !sameAddress(state.Pool.Token, v.gateway.Token()) {
		return fmt.Errorf("state token %s does not match %s", state.Pool.Token, v.gateway.Token().Hex())
	}

	totalShares, err := ParseAmount(state.Pool.TotalShares)
	if err != nil {
		return fmt.Errorf("total shares: %w", err)
	}
	totalUnderlying, err := ParseAmount(state.Pool.TotalUnderlying)
	if err != nil {
		return fmt.Errorf("total underlying: %w", err)
	}

	ledger := NewShareLedger()
	if err := ledger.Restore(totalShares, totalUnderlying); err != nil {
		return err
	}
	tracker := NewPositionTracker()
	for _, rec := range state.Positions {
		if !common.IsHexAddress(rec.Owner) {
			return fmt.Errorf("invalid position owner: %s", rec.Owner)
		}
		shares, err := ParseAmount(rec.Shares)
		if err != nil {
			return fmt.Errorf("position %s: %w", rec.Owner, err)
		}
		tracker.Put(Position{Owner: common.HexToAddress(rec.Owner), Shares: shares, LastStake: rec.LastStakeTS})
	}
	if sum := tracker.TotalShares(); !sum.Eq(totalShares) {
		return fmt.Errorf("positions hold %s shares, pool reports %s", sum.Dec(), totalShares.Dec())
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.stateMu.Lock()
	v.ledger = ledger
	v.positions = tracker
	v.stateMu.Unlock()
	return nil
}

// ParseAmount parses a base-10 token amount; empty means zero.
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

func sameAddress(value string, addr common.Address) bool {
	return common.IsHexAddress(value) && common.HexToAddress(value) == addr
}
