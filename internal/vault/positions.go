package vault

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is an account's claim on the pool.
type Position struct {
	Owner     common.Address
	Shares    *uint256.Int
	LastStake uint64
}

func (p Position) clone() Position {
	return Position{Owner: p.Owner, Shares: new(uint256.Int).Set(p.Shares), LastStake: p.LastStake}
}

// PositionTracker keeps per-account shares and the last deposit timestamp.
type PositionTracker struct {
	positions map[common.Address]*Position
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{positions: make(map[common.Address]*Position)}
}

// Get returns a copy of the owner's position.
func (t *PositionTracker) Get(owner common.Address) (Position, bool) {
	pos, ok := t.positions[owner]
	if !ok {
		return Position{}, false
	}
	return pos.clone(), true
}

// Shares returns the owner's share balance, zero when there is no position.
func (t *PositionTracker) Shares(owner common.Address) *uint256.Int {
	pos, ok := t.positions[owner]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(pos.Shares)
}

// RecordStake resets the lock clock of the whole position to now.
func (t *PositionTracker) RecordStake(owner common.Address, now uint64) {
	pos := t.ensure(owner)
	pos.LastStake = now
}

// Elapsed returns seconds since the owner's last stake. A clock behind the
// stamp yields zero.
func (t *PositionTracker) Elapsed(owner common.Address, now uint64) (uint64, error) {
	pos, ok := t.positions[owner]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoPosition, owner.Hex())
	}
	if now < pos.LastStake {
		return 0, nil
	}
	return now - pos.LastStake, nil
}

// CheckAdd reports whether AddShares would overflow, without mutating.
func (t *PositionTracker) CheckAdd(owner common.Address, shares *uint256.Int) error {
	pos, ok := t.positions[owner]
	if !ok {
		return nil
	}
	if _, overflow := new(uint256.Int).AddOverflow(pos.Shares, shares); overflow {
		return fmt.Errorf("%w: position shares", ErrArithmeticOverflow)
	}
	return nil
}

// AddShares credits minted shares to the owner.
func (t *PositionTracker) AddShares(owner common.Address, shares *uint256.Int) error {
	pos := t.ensure(owner)
	sum, overflow := new(uint256.Int).AddOverflow(pos.Shares, shares)
	if overflow {
		return fmt.Errorf("%w: position shares", ErrArithmeticOverflow)
	}
	pos.Shares = sum
	return nil
}

// SubShares debits burned shares; the position is removed once it is empty.
func (t *PositionTracker) SubShares(owner common.Address, shares *uint256.Int) error {
	pos, ok := t.positions[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPosition, owner.Hex())
	}
	if pos.Shares.Lt(shares) {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientShares, pos.Shares.Dec(), shares.Dec())
	}
	pos.Shares = new(uint256.Int).Sub(pos.Shares, shares)
	if pos.Shares.IsZero() {
		delete(t.positions, owner)
	}
	return nil
}

// Put replaces a position, used when loading a snapshot.
func (t *PositionTracker) Put(pos Position) {
	if pos.Shares == nil || pos.Shares.IsZero() {
		delete(t.positions, pos.Owner)
		return
	}
	cp := pos.clone()
	t.positions[pos.Owner] = &cp
}

// All returns copies of every open position ordered by owner address.
func (t *PositionTracker) All() []Position {
	out := make([]Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Owner.Bytes(), out[j].Owner.Bytes()) < 0
	})
	return out
}

// TotalShares sums the shares of every position.
func (t *PositionTracker) TotalShares() *uint256.Int {
	total := new(uint256.Int)
	for _, pos := range t.positions {
		total.Add(total, pos.Shares)
	}
	return total
}

func (t *PositionTracker) ensure(owner common.Address) *Position {
	pos, ok := t.positions[owner]
	if !ok {
		pos = &Position{Owner: owner, Shares: new(uint256.Int)}
		t.positions[owner] = pos
	}
	return pos
}
