package vault

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Config holds the fixed parameters of a vault.
type Config struct {
	Address    common.Address
	RewardPool common.Address
	Schedule   Schedule
}

// Vault is a pooled staking vault. Every Enter and Leave runs under an
// exclusive lock and either fully applies or leaves all state untouched.
//
// While the vault is calling its gateway or sinks, any Enter, Leave, Sync or
// Restore fails with ErrReentrantCall instead of waiting. Reads never block on
// a call in flight and report the state before it.
type Vault struct {
	// mu serializes Enter, Leave, Sync and Restore.
	mu sync.Mutex
	// stateMu guards ledger, positions and sinks. Writers of ledger and
	// positions also hold mu. It is never held across a gateway or sink call.
	stateMu sync.RWMutex
	// callouts counts gateway and sink calls in progress.
	callouts atomic.Int32

	cfg     Config
	gateway TokenGateway
	clock   Clock
	logger  *zap.Logger
	sinks   []EventSink

	ledger    *ShareLedger
	positions *PositionTracker
	policy    WithdrawalPolicy
	tax       TaxEngine
}

type callKey struct{}

// New builds an empty vault.
func New(cfg Config, gateway TokenGateway, clock Clock, logger *zap.Logger) (*Vault, error) {
	if gateway == nil {
		return nil, fmt.Errorf("token gateway is nil")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("vault address is required")
	}
	if cfg.RewardPool == (common.Address{}) {
		return nil, fmt.Errorf("reward pool address is required")
	}
	if len(cfg.Schedule.tiers) == 0 {
		cfg.Schedule = MustDefaultSchedule()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		cfg:       cfg,
		gateway:   gateway,
		clock:     clock,
		logger:    logger,
		ledger:    NewShareLedger(),
		positions: NewPositionTracker(),
		policy:    NewWithdrawalPolicy(cfg.Schedule),
		tax:       NewTaxEngine(cfg.Schedule, cfg.RewardPool),
	}, nil
}

// AddSink registers a sink for committed events.
func (v *Vault) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	v.stateMu.Lock()
	v.sinks = append(v.sinks, sink)
	v.stateMu.Unlock()
}

// Address returns the vault's own account.
func (v *Vault) Address() common.Address { return v.cfg.Address }

// RewardPool returns the account collecting early-exit tax.
func (v *Vault) RewardPool() common.Address { return v.cfg.RewardPool }

// Schedule returns the tier schedule.
func (v *Vault) Schedule() Schedule { return v.cfg.Schedule }

// Sushi returns the underlying token identifier.
func (v *Vault) Sushi() common.Address { return v.gateway.Token() }

// BalanceOf returns the owner's share balance.
func (v *Vault) BalanceOf(owner common.Address) *uint256.Int {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.positions.Shares(owner)
}

// Position returns the owner's position.
func (v *Vault) Position(owner common.Address) (Position, bool) {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.positions.Get(owner)
}

// Positions returns every open position.
func (v *Vault) Positions() []Position {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.positions.All()
}

// Totals returns the outstanding shares and the underlying held by the pool.
func (v *Vault) Totals() (shares, underlying *uint256.Int) {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.ledger.TotalShares(), v.ledger.TotalUnderlying()
}

// Enter pulls amount underlying tokens from owner and mints shares for them.
func (v *Vault) Enter(ctx context.Context, owner common.Address, amount *uint256.Int) (Deposit, error) {
	if err := v.guard(ctx); err != nil {
		return Deposit{}, v.reject("enter", owner, err)
	}
	ctx = context.WithValue(ctx, callKey{}, v)

	v.mu.Lock()
	defer v.mu.Unlock()

	dep, err := v.enter(ctx, owner, amount)
	if err != nil {
		return Deposit{}, v.reject("enter", owner, err)
	}

	v.logger.Info("enter",
		zap.String("owner", owner.Hex()),
		zap.String("amount", dep.AmountIn.Dec()),
		zap.String("shares", dep.SharesMinted.Dec()),
		zap.Uint64("ts", dep.Timestamp),
	)
	v.emit("deposit sink", func(sink EventSink) error {
		return sink.OnDeposit(ctx, dep)
	})
	return dep, nil
}

func (v *Vault) enter(ctx context.Context, owner common.Address, amount *uint256.Int) (Deposit, error) {
	if amount == nil || amount.IsZero() {
		return Deposit{}, ErrZeroAmount
	}

	now, err := v.clock.Now(ctx)
	if err != nil {
		return Deposit{}, fmt.Errorf("read clock: %w", err)
	}

	var allowance *uint256.Int
	err = v.callOut(func() error {
		var err error
		allowance, err = v.gateway.Allowance(ctx, owner)
		return err
	})
	if err != nil {
		return Deposit{}, fmt.Errorf("%w: allowance: %w", ErrTransferFailed, err)
	}
	if allowance.Lt(amount) {
		return Deposit{}, fmt.Errorf("%w: insufficient allowance: have %s, want %s", ErrTransferFailed, allowance.Dec(), amount.Dec())
	}

	pool, _, err := v.priced(ctx)
	if err != nil {
		return Deposit{}, err
	}
	shares, err := pool.SharesForDeposit(amount)
	if err != nil {
		return Deposit{}, err
	}
	if shares.IsZero() {
		return Deposit{}, fmt.Errorf("%w: deposit of %s mints no shares", ErrZeroAmount, amount.Dec())
	}
	if err := pool.RecordDeposit(amount, shares); err != nil {
		return Deposit{}, err
	}
	if err := v.positions.CheckAdd(owner, shares); err != nil {
		return Deposit{}, err
	}

	err = v.callOut(func() error {
		return v.gateway.Atomic(ctx, func(ctx context.Context) error {
			if err := v.gateway.TransferIn(ctx, owner, amount); err != nil {
				return fmt.Errorf("%w: transfer in: %w", ErrTransferFailed, err)
			}
			if err := v.gateway.MintShares(ctx, owner, shares); err != nil {
				return fmt.Errorf("%w: mint shares: %w", ErrTransferFailed, err)
			}
			return nil
		})
	})
	if err != nil {
		return Deposit{}, err
	}

	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	// Checked above; the gateway has already moved funds.
	if err := v.positions.AddShares(owner, shares); err != nil {
		return Deposit{}, err
	}
	v.positions.RecordStake(owner, now)
	v.ledger = pool

	return Deposit{
		Owner:        owner,
		AmountIn:     new(uint256.Int).Set(amount),
		SharesMinted: shares,
		Timestamp:    now,
	}, nil
}

// Leave burns shares from owner, paying the net underlying value to owner and
// the tax to the reward pool.
func (v *Vault) Leave(ctx context.Context, owner common.Address, shares *uint256.Int) (Withdrawal, error) {
	if err := v.guard(ctx); err != nil {
		return Withdrawal{}, v.reject("leave", owner, err)
	}
	ctx = context.WithValue(ctx, callKey{}, v)

	v.mu.Lock()
	defer v.mu.Unlock()

	wd, err := v.leave(ctx, owner, shares)
	if err != nil {
		return Withdrawal{}, v.reject("leave", owner, err)
	}

	v.logger.Info("leave",
		zap.String("owner", owner.Hex()),
		zap.String("shares", wd.SharesBurned.Dec()),
		zap.String("net", wd.NetPaid.Dec()),
		zap.String("tax", wd.TaxPaid.Dec()),
		zap.Uint64("elapsed", wd.Elapsed),
	)
	v.emit("withdrawal sink", func(sink EventSink) error {
		return sink.OnWithdrawal(ctx, wd)
	})
	return wd, nil
}

func (v *Vault) leave(ctx context.Context, owner common.Address, shares *uint256.Int) (Withdrawal, error) {
	if shares == nil || shares.IsZero() {
		return Withdrawal{}, ErrZeroAmount
	}

	pos, ok := v.positions.Get(owner)
	if !ok {
		return Withdrawal{}, fmt.Errorf("%w: %w: %s", ErrInsufficientShares, ErrNoPosition, owner.Hex())
	}
	if shares.Gt(pos.Shares) {
		return Withdrawal{}, fmt.Errorf("%w: have %s, want %s", ErrInsufficientShares, pos.Shares.Dec(), shares.Dec())
	}

	now, err := v.clock.Now(ctx)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("read clock: %w", err)
	}
	elapsed, err := v.positions.Elapsed(owner, now)
	if err != nil {
		return Withdrawal{}, err
	}
	if err := v.policy.Validate(shares, pos.Shares, elapsed); err != nil {
		return Withdrawal{}, err
	}

	pool, _, err := v.priced(ctx)
	if err != nil {
		return Withdrawal{}, err
	}
	underlying, err := pool.UnderlyingForShares(shares)
	if err != nil {
		return Withdrawal{}, err
	}
	net, tax := v.tax.Split(underlying, elapsed)
	if err := pool.RecordWithdrawal(shares, underlying); err != nil {
		return Withdrawal{}, err
	}

	err = v.callOut(func() error {
		return v.gateway.Atomic(ctx, func(ctx context.Context) error {
			if err := v.gateway.BurnShares(ctx, owner, shares); err != nil {
				return fmt.Errorf("%w: burn shares: %w", ErrTransferFailed, err)
			}
			if !net.IsZero() {
				if err := v.gateway.TransferOut(ctx, owner, net); err != nil {
					return fmt.Errorf("%w: pay holder: %w", ErrTransferFailed, err)
				}
			}
			if !tax.IsZero() {
				if err := v.gateway.TransferOut(ctx, v.tax.RewardPool(), tax); err != nil {
					return fmt.Errorf("%w: pay reward pool: %w", ErrTransferFailed, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return Withdrawal{}, err
	}

	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	if err := v.positions.SubShares(owner, shares); err != nil {
		return Withdrawal{}, err
	}
	v.ledger = pool

	return Withdrawal{
		Owner:        owner,
		SharesBurned: new(uint256.Int).Set(shares),
		NetPaid:      net,
		TaxPaid:      tax,
		Elapsed:      elapsed,
		Timestamp:    now,
	}, nil
}

// Sync absorbs underlying tokens sent directly to the vault, raising the value
// of every share. It fails if the vault holds less than the pool accounts for.
// With no shares outstanding nothing is absorbed.
//
// Enter and Leave price against the same balance, so Sync only matters for
// reads between calls.
func (v *Vault) Sync(ctx context.Context) (*uint256.Int, error) {
	if err := v.guard(ctx); err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, callKey{}, v)

	v.mu.Lock()
	defer v.mu.Unlock()

	pool, held, err := v.priced(ctx)
	if err != nil {
		return nil, err
	}
	tracked := v.ledger.TotalUnderlying()
	if held.Lt(tracked) {
		return nil, fmt.Errorf("vault holds %s, pool accounts for %s", held.Dec(), tracked.Dec())
	}
	added := new(uint256.Int).Sub(pool.totalUnderlying, tracked)
	if added.IsZero() {
		return added, nil
	}

	v.stateMu.Lock()
	v.ledger = pool
	v.stateMu.Unlock()

	v.logger.Info("sync", zap.String("added", added.Dec()), zap.String("total_underlying", held.Dec()))
	return added, nil
}

// priced returns a copy of the pool totals that also counts tokens sent
// straight to the vault, along with the vault's token balance. A pool with no
// shares outstanding has nobody to credit, so it is returned unchanged.
// The caller must hold mu.
func (v *Vault) priced(ctx context.Context) (*ShareLedger, *uint256.Int, error) {
	var held *uint256.Int
	err := v.callOut(func() error {
		var err error
		held, err = v.gateway.BalanceOf(ctx, v.cfg.Address)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: vault balance: %w", ErrTransferFailed, err)
	}

	pool := v.ledger.Clone()
	if pool.totalShares.IsZero() || !held.Gt(pool.totalUnderlying) {
		return pool, held, nil
	}
	donated := new(uint256.Int).Sub(held, pool.totalUnderlying)
	if err := pool.RecordDeposit(donated, new(uint256.Int)); err != nil {
		return nil, nil, err
	}
	return pool, held, nil
}

// guard rejects a call made from inside one of the vault's own gateway or
// sink calls.
func (v *Vault) guard(ctx context.Context) error {
	if ctx.Value(callKey{}) == v || v.callouts.Load() > 0 {
		return ErrReentrantCall
	}
	return nil
}

// callOut runs fn, a call into code the vault does not control.
func (v *Vault) callOut(fn func() error) error {
	v.callouts.Add(1)
	defer v.callouts.Add(-1)
	return fn()
}

func (v *Vault) sinkList() []EventSink {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return append([]EventSink(nil), v.sinks...)
}

func (v *Vault) emit(what string, fn func(EventSink) error) {
	for _, sink := range v.sinkList() {
		if err := v.callOut(func() error { return fn(sink) }); err != nil {
			v.logger.Warn(what, zap.Error(err))
		}
	}
}

func (v *Vault) reject(op string, owner common.Address, err error) error {
	v.logger.Debug("call rejected", zap.String("op", op), zap.String("owner", owner.Hex()), zap.Error(err))
	for _, sink := range v.sinkList() {
		if obs, ok := sink.(RejectionObserver); ok {
			_ = v.callOut(func() error {
				obs.OnRejected(op, err)
				return nil
			})
		}
	}
	return err
}
