package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOverflow              = errors.New("balance overflow")
)

type atomicKey struct{}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger is an in-memory pair of tokens: the underlying token users stake and
// the share token the vault mints. It implements the vault's token gateway for
// a single vault account.
//
// Mint, Approve, Transfer, TransferFrom and Restore wait while an Atomic
// section is open, so a rollback never undoes them.
type Ledger struct {
	// gate is held for the whole of an Atomic section.
	gate       sync.Mutex
	mu         sync.Mutex
	token      common.Address
	shareToken common.Address
	vault      common.Address

	balances      map[common.Address]*uint256.Int
	shareBalances map[common.Address]*uint256.Int
	allowances    map[allowanceKey]*uint256.Int
	supply        *uint256.Int
	shareSupply   *uint256.Int

	// non-nil while an Atomic call is running
	undo *ledgerCopy
}

type ledgerCopy struct {
	balances      map[common.Address]*uint256.Int
	shareBalances map[common.Address]*uint256.Int
	allowances    map[allowanceKey]*uint256.Int
	supply        *uint256.Int
	shareSupply   *uint256.Int
}

// NewLedger creates an empty ledger where vault is the account allowed to pull
// deposits, mint and burn shares.
func NewLedger(token, shareToken, vault common.Address) *Ledger {
	return &Ledger{
		token:         token,
		shareToken:    shareToken,
		vault:         vault,
		balances:      make(map[common.Address]*uint256.Int),
		shareBalances: make(map[common.Address]*uint256.Int),
		allowances:    make(map[allowanceKey]*uint256.Int),
		supply:        new(uint256.Int),
		shareSupply:   new(uint256.Int),
	}
}

// Token returns the underlying token address.
func (l *Ledger) Token() common.Address { return l.token }

// ShareToken returns the share token address.
func (l *Ledger) ShareToken() common.Address { return l.shareToken }

// Mint creates underlying tokens for to.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%w: total supply", ErrOverflow)
	}
	if err := credit(l.balances, to, amount); err != nil {
		return err
	}
	l.supply = supply
	return nil
}

// Approve sets the amount spender may pull from owner.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner: owner, spender: spender}] = new(uint256.Int).Set(amount)
}

// Transfer moves underlying tokens between accounts.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(l.balances, from, to, amount)
}

// TransferFrom moves tokens from owner to to, spending spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferFrom(spender, owner, to, amount)
}

// Supply returns the total underlying supply.
func (l *Ledger) Supply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.supply)
}

// ShareBalanceOf returns account's share token balance.
func (l *Ledger) ShareBalanceOf(account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return get(l.shareBalances, account)
}

// ShareSupply returns the total share token supply.
func (l *Ledger) ShareSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.shareSupply)
}

// TransferIn pulls amount from the depositor into the vault using the
// depositor's allowance.
func (l *Ledger) TransferIn(_ context.Context, from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferFrom(l.vault, from, l.vault, amount)
}

// TransferOut pays amount from the vault to to.
func (l *Ledger) TransferOut(_ context.Context, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(l.balances, l.vault, to, amount)
}

// MintShares creates share tokens for to.
func (l *Ledger) MintShares(_ context.Context, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(l.shareSupply, amount)
	if overflow {
		return fmt.Errorf("%w: share supply", ErrOverflow)
	}
	if err := credit(l.shareBalances, to, amount); err != nil {
		return err
	}
	l.shareSupply = supply
	return nil
}

// BurnShares destroys share tokens held by from.
func (l *Ledger) BurnShares(_ context.Context, from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := debit(l.shareBalances, from, amount); err != nil {
		return err
	}
	l.shareSupply = new(uint256.Int).Sub(l.shareSupply, amount)
	return nil
}

// BalanceOf returns account's underlying balance.
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return get(l.balances, account), nil
}

// Allowance returns what owner approved the vault to pull.
func (l *Ledger) Allowance(_ context.Context, owner common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(owner, l.vault), nil
}

// Atomic runs fn and restores every balance, allowance and supply if it fails.
// Calls do not nest. Inside fn only the gateway methods may be used.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(atomicKey{}) == l {
		return fmt.Errorf("atomic section already open")
	}
	l.gate.Lock()
	defer l.gate.Unlock()

	l.mu.Lock()
	l.undo = l.copyState()
	l.mu.Unlock()

	err := fn(context.WithValue(ctx, atomicKey{}, l))

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.balances = l.undo.balances
		l.shareBalances = l.undo.shareBalances
		l.allowances = l.undo.allowances
		l.supply = l.undo.supply
		l.shareSupply = l.undo.shareSupply
	}
	l.undo = nil
	return err
}

func (l *Ledger) transferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	key := allowanceKey{owner: owner, spender: spender}
	allowed := l.allowance(owner, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientAllowance, allowed.Dec(), amount.Dec())
	}
	if err := l.move(l.balances, owner, to, amount); err != nil {
		return err
	}
	l.allowances[key] = new(uint256.Int).Sub(allowed, amount)
	return nil
}

func (l *Ledger) allowance(owner, spender common.Address) *uint256.Int {
	if v, ok := l.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (l *Ledger) move(book map[common.Address]*uint256.Int, from, to common.Address, amount *uint256.Int) error {
	if err := debit(book, from, amount); err != nil {
		return err
	}
	// cannot overflow: the amount came out of the same book
	return credit(book, to, amount)
}

func (l *Ledger) copyState() *ledgerCopy {
	return &ledgerCopy{
		balances:      copyBook(l.balances),
		shareBalances: copyBook(l.shareBalances),
		allowances:    copyAllowances(l.allowances),
		supply:        new(uint256.Int).Set(l.supply),
		shareSupply:   new(uint256.Int).Set(l.shareSupply),
	}
}

func get(book map[common.Address]*uint256.Int, account common.Address) *uint256.Int {
	if v, ok := book[account]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func credit(book map[common.Address]*uint256.Int, account common.Address, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(get(book, account), amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrOverflow, account.Hex())
	}
	book[account] = sum
	return nil
}

func debit(book map[common.Address]*uint256.Int, account common.Address, amount *uint256.Int) error {
	have := get(book, account)
	if have.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, want %s", ErrInsufficientBalance, account.Hex(), have.Dec(), amount.Dec())
	}
	rest := new(uint256.Int).Sub(have, amount)
	if rest.IsZero() {
		delete(book, account)
		return nil
	}
	book[account] = rest
	return nil
}

func copyBook(book map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(book))
	for k, v := range book {
		out[k] = new(uint256.Int).Set(v)
	}
	return out
}

func copyAllowances(in map[allowanceKey]*uint256.Int) map[allowanceKey]*uint256.Int {
	out := make(map[allowanceKey]*uint256.Int, len(in))
	for k, v := range in {
		out[k] = new(uint256.Int).Set(v)
	}
	return out
}
