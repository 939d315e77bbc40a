package token

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"sushiBar/internal/model"
)

// State exports balances and allowances for persistence.
func (l *Ledger) State() model.TokenState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := model.TokenState{
		Token:         l.token.Hex(),
		ShareToken:    l.shareToken.Hex(),
		Balances:      exportBook(l.balances),
		ShareBalances: exportBook(l.shareBalances),
		Allowances:    make([]model.Allowance, 0, len(l.allowances)),
	}
	for key, amount := range l.allowances {
		if amount.IsZero() {
			continue
		}
		state.Allowances = append(state.Allowances, model.Allowance{
			Owner:   key.owner.Hex(),
			Spender: key.spender.Hex(),
			Amount:  amount.Dec(),
		})
	}
	sort.Slice(state.Allowances, func(i, j int) bool {
		a, b := state.Allowances[i], state.Allowances[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Spender < b.Spender
	})
	return state
}

// Restore replaces balances and allowances. Supplies are recomputed from the
// balances.
func (l *Ledger) Restore(state model.TokenState) error {
	l.gate.Lock()
	defer l.gate.Unlock()
	if !strings.EqualFold(state.Token, l.token.Hex()) || !strings.EqualFold(state.ShareToken, l.shareToken.Hex()) {
		return fmt.Errorf("state is for tokens %s/%s", state.Token, state.ShareToken)
	}
	balances, supply, err := importBook(state.Balances)
	if err != nil {
		return fmt.Errorf("balances: %w", err)
	}
	shareBalances, shareSupply, err := importBook(state.ShareBalances)
	if err != nil {
		return fmt.Errorf("share balances: %w", err)
	}
	allowances := make(map[allowanceKey]*uint256.Int, len(state.Allowances))
	for _, rec := range state.Allowances {
		if !common.IsHexAddress(rec.Owner) || !common.IsHexAddress(rec.Spender) {
			return fmt.Errorf("invalid allowance %s -> %s", rec.Owner, rec.Spender)
		}
		amount, err := uint256.FromDecimal(rec.Amount)
		if err != nil {
			return fmt.Errorf("allowance %s: %w", rec.Owner, err)
		}
		allowances[allowanceKey{owner: common.HexToAddress(rec.Owner), spender: common.HexToAddress(rec.Spender)}] = amount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances
	l.shareBalances = shareBalances
	l.allowances = allowances
	l.supply = supply
	l.shareSupply = shareSupply
	return nil
}

func exportBook(book map[common.Address]*uint256.Int) []model.Balance {
	accounts := make([]common.Address, 0, len(book))
	for account := range book {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return bytes.Compare(accounts[i][:], accounts[j][:]) < 0 })

	out := make([]model.Balance, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, model.Balance{Account: account.Hex(), Amount: book[account].Dec()})
	}
	return out
}

func importBook(records []model.Balance) (map[common.Address]*uint256.Int, *uint256.Int, error) {
	book := make(map[common.Address]*uint256.Int, len(records))
	supply := new(uint256.Int)
	for _, rec := range records {
		if !common.IsHexAddress(rec.Account) {
			return nil, nil, fmt.Errorf("invalid account: %s", rec.Account)
		}
		amount, err := uint256.FromDecimal(rec.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("account %s: %w", rec.Account, err)
		}
		if amount.IsZero() {
			continue
		}
		if err := credit(book, common.HexToAddress(rec.Account), amount); err != nil {
			return nil, nil, err
		}
		var overflow bool
		if supply, overflow = new(uint256.Int).AddOverflow(supply, amount); overflow {
			return nil, nil, fmt.Errorf("%w: supply", ErrOverflow)
		}
	}
	return book, supply, nil
}
