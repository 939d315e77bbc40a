package model

// Balance is an account balance on a token.
type Balance struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Allowance is an approval granted by Owner to Spender.
type Allowance struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// TokenState is the persisted form of the sandbox token ledger.
type TokenState struct {
	Token         string      `json:"token"`
	ShareToken    string      `json:"share_token"`
	Balances      []Balance   `json:"balances"`
	ShareBalances []Balance   `json:"share_balances"`
	Allowances    []Allowance `json:"allowances"`
}
