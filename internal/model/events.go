package model

// DepositEventData is the decoded Enter event payload.
type DepositEventData struct {
	Owner        string `json:"owner"`
	AmountIn     string `json:"amount_in"`
	SharesMinted string `json:"shares_minted"`
}

// WithdrawalEventData is the decoded Leave event payload.
type WithdrawalEventData struct {
	Owner        string `json:"owner"`
	SharesBurned string `json:"shares_burned"`
	NetPaid      string `json:"net_paid"`
	TaxPaid      string `json:"tax_paid"`
}
