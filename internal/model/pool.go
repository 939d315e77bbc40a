package model

// PoolState is the persisted form of a vault's pool totals. Amounts are
// decimal strings.
type PoolState struct {
	Vault           string `json:"vault"`
	Token           string `json:"token"`
	RewardPool      string `json:"reward_pool"`
	TotalShares     string `json:"total_shares"`
	TotalUnderlying string `json:"total_underlying"`
}

// Position is the persisted form of an account's stake.
type Position struct {
	Owner       string `json:"owner"`
	Shares      string `json:"shares"`
	LastStakeTS uint64 `json:"last_stake_ts"`
}

// VaultState is everything needed to rebuild a vault.
type VaultState struct {
	Pool      PoolState  `json:"pool"`
	Positions []Position `json:"positions"`
}
