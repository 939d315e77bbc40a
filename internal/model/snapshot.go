package model

// Snapshot bundles vault and token ledger state with the sandbox clock offset.
type Snapshot struct {
	Vault       VaultState `json:"vault"`
	Token       TokenState `json:"token"`
	ClockOffset uint64     `json:"clock_offset"`
	UpdatedAt   string     `json:"updated_at"`
}
