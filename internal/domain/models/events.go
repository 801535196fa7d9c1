package models

// SignalUpdated is emitted after every committed update_signal.
type SignalUpdated struct {
	AssetPair      string `json:"asset_pair"`
	Authority      string `json:"authority"`
	AccountKey     string `json:"account_key"`
	UpdateCount    uint64 `json:"update_count"`
	ValidUntilSlot uint64 `json:"valid_until_slot"`
	TimestampSlot  uint64 `json:"timestamp_slot"`
	CurrentSlot    uint64 `json:"current_slot"`
}

// SignalRevoked is emitted when an account transitions to revoked.
type SignalRevoked struct {
	AssetPair   string `json:"asset_pair"`
	Authority   string `json:"authority"`
	AccountKey  string `json:"account_key"`
	CurrentSlot uint64 `json:"current_slot"`
}

// AccountInitialized is emitted when a new signal account is created.
type AccountInitialized struct {
	AssetPair   string `json:"asset_pair"`
	Authority   string `json:"authority"`
	AccountKey  string `json:"account_key"`
	CurrentSlot uint64 `json:"current_slot"`
}

// ProviderRegistered is emitted when a measurement is allowlisted.
type ProviderRegistered struct {
	MrEnclave          string `json:"mr_enclave"`
	EnclaveSigner      string `json:"enclave_signer"`
	MinPlatformVersion uint16 `json:"min_platform_version"`
	CurrentSlot        uint64 `json:"current_slot"`
}

// ProviderRevoked is emitted when an allowlist entry is deactivated.
type ProviderRevoked struct {
	MrEnclave   string `json:"mr_enclave"`
	CurrentSlot uint64 `json:"current_slot"`
}
