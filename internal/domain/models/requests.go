package models

// HTTP and relay message schemas for the instruction surface. Binary fields
// travel as hex (keys, digests) or base64 (signatures); slots are decimal.

// MarketContextPayload mirrors the 56-byte market context.
type MarketContextPayload struct {
	Slot           uint64 `json:"slot" validate:"required"`
	Price          uint64 `json:"price" validate:"required"`
	Volume24h      uint64 `json:"volume_24h"`
	Volatility1h   uint64 `json:"volatility_1h"`
	LiquidityDepth uint64 `json:"liquidity_depth"`
	SourceBitmap   uint64 `json:"source_bitmap"`
	SourceCount    uint8  `json:"source_count" validate:"required,min=1"`
}

// SignalAssessmentPayload mirrors the 32-byte assessment.
type SignalAssessmentPayload struct {
	SignalType     string `json:"signal_type" validate:"required,oneof=momentum mean_reversion volatility liquidity reserved"`
	Direction      string `json:"direction" validate:"required,oneof=neutral long short"`
	Magnitude      uint8  `json:"magnitude" validate:"lte=100"`
	Confidence     uint8  `json:"confidence" validate:"lte=100"`
	ValidFromSlot  uint64 `json:"valid_from_slot" validate:"required"`
	ValidUntilSlot uint64 `json:"valid_until_slot" validate:"required"`
	ModelVersion   string `json:"model_version" validate:"max=8"`
}

// TeeReceiptPayload mirrors the 112-byte receipt.
type TeeReceiptPayload struct {
	EnclaveSigner   string `json:"enclave_signer" validate:"required,len=64,hexadecimal"`
	AttestationHash string `json:"attestation_hash" validate:"required,len=64,hexadecimal"`
	MrEnclave       string `json:"mr_enclave" validate:"required,len=64,hexadecimal"`
	TimestampSlot   uint64 `json:"timestamp_slot" validate:"required"`
	PlatformVersion uint16 `json:"platform_version"`
}

// InitSignalAccountRequest creates a signal account.
type InitSignalAccountRequest struct {
	AssetPair string `json:"asset_pair" validate:"required,max=32"`
	Authority string `json:"authority" validate:"required,len=64,hexadecimal"`
}

// UpdateSignalRequest submits a verified triple for an existing account.
// Signer is the attesting key; Signature is base64 Ed25519 over the
// canonical encoded triple.
type UpdateSignalRequest struct {
	AssetPair  string                  `json:"asset_pair" validate:"required,max=32"`
	Authority  string                  `json:"authority" validate:"required,len=64,hexadecimal"`
	Signer     string                  `json:"signer" validate:"required,len=64,hexadecimal"`
	Signature  string                  `json:"signature" validate:"required,base64"`
	Context    MarketContextPayload    `json:"market_context" validate:"required"`
	Assessment SignalAssessmentPayload `json:"signal_assessment" validate:"required"`
	Receipt    TeeReceiptPayload       `json:"tee_receipt" validate:"required"`
}

// RevokeSignalRequest revokes a signal account.
type RevokeSignalRequest struct {
	AssetPair string `json:"asset_pair" validate:"required,max=32"`
	Authority string `json:"authority" validate:"required,len=64,hexadecimal"`
}

// RegisterProviderRequest allowlists an enclave measurement.
type RegisterProviderRequest struct {
	Admin              string `json:"admin" validate:"required,len=64,hexadecimal"`
	MrEnclave          string `json:"mr_enclave" validate:"required,len=64,hexadecimal"`
	EnclaveSigner      string `json:"enclave_signer" validate:"required,len=64,hexadecimal"`
	MinPlatformVersion uint16 `json:"min_platform_version"`
}

// RevokeProviderRequest deactivates an allowlist entry.
type RevokeProviderRequest struct {
	Admin     string `json:"admin" validate:"required,len=64,hexadecimal"`
	MrEnclave string `json:"mr_enclave" validate:"required,len=64,hexadecimal"`
}

// PauseRequest pauses or resumes mutating instructions.
type PauseRequest struct {
	Admin  string `json:"admin" validate:"required,len=64,hexadecimal"`
	Paused bool   `json:"paused"`
}

// UpdateConfigRequest adjusts protocol parameters; nil fields keep their
// current values.
type UpdateConfigRequest struct {
	Admin                  string  `json:"admin" validate:"required,len=64,hexadecimal"`
	MinWindowSlots         *uint64 `json:"min_window_slots"`
	MaxWindowSlots         *uint64 `json:"max_window_slots"`
	MaxAttestationAgeSlots *uint64 `json:"max_attestation_age_slots"`
	MinSourceCount         *uint8  `json:"min_source_count"`
	MinConfidence          *uint8  `json:"min_confidence" validate:"omitempty"`
}

// SignalView is the read-side projection of a signal account.
type SignalView struct {
	AssetPair      string                  `json:"asset_pair"`
	Authority      string                  `json:"authority"`
	AccountKey     string                  `json:"account_key"`
	Status         string                  `json:"status"`
	Context        MarketContextPayload    `json:"market_context"`
	Assessment     SignalAssessmentPayload `json:"signal_assessment"`
	Receipt        TeeReceiptPayload       `json:"tee_receipt"`
	UpdateCount    uint64                  `json:"update_count"`
	LastUpdateSlot uint64                  `json:"last_update_slot"`
	CurrentSlot    uint64                  `json:"current_slot"`
	Valid          bool                    `json:"valid"`
	RemainingSlots uint64                  `json:"remaining_slots"`
}
