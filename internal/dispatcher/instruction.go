package dispatcher

import (
	"fmt"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// Kind enumerates the closed instruction set. Routing is a fixed handler
// table indexed by Kind; there is no open-ended dispatch.
type Kind uint8

const (
	KindInitializeConfig Kind = iota
	KindRegisterProvider
	KindRevokeProvider
	KindInitializeSignalAccount
	KindUpdateSignal
	KindRevokeSignal
	KindPauseProtocol
	KindUpdateConfig
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindInitializeConfig:
		return "initialize_config"
	case KindRegisterProvider:
		return "register_provider"
	case KindRevokeProvider:
		return "revoke_provider"
	case KindInitializeSignalAccount:
		return "initialize_signal_account"
	case KindUpdateSignal:
		return "update_signal"
	case KindRevokeSignal:
		return "revoke_signal"
	case KindPauseProtocol:
		return "pause_protocol"
	case KindUpdateConfig:
		return "update_config"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Instruction pairs a kind with its typed parameters. Params must be the
// matching *Params struct below; anything else fails dispatch.
type Instruction struct {
	Kind   Kind
	Params any
}

// InitializeConfigParams installs the protocol config singleton.
type InitializeConfigParams struct {
	Config schema.Config
}

// RegisterProviderParams allowlists an enclave measurement. Admin-only.
type RegisterProviderParams struct {
	Admin              schema.PublicKey
	MrEnclave          schema.Digest
	EnclaveSigner      schema.PublicKey
	MinPlatformVersion uint16
}

// RevokeProviderParams deactivates an allowlist entry. Admin-only.
type RevokeProviderParams struct {
	Admin     schema.PublicKey
	MrEnclave schema.Digest
}

// InitializeSignalAccountParams creates the account for one
// (asset_pair, authority) stream. Caller must be the declared authority.
type InitializeSignalAccountParams struct {
	Caller    schema.PublicKey
	Authority schema.PublicKey
	AssetPair string
}

// UpdateSignalParams carries one attested triple. Signer is the attesting
// key presented with the submission; Signature is Ed25519 over the canonical
// encoded triple. The submitter's own identity carries no trust.
type UpdateSignalParams struct {
	Authority  schema.PublicKey
	AssetPair  string
	Signer     schema.PublicKey
	Signature  []byte
	Context    schema.MarketContext
	Assessment schema.SignalAssessment
	Receipt    schema.TeeReceipt
}

// RevokeSignalParams revokes a signal account. Caller must be its authority.
type RevokeSignalParams struct {
	Caller    schema.PublicKey
	Authority schema.PublicKey
	AssetPair string
}

// PauseProtocolParams pauses or resumes mutating instructions. Admin-only.
type PauseProtocolParams struct {
	Admin  schema.PublicKey
	Paused bool
}

// UpdateConfigParams adjusts protocol parameters; nil fields keep their
// current values. Admin-only.
type UpdateConfigParams struct {
	Admin                  schema.PublicKey
	MinWindowSlots         *uint64
	MaxWindowSlots         *uint64
	MaxAttestationAgeSlots *uint64
	MinSourceCount         *uint8
	MinConfidence          *uint8
}
