package schema

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"
)

// Protocol constants.
const (
	// SpecVersion is the on-wire protocol version carried in every SignalAccount.
	SpecVersion uint8 = 1

	// PriceScale scales prices to integer units (10^9).
	PriceScale uint64 = 1_000_000_000

	// VolatilityScale scales volatility to integer units (10^6).
	VolatilityScale uint64 = 1_000_000

	// MaxScore is the upper bound for magnitude and confidence.
	MaxScore uint8 = 100
)

// PublicKey identifies an authority, admin, or enclave signing key.
type PublicKey [32]byte

// IsZero reports whether the key is all zeroes.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// ParsePublicKey decodes a 64-char hex public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return k, fmt.Errorf("parse public key: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("parse public key: want %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Digest is a 32-byte measurement or hash (mr_enclave, attestation hash, account key).
type Digest [32]byte

func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// ParseDigest decodes a 64-char hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

// SignalType classifies what kind of signal an assessment expresses.
type SignalType uint8

const (
	SignalMomentum SignalType = iota
	SignalMeanReversion
	SignalVolatility
	SignalLiquidity
	SignalReserved
)

func (t SignalType) Valid() bool { return t <= SignalReserved }

func (t SignalType) String() string {
	switch t {
	case SignalMomentum:
		return "momentum"
	case SignalMeanReversion:
		return "mean_reversion"
	case SignalVolatility:
		return "volatility"
	case SignalLiquidity:
		return "liquidity"
	case SignalReserved:
		return "reserved"
	default:
		return fmt.Sprintf("signal_type(%d)", uint8(t))
	}
}

// Direction is the suggested position direction.
type Direction uint8

const (
	DirectionNeutral Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) Valid() bool { return d <= DirectionShort }

func (d Direction) String() string {
	switch d {
	case DirectionNeutral:
		return "neutral"
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// AccountStatus is the lifecycle state of a SignalAccount.
// Uninitialized never appears in persisted form; it models the absent account.
type AccountStatus uint8

const (
	StatusUninitialized AccountStatus = iota
	StatusActive
	StatusRevoked
)

func (s AccountStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// MarketContext is the objective, observable market state captured at signal
// generation time. It is replaced wholesale on every successful update and is
// never mutated field-by-field.
type MarketContext struct {
	Slot           uint64
	Price          uint64 // scaled by PriceScale
	Volume24h      uint64
	Volatility1h   uint64 // scaled by VolatilityScale
	LiquidityDepth uint64
	SourceBitmap   uint64 // bit 0 reserved; other assignments unspecified
	SourceCount    uint8
	Reserved       [7]byte
}

// SourceCountMatchesBitmap reports whether the populated bitmap bits agree
// with the declared source count.
func (m *MarketContext) SourceCountMatchesBitmap() bool {
	return bits.OnesCount64(m.SourceBitmap) == int(m.SourceCount)
}

// SignalAssessment is the subjective interpretation derived from a
// MarketContext. The two structures are deliberately separate types: objective
// observation and derived opinion must never share a schema.
type SignalAssessment struct {
	SignalType     SignalType
	Direction      Direction
	Magnitude      uint8 // 0..100
	Confidence     uint8 // 0..100
	ValidFromSlot  uint64
	ValidUntilSlot uint64
	ModelVersion   [8]byte
}

// WindowWidth returns valid_until - valid_from, or 0 for a malformed window.
func (a *SignalAssessment) WindowWidth() uint64 {
	if a.ValidFromSlot > a.ValidUntilSlot {
		return 0
	}
	return a.ValidUntilSlot - a.ValidFromSlot
}

// TeeReceipt is the hardware attestation proving that the associated context
// and assessment were produced inside a measured enclave.
type TeeReceipt struct {
	EnclaveSigner   PublicKey
	AttestationHash Digest
	MrEnclave       Digest
	TimestampSlot   uint64
	PlatformVersion uint16
	Reserved        [6]byte
}

// SignalAccount is the persisted, tamper-evident state for one
// (asset_pair, authority) signal stream.
type SignalAccount struct {
	Version          uint8
	Bump             uint8
	Authority        PublicKey
	AssetPair        [32]byte
	MarketContext    MarketContext
	SignalAssessment SignalAssessment
	TeeReceipt       TeeReceipt
	UpdateCount      uint64
	LastUpdateSlot   uint64
	Status           AccountStatus
}

// IsValidAtSlot reports whether the stored signal may be consumed at slot.
// Readers must perform this check themselves: the write-path window check
// does not cover reads that happen later.
func (s *SignalAccount) IsValidAtSlot(slot uint64) bool {
	return s.Status == StatusActive &&
		s.SignalAssessment.ValidFromSlot <= slot &&
		slot <= s.SignalAssessment.ValidUntilSlot
}

// RemainingValidity returns the slots left until expiry, and false once the
// signal is expired or revoked.
func (s *SignalAccount) RemainingValidity(slot uint64) (uint64, bool) {
	if !s.IsValidAtSlot(slot) {
		return 0, false
	}
	return s.SignalAssessment.ValidUntilSlot - slot, true
}

// PairString returns the decoded asset pair.
func (s *SignalAccount) PairString() string { return DecodeAssetPair(s.AssetPair) }

// Config is the protocol-wide configuration singleton.
type Config struct {
	Admin                  PublicKey
	MinWindowSlots         uint64
	MaxWindowSlots         uint64
	MaxAttestationAgeSlots uint64
	MinSourceCount         uint8
	MinConfidence          uint8
	Paused                 bool
	ProtocolVersion        uint16
	TotalSignals           uint64
	TotalProviders         uint64
}

// Validate checks internal consistency of protocol parameters.
func (c *Config) Validate() error {
	if c.Admin.IsZero() {
		return fmt.Errorf("config: admin key is required")
	}
	if c.MinWindowSlots > c.MaxWindowSlots {
		return fmt.Errorf("config: min window %d exceeds max window %d", c.MinWindowSlots, c.MaxWindowSlots)
	}
	if c.MinConfidence > MaxScore {
		return fmt.Errorf("config: min confidence %d exceeds %d", c.MinConfidence, MaxScore)
	}
	if c.MinSourceCount < 1 {
		return fmt.Errorf("config: min source count must be at least 1")
	}
	return nil
}
