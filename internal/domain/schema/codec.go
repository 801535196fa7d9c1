package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encoded sizes. Layouts are little-endian and byte-exact; reserved and
// padding bytes are always written as zero and preserved on decode.
const (
	MarketContextSize    = 56
	SignalAssessmentSize = 32
	TeeReceiptSize       = 112
	DiscriminatorSize    = 8
	accountBodySize      = 296
	SignalAccountSize    = DiscriminatorSize + accountBodySize // 304
)

var (
	ErrShortBuffer      = errors.New("schema: buffer too short")
	ErrBadDiscriminator = errors.New("schema: account discriminator mismatch")
	ErrBadEnum          = errors.New("schema: enum value out of range")
)

// AccountDiscriminator tags every encoded SignalAccount so that readers can
// reject foreign account data before interpreting any field.
var AccountDiscriminator = func() [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:SignalAccount"))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}()

// EncodeMarketContext serializes m into its 56-byte wire form.
func EncodeMarketContext(m *MarketContext) []byte {
	b := make([]byte, MarketContextSize)
	binary.LittleEndian.PutUint64(b[0:8], m.Slot)
	binary.LittleEndian.PutUint64(b[8:16], m.Price)
	binary.LittleEndian.PutUint64(b[16:24], m.Volume24h)
	binary.LittleEndian.PutUint64(b[24:32], m.Volatility1h)
	binary.LittleEndian.PutUint64(b[32:40], m.LiquidityDepth)
	binary.LittleEndian.PutUint64(b[40:48], m.SourceBitmap)
	b[48] = m.SourceCount
	copy(b[49:56], m.Reserved[:])
	return b
}

// DecodeMarketContext parses the 56-byte wire form.
func DecodeMarketContext(b []byte) (*MarketContext, error) {
	if len(b) < MarketContextSize {
		return nil, fmt.Errorf("%w: market context needs %d bytes, got %d", ErrShortBuffer, MarketContextSize, len(b))
	}
	m := &MarketContext{
		Slot:           binary.LittleEndian.Uint64(b[0:8]),
		Price:          binary.LittleEndian.Uint64(b[8:16]),
		Volume24h:      binary.LittleEndian.Uint64(b[16:24]),
		Volatility1h:   binary.LittleEndian.Uint64(b[24:32]),
		LiquidityDepth: binary.LittleEndian.Uint64(b[32:40]),
		SourceBitmap:   binary.LittleEndian.Uint64(b[40:48]),
		SourceCount:    b[48],
	}
	copy(m.Reserved[:], b[49:56])
	return m, nil
}

// EncodeSignalAssessment serializes a into its 32-byte wire form.
func EncodeSignalAssessment(a *SignalAssessment) []byte {
	b := make([]byte, SignalAssessmentSize)
	b[0] = uint8(a.SignalType)
	b[1] = uint8(a.Direction)
	b[2] = a.Magnitude
	b[3] = a.Confidence
	// b[4:8] padding, zero
	binary.LittleEndian.PutUint64(b[8:16], a.ValidFromSlot)
	binary.LittleEndian.PutUint64(b[16:24], a.ValidUntilSlot)
	copy(b[24:32], a.ModelVersion[:])
	return b
}

// DecodeSignalAssessment parses the 32-byte wire form. Enum bytes outside
// their defined range are rejected rather than carried through.
func DecodeSignalAssessment(b []byte) (*SignalAssessment, error) {
	if len(b) < SignalAssessmentSize {
		return nil, fmt.Errorf("%w: signal assessment needs %d bytes, got %d", ErrShortBuffer, SignalAssessmentSize, len(b))
	}
	a := &SignalAssessment{
		SignalType:     SignalType(b[0]),
		Direction:      Direction(b[1]),
		Magnitude:      b[2],
		Confidence:     b[3],
		ValidFromSlot:  binary.LittleEndian.Uint64(b[8:16]),
		ValidUntilSlot: binary.LittleEndian.Uint64(b[16:24]),
	}
	copy(a.ModelVersion[:], b[24:32])
	if !a.SignalType.Valid() {
		return nil, fmt.Errorf("%w: signal_type %d", ErrBadEnum, b[0])
	}
	if !a.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction %d", ErrBadEnum, b[1])
	}
	return a, nil
}

// EncodeTeeReceipt serializes r into its 112-byte wire form.
func EncodeTeeReceipt(r *TeeReceipt) []byte {
	b := make([]byte, TeeReceiptSize)
	copy(b[0:32], r.EnclaveSigner[:])
	copy(b[32:64], r.AttestationHash[:])
	copy(b[64:96], r.MrEnclave[:])
	binary.LittleEndian.PutUint64(b[96:104], r.TimestampSlot)
	binary.LittleEndian.PutUint16(b[104:106], r.PlatformVersion)
	copy(b[106:112], r.Reserved[:])
	return b
}

// DecodeTeeReceipt parses the 112-byte wire form.
func DecodeTeeReceipt(b []byte) (*TeeReceipt, error) {
	if len(b) < TeeReceiptSize {
		return nil, fmt.Errorf("%w: tee receipt needs %d bytes, got %d", ErrShortBuffer, TeeReceiptSize, len(b))
	}
	r := &TeeReceipt{
		TimestampSlot:   binary.LittleEndian.Uint64(b[96:104]),
		PlatformVersion: binary.LittleEndian.Uint16(b[104:106]),
	}
	copy(r.EnclaveSigner[:], b[0:32])
	copy(r.AttestationHash[:], b[32:64])
	copy(r.MrEnclave[:], b[64:96])
	copy(r.Reserved[:], b[106:112])
	return r, nil
}

// EncodeSignalAccount serializes s into its 304-byte persisted form,
// discriminator first.
func EncodeSignalAccount(s *SignalAccount) []byte {
	b := make([]byte, SignalAccountSize)
	copy(b[0:8], AccountDiscriminator[:])

	body := b[DiscriminatorSize:]
	body[0] = s.Version
	body[1] = s.Bump
	// body[2:8] padding, zero
	copy(body[8:40], s.Authority[:])
	copy(body[40:72], s.AssetPair[:])
	copy(body[72:128], EncodeMarketContext(&s.MarketContext))
	copy(body[128:160], EncodeSignalAssessment(&s.SignalAssessment))
	copy(body[160:272], EncodeTeeReceipt(&s.TeeReceipt))
	binary.LittleEndian.PutUint64(body[272:280], s.UpdateCount)
	binary.LittleEndian.PutUint64(body[280:288], s.LastUpdateSlot)
	body[288] = uint8(s.Status)
	// body[289:296] alignment, zero
	return b
}

// DecodeSignalAccount parses the 304-byte persisted form, verifying the
// discriminator before touching any field.
func DecodeSignalAccount(b []byte) (*SignalAccount, error) {
	if len(b) < SignalAccountSize {
		return nil, fmt.Errorf("%w: signal account needs %d bytes, got %d", ErrShortBuffer, SignalAccountSize, len(b))
	}
	var disc [DiscriminatorSize]byte
	copy(disc[:], b[0:8])
	if disc != AccountDiscriminator {
		return nil, ErrBadDiscriminator
	}

	body := b[DiscriminatorSize:]
	mc, err := DecodeMarketContext(body[72:128])
	if err != nil {
		return nil, err
	}
	sa, err := DecodeSignalAssessment(body[128:160])
	if err != nil {
		return nil, err
	}
	r, err := DecodeTeeReceipt(body[160:272])
	if err != nil {
		return nil, err
	}

	s := &SignalAccount{
		Version:          body[0],
		Bump:             body[1],
		MarketContext:    *mc,
		SignalAssessment: *sa,
		TeeReceipt:       *r,
		UpdateCount:      binary.LittleEndian.Uint64(body[272:280]),
		LastUpdateSlot:   binary.LittleEndian.Uint64(body[280:288]),
		Status:           AccountStatus(body[288]),
	}
	copy(s.Authority[:], body[8:40])
	copy(s.AssetPair[:], body[40:72])
	if s.Status > StatusRevoked {
		return nil, fmt.Errorf("%w: status %d", ErrBadEnum, body[288])
	}
	return s, nil
}

// EncodeAssetPair packs a "BASE/QUOTE" pair into its zero-padded 32-byte form.
func EncodeAssetPair(pair string) ([32]byte, error) {
	var out [32]byte
	if !utf8.ValidString(pair) {
		return out, fmt.Errorf("asset pair: invalid UTF-8")
	}
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return out, fmt.Errorf("asset pair %q: want BASE/QUOTE", pair)
	}
	if len(pair) > len(out) {
		return out, fmt.Errorf("asset pair %q: exceeds %d bytes", pair, len(out))
	}
	copy(out[:], pair)
	return out, nil
}

// DecodeAssetPair strips the zero padding back off.
func DecodeAssetPair(b [32]byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// accountSeed prefixes key derivation so signal keys can never collide with
// other derived key families.
const accountSeed = "signal"

// DeriveAccountKey computes the deterministic account address for an
// (asset_pair, authority) stream.
func DeriveAccountKey(assetPair [32]byte, authority PublicKey) Digest {
	h := sha256.New()
	h.Write([]byte(accountSeed))
	h.Write(assetPair[:])
	h.Write(authority[:])
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// updateSigningDomain separates update signatures from any other message an
// enclave key might sign.
const updateSigningDomain = "sso1:update:v1"

// UpdateSigningDigest is the canonical message an enclave signs to bind a
// (context, assessment, receipt) triple to its signing key.
func UpdateSigningDigest(m *MarketContext, a *SignalAssessment, r *TeeReceipt) [32]byte {
	h := sha256.New()
	h.Write([]byte(updateSigningDomain))
	h.Write(EncodeMarketContext(m))
	h.Write(EncodeSignalAssessment(a))
	h.Write(EncodeTeeReceipt(r))
	var d [32]byte
	copy(d[:], h.Sum(nil))
	return d
}
