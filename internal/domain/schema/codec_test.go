package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"
)

func sampleContext() MarketContext {
	return MarketContext{
		Slot:           1200,
		Price:          52_000 * PriceScale,
		Volume24h:      9_876_543_210,
		Volatility1h:   42 * VolatilityScale,
		LiquidityDepth: 1_000_000,
		SourceBitmap:   0b10110,
		SourceCount:    3,
	}
}

func sampleAssessment() SignalAssessment {
	a := SignalAssessment{
		SignalType:     SignalMomentum,
		Direction:      DirectionLong,
		Magnitude:      80,
		Confidence:     65,
		ValidFromSlot:  1200,
		ValidUntilSlot: 1500,
	}
	copy(a.ModelVersion[:], "v2.1")
	return a
}

func sampleReceipt() TeeReceipt {
	r := TeeReceipt{
		TimestampSlot:   1199,
		PlatformVersion: 7,
	}
	for i := range r.EnclaveSigner {
		r.EnclaveSigner[i] = byte(i + 1)
	}
	for i := range r.AttestationHash {
		r.AttestationHash[i] = byte(0xA0 + i)
	}
	for i := range r.MrEnclave {
		r.MrEnclave[i] = byte(0x40 + i)
	}
	return r
}

func TestMarketContextRoundTrip(t *testing.T) {
	m := sampleContext()
	b := EncodeMarketContext(&m)
	if len(b) != MarketContextSize {
		t.Fatalf("encoded length = %d, want %d", len(b), MarketContextSize)
	}
	got, err := DecodeMarketContext(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != m {
		t.Fatalf("round trip mismatch: %+v != %+v", *got, m)
	}
}

func TestMarketContextLayout(t *testing.T) {
	m := sampleContext()
	b := EncodeMarketContext(&m)
	if got := binary.LittleEndian.Uint64(b[0:8]); got != m.Slot {
		t.Fatalf("slot at offset 0 = %d, want %d", got, m.Slot)
	}
	if got := binary.LittleEndian.Uint64(b[8:16]); got != m.Price {
		t.Fatalf("price at offset 8 = %d, want %d", got, m.Price)
	}
	if got := binary.LittleEndian.Uint64(b[40:48]); got != m.SourceBitmap {
		t.Fatalf("bitmap at offset 40 = %d, want %d", got, m.SourceBitmap)
	}
	if b[48] != m.SourceCount {
		t.Fatalf("source count at offset 48 = %d, want %d", b[48], m.SourceCount)
	}
	for i := 49; i < 56; i++ {
		if b[i] != 0 {
			t.Fatalf("reserved byte %d not zero", i)
		}
	}
}

func TestMarketContextShortBuffer(t *testing.T) {
	_, err := DecodeMarketContext(make([]byte, MarketContextSize-1))
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestSignalAssessmentRoundTrip(t *testing.T) {
	a := sampleAssessment()
	b := EncodeSignalAssessment(&a)
	if len(b) != SignalAssessmentSize {
		t.Fatalf("encoded length = %d, want %d", len(b), SignalAssessmentSize)
	}
	got, err := DecodeSignalAssessment(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != a {
		t.Fatalf("round trip mismatch: %+v != %+v", *got, a)
	}
}

func TestSignalAssessmentLayout(t *testing.T) {
	a := sampleAssessment()
	b := EncodeSignalAssessment(&a)
	if b[0] != uint8(a.SignalType) || b[1] != uint8(a.Direction) || b[2] != a.Magnitude || b[3] != a.Confidence {
		t.Fatalf("header bytes = %v", b[:4])
	}
	for i := 4; i < 8; i++ {
		if b[i] != 0 {
			t.Fatalf("padding byte %d not zero", i)
		}
	}
	if got := binary.LittleEndian.Uint64(b[8:16]); got != a.ValidFromSlot {
		t.Fatalf("valid_from at offset 8 = %d, want %d", got, a.ValidFromSlot)
	}
	if got := binary.LittleEndian.Uint64(b[16:24]); got != a.ValidUntilSlot {
		t.Fatalf("valid_until at offset 16 = %d, want %d", got, a.ValidUntilSlot)
	}
	if !bytes.Equal(b[24:32], a.ModelVersion[:]) {
		t.Fatalf("model version at offset 24 = %v", b[24:32])
	}
}

func TestSignalAssessmentRejectsBadEnums(t *testing.T) {
	a := sampleAssessment()
	b := EncodeSignalAssessment(&a)

	bad := append([]byte(nil), b...)
	bad[0] = uint8(SignalReserved) + 1
	if _, err := DecodeSignalAssessment(bad); !errors.Is(err, ErrBadEnum) {
		t.Fatalf("expected ErrBadEnum for signal_type, got %v", err)
	}

	bad = append([]byte(nil), b...)
	bad[1] = uint8(DirectionShort) + 1
	if _, err := DecodeSignalAssessment(bad); !errors.Is(err, ErrBadEnum) {
		t.Fatalf("expected ErrBadEnum for direction, got %v", err)
	}
}

func TestTeeReceiptRoundTrip(t *testing.T) {
	r := sampleReceipt()
	b := EncodeTeeReceipt(&r)
	if len(b) != TeeReceiptSize {
		t.Fatalf("encoded length = %d, want %d", len(b), TeeReceiptSize)
	}
	got, err := DecodeTeeReceipt(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != r {
		t.Fatalf("round trip mismatch")
	}
	if !bytes.Equal(b[0:32], r.EnclaveSigner[:]) {
		t.Fatalf("signer not at offset 0")
	}
	if !bytes.Equal(b[64:96], r.MrEnclave[:]) {
		t.Fatalf("mr_enclave not at offset 64")
	}
	if got := binary.LittleEndian.Uint64(b[96:104]); got != r.TimestampSlot {
		t.Fatalf("timestamp at offset 96 = %d", got)
	}
	if got := binary.LittleEndian.Uint16(b[104:106]); got != r.PlatformVersion {
		t.Fatalf("platform version at offset 104 = %d", got)
	}
}

func TestSignalAccountRoundTrip(t *testing.T) {
	pair, err := EncodeAssetPair("SOL/USDC")
	if err != nil {
		t.Fatalf("encode pair: %v", err)
	}
	var authority PublicKey
	for i := range authority {
		authority[i] = byte(0x80 + i)
	}
	s := SignalAccount{
		Version:          SpecVersion,
		Bump:             0xFD,
		Authority:        authority,
		AssetPair:        pair,
		MarketContext:    sampleContext(),
		SignalAssessment: sampleAssessment(),
		TeeReceipt:       sampleReceipt(),
		UpdateCount:      17,
		LastUpdateSlot:   1199,
		Status:           StatusActive,
	}
	b := EncodeSignalAccount(&s)
	if len(b) != SignalAccountSize {
		t.Fatalf("encoded length = %d, want %d", len(b), SignalAccountSize)
	}
	if !bytes.Equal(b[:DiscriminatorSize], AccountDiscriminator[:]) {
		t.Fatalf("discriminator not first")
	}

	got, err := DecodeSignalAccount(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != s {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *got, s)
	}
	if got.PairString() != "SOL/USDC" {
		t.Fatalf("pair string = %q", got.PairString())
	}
}

func TestSignalAccountRejectsForeignDiscriminator(t *testing.T) {
	s := SignalAccount{Version: SpecVersion, Status: StatusActive}
	b := EncodeSignalAccount(&s)
	b[0] ^= 0xFF
	if _, err := DecodeSignalAccount(b); !errors.Is(err, ErrBadDiscriminator) {
		t.Fatalf("expected ErrBadDiscriminator, got %v", err)
	}
}

func TestSignalAccountRejectsBadStatus(t *testing.T) {
	s := SignalAccount{Version: SpecVersion, Status: StatusActive}
	b := EncodeSignalAccount(&s)
	b[DiscriminatorSize+288] = uint8(StatusRevoked) + 1
	if _, err := DecodeSignalAccount(b); !errors.Is(err, ErrBadEnum) {
		t.Fatalf("expected ErrBadEnum, got %v", err)
	}
}

func TestSignalAccountShortBuffer(t *testing.T) {
	if _, err := DecodeSignalAccount(make([]byte, SignalAccountSize-1)); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestAccountDiscriminatorDerivation(t *testing.T) {
	sum := sha256.Sum256([]byte("account:SignalAccount"))
	if !bytes.Equal(AccountDiscriminator[:], sum[:DiscriminatorSize]) {
		t.Fatalf("discriminator %x not derived from account name", AccountDiscriminator)
	}
}

func TestEncodeAssetPair(t *testing.T) {
	cases := []struct {
		pair string
		ok   bool
	}{
		{"SOL/USDC", true},
		{"BTC/USD", true},
		{"ETHUSDC", false},
		{"/USDC", false},
		{"SOL/", false},
		{"", false},
		{"AVERYLONGBASEASSET/AVERYLONGQUOTE1", false}, // 33 bytes
		{"AVERYLONGBASEASSET/AVERYLONGQUOT", true},    // 32 bytes
		{"SOL/USD\xff\xfe", false},                    // invalid UTF-8
	}
	for _, tc := range cases {
		enc, err := EncodeAssetPair(tc.pair)
		if tc.ok && err != nil {
			t.Fatalf("EncodeAssetPair(%q): %v", tc.pair, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("EncodeAssetPair(%q): expected error", tc.pair)
			}
			continue
		}
		if got := DecodeAssetPair(enc); got != tc.pair {
			t.Fatalf("DecodeAssetPair = %q, want %q", got, tc.pair)
		}
	}
}

func TestDeriveAccountKeyDeterministic(t *testing.T) {
	pairA, _ := EncodeAssetPair("SOL/USDC")
	pairB, _ := EncodeAssetPair("BTC/USDC")
	var auth1, auth2 PublicKey
	auth1[0] = 1
	auth2[0] = 2

	k1 := DeriveAccountKey(pairA, auth1)
	k2 := DeriveAccountKey(pairA, auth1)
	if k1 != k2 {
		t.Fatalf("derivation not deterministic")
	}
	if DeriveAccountKey(pairB, auth1) == k1 {
		t.Fatalf("different pairs collide")
	}
	if DeriveAccountKey(pairA, auth2) == k1 {
		t.Fatalf("different authorities collide")
	}
	if k1.IsZero() {
		t.Fatalf("derived key is zero")
	}
}

func TestUpdateSigningDigestBindsAllParts(t *testing.T) {
	m := sampleContext()
	a := sampleAssessment()
	r := sampleReceipt()

	d1 := UpdateSigningDigest(&m, &a, &r)
	d2 := UpdateSigningDigest(&m, &a, &r)
	if d1 != d2 {
		t.Fatalf("digest not stable")
	}

	m2 := m
	m2.Price++
	if UpdateSigningDigest(&m2, &a, &r) == d1 {
		t.Fatalf("context change not reflected in digest")
	}
	a2 := a
	a2.Confidence++
	if UpdateSigningDigest(&m, &a2, &r) == d1 {
		t.Fatalf("assessment change not reflected in digest")
	}
	r2 := r
	r2.TimestampSlot++
	if UpdateSigningDigest(&m, &a, &r2) == d1 {
		t.Fatalf("receipt change not reflected in digest")
	}
}

func TestParsePublicKey(t *testing.T) {
	var k PublicKey
	for i := range k {
		k[i] = byte(i)
	}
	got, err := ParsePublicKey(k.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != k {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParsePublicKey("abcd"); err == nil {
		t.Fatalf("expected error for short hex")
	}
	if _, err := ParsePublicKey("zz" + k.String()[2:]); err == nil {
		t.Fatalf("expected error for non-hex")
	}
}

func TestIsValidAtSlot(t *testing.T) {
	s := SignalAccount{Status: StatusActive}
	s.SignalAssessment.ValidFromSlot = 100
	s.SignalAssessment.ValidUntilSlot = 200

	if !s.IsValidAtSlot(100) || !s.IsValidAtSlot(150) || !s.IsValidAtSlot(200) {
		t.Fatalf("expected valid inside window")
	}
	if s.IsValidAtSlot(99) || s.IsValidAtSlot(201) {
		t.Fatalf("expected invalid outside window")
	}

	remaining, ok := s.RemainingValidity(150)
	if !ok || remaining != 50 {
		t.Fatalf("remaining = %d, %v", remaining, ok)
	}

	s.Status = StatusRevoked
	if s.IsValidAtSlot(150) {
		t.Fatalf("revoked account reported valid")
	}
	if _, ok := s.RemainingValidity(150); ok {
		t.Fatalf("revoked account has remaining validity")
	}
}

func TestSourceCountMatchesBitmap(t *testing.T) {
	m := MarketContext{SourceBitmap: 0b10110, SourceCount: 3}
	if !m.SourceCountMatchesBitmap() {
		t.Fatalf("expected bitmap match")
	}
	m.SourceCount = 4
	if m.SourceCountMatchesBitmap() {
		t.Fatalf("expected bitmap mismatch")
	}
}
