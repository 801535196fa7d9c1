package models

import (
	"fmt"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

func parseSignalType(s string) (schema.SignalType, error) {
	switch s {
	case "momentum":
		return schema.SignalMomentum, nil
	case "mean_reversion":
		return schema.SignalMeanReversion, nil
	case "volatility":
		return schema.SignalVolatility, nil
	case "liquidity":
		return schema.SignalLiquidity, nil
	case "reserved":
		return schema.SignalReserved, nil
	default:
		return 0, fmt.Errorf("unknown signal_type %q", s)
	}
}

func parseDirection(s string) (schema.Direction, error) {
	switch s {
	case "neutral":
		return schema.DirectionNeutral, nil
	case "long":
		return schema.DirectionLong, nil
	case "short":
		return schema.DirectionShort, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// ToMarketContext converts the JSON payload to its schema value.
func (p *MarketContextPayload) ToMarketContext() schema.MarketContext {
	return schema.MarketContext{
		Slot:           p.Slot,
		Price:          p.Price,
		Volume24h:      p.Volume24h,
		Volatility1h:   p.Volatility1h,
		LiquidityDepth: p.LiquidityDepth,
		SourceBitmap:   p.SourceBitmap,
		SourceCount:    p.SourceCount,
	}
}

// ToSignalAssessment converts the JSON payload to its schema value.
func (p *SignalAssessmentPayload) ToSignalAssessment() (schema.SignalAssessment, error) {
	st, err := parseSignalType(p.SignalType)
	if err != nil {
		return schema.SignalAssessment{}, err
	}
	dir, err := parseDirection(p.Direction)
	if err != nil {
		return schema.SignalAssessment{}, err
	}
	a := schema.SignalAssessment{
		SignalType:     st,
		Direction:      dir,
		Magnitude:      p.Magnitude,
		Confidence:     p.Confidence,
		ValidFromSlot:  p.ValidFromSlot,
		ValidUntilSlot: p.ValidUntilSlot,
	}
	copy(a.ModelVersion[:], p.ModelVersion)
	return a, nil
}

// ToTeeReceipt converts the JSON payload to its schema value.
func (p *TeeReceiptPayload) ToTeeReceipt() (schema.TeeReceipt, error) {
	signer, err := schema.ParsePublicKey(p.EnclaveSigner)
	if err != nil {
		return schema.TeeReceipt{}, err
	}
	att, err := schema.ParseDigest(p.AttestationHash)
	if err != nil {
		return schema.TeeReceipt{}, err
	}
	mr, err := schema.ParseDigest(p.MrEnclave)
	if err != nil {
		return schema.TeeReceipt{}, err
	}
	return schema.TeeReceipt{
		EnclaveSigner:   signer,
		AttestationHash: att,
		MrEnclave:       mr,
		TimestampSlot:   p.TimestampSlot,
		PlatformVersion: p.PlatformVersion,
	}, nil
}

func trimModelVersion(v [8]byte) string {
	n := len(v)
	for n > 0 && v[n-1] == 0 {
		n--
	}
	return string(v[:n])
}

// NewSignalView projects an account for read-side consumers at currentSlot.
func NewSignalView(acct *schema.SignalAccount, key schema.Digest, currentSlot uint64) SignalView {
	remaining, valid := acct.RemainingValidity(currentSlot)
	return SignalView{
		AssetPair:  acct.PairString(),
		Authority:  acct.Authority.String(),
		AccountKey: key.String(),
		Status:     acct.Status.String(),
		Context: MarketContextPayload{
			Slot:           acct.MarketContext.Slot,
			Price:          acct.MarketContext.Price,
			Volume24h:      acct.MarketContext.Volume24h,
			Volatility1h:   acct.MarketContext.Volatility1h,
			LiquidityDepth: acct.MarketContext.LiquidityDepth,
			SourceBitmap:   acct.MarketContext.SourceBitmap,
			SourceCount:    acct.MarketContext.SourceCount,
		},
		Assessment: SignalAssessmentPayload{
			SignalType:     acct.SignalAssessment.SignalType.String(),
			Direction:      acct.SignalAssessment.Direction.String(),
			Magnitude:      acct.SignalAssessment.Magnitude,
			Confidence:     acct.SignalAssessment.Confidence,
			ValidFromSlot:  acct.SignalAssessment.ValidFromSlot,
			ValidUntilSlot: acct.SignalAssessment.ValidUntilSlot,
			ModelVersion:   trimModelVersion(acct.SignalAssessment.ModelVersion),
		},
		Receipt: TeeReceiptPayload{
			EnclaveSigner:   acct.TeeReceipt.EnclaveSigner.String(),
			AttestationHash: acct.TeeReceipt.AttestationHash.String(),
			MrEnclave:       acct.TeeReceipt.MrEnclave.String(),
			TimestampSlot:   acct.TeeReceipt.TimestampSlot,
			PlatformVersion: acct.TeeReceipt.PlatformVersion,
		},
		UpdateCount:    acct.UpdateCount,
		LastUpdateSlot: acct.LastUpdateSlot,
		CurrentSlot:    currentSlot,
		Valid:          valid,
		RemainingSlots: remaining,
	}
}
