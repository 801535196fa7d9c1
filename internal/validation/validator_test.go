package validation

import (
	"errors"
	"testing"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

func assessment(from, until uint64) *schema.SignalAssessment {
	return &schema.SignalAssessment{
		SignalType:     schema.SignalMomentum,
		Direction:      schema.DirectionLong,
		Magnitude:      50,
		Confidence:     50,
		ValidFromSlot:  from,
		ValidUntilSlot: until,
	}
}

func TestValidateWindow(t *testing.T) {
	cases := []struct {
		name        string
		from, until uint64
		current     uint64
		want        error
	}{
		{"ok", 100, 200, 150, nil},
		{"ok at lower edge", 100, 200, 100, nil},
		{"ok at upper edge", 100, 200, 200, nil},
		{"malformed", 200, 100, 150, ErrMalformedWindow},
		{"too short", 100, 105, 102, ErrWindowTooShort},
		{"too long", 100, 5000, 150, ErrWindowTooLong},
		{"not yet valid", 100, 200, 99, ErrSignalNotYetValid},
		{"expired", 100, 200, 201, ErrSignalExpired},
	}
	for _, tc := range cases {
		err := ValidateWindow(assessment(tc.from, tc.until), tc.current, 10, 1000)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValidateWindowExactBounds(t *testing.T) {
	// Width exactly minWindow and exactly maxWindow both pass.
	if err := ValidateWindow(assessment(100, 110), 105, 10, 1000); err != nil {
		t.Fatalf("width == min: %v", err)
	}
	if err := ValidateWindow(assessment(100, 1100), 105, 10, 1000); err != nil {
		t.Fatalf("width == max: %v", err)
	}
}

func TestValidateValues(t *testing.T) {
	a := assessment(100, 200)
	if err := ValidateValues(a); err != nil {
		t.Fatalf("valid assessment rejected: %v", err)
	}
	a.Magnitude = 101
	if err := ValidateValues(a); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for magnitude, got %v", err)
	}
	a.Magnitude = 100
	a.Confidence = 101
	if err := ValidateValues(a); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for confidence, got %v", err)
	}
	a.Confidence = 100
	a.SignalType = schema.SignalType(99)
	if err := ValidateValues(a); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for signal type, got %v", err)
	}
}

func TestValidateMonotonicity(t *testing.T) {
	// First-ever update: last slot is the zero sentinel.
	if err := ValidateMonotonicity(500, 0); err != nil {
		t.Fatalf("first update rejected: %v", err)
	}
	if err := ValidateMonotonicity(501, 500); err != nil {
		t.Fatalf("advancing update rejected: %v", err)
	}
	if err := ValidateMonotonicity(500, 500); !errors.Is(err, ErrNonMonotonicUpdate) {
		t.Fatalf("expected ErrNonMonotonicUpdate for equal slot, got %v", err)
	}
	if err := ValidateMonotonicity(499, 500); !errors.Is(err, ErrNonMonotonicUpdate) {
		t.Fatalf("expected ErrNonMonotonicUpdate for replay, got %v", err)
	}
}

func TestValidateConfidenceFloor(t *testing.T) {
	a := assessment(100, 200)
	a.Confidence = 20
	if err := ValidateConfidenceFloor(a, 20); err != nil {
		t.Fatalf("confidence at floor rejected: %v", err)
	}
	a.Confidence = 19
	if err := ValidateConfidenceFloor(a, 20); !errors.Is(err, ErrConfidenceTooLow) {
		t.Fatalf("expected ErrConfidenceTooLow, got %v", err)
	}
}

func TestValidateContext(t *testing.T) {
	m := &schema.MarketContext{
		Price:        1000,
		SourceBitmap: 0b111,
		SourceCount:  3,
	}
	if err := ValidateContext(m, 3); err != nil {
		t.Fatalf("valid context rejected: %v", err)
	}

	zero := *m
	zero.Price = 0
	if err := ValidateContext(&zero, 3); !errors.Is(err, ErrContextIntegrity) {
		t.Fatalf("expected ErrContextIntegrity for zero price, got %v", err)
	}

	few := *m
	few.SourceBitmap = 0b11
	few.SourceCount = 2
	if err := ValidateContext(&few, 3); !errors.Is(err, ErrContextIntegrity) {
		t.Fatalf("expected ErrContextIntegrity for too few sources, got %v", err)
	}

	lying := *m
	lying.SourceCount = 4
	if err := ValidateContext(&lying, 3); !errors.Is(err, ErrContextIntegrity) {
		t.Fatalf("expected ErrContextIntegrity for bitmap mismatch, got %v", err)
	}
}
