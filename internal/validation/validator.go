// Package validation enforces slot-window, value-range, and ordering
// invariants on signal assessments. All functions are pure and read-only.
package validation

import (
	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// Error is a validity failure with a stable machine-readable code.
type Error struct {
	Code   string
	Reason string
}

func (e *Error) Error() string { return "validation: " + e.Reason }

var (
	ErrMalformedWindow    = &Error{Code: "MALFORMED_WINDOW", Reason: "valid_from_slot exceeds valid_until_slot"}
	ErrWindowTooShort     = &Error{Code: "WINDOW_TOO_SHORT", Reason: "validity window below configured minimum"}
	ErrWindowTooLong      = &Error{Code: "WINDOW_TOO_LONG", Reason: "validity window above configured maximum"}
	ErrSignalNotYetValid  = &Error{Code: "SIGNAL_NOT_YET_VALID", Reason: "current slot before valid_from_slot"}
	ErrSignalExpired      = &Error{Code: "SIGNAL_EXPIRED", Reason: "current slot after valid_until_slot"}
	ErrOutOfRange         = &Error{Code: "OUT_OF_RANGE", Reason: "magnitude or confidence outside 0..100"}
	ErrNonMonotonicUpdate = &Error{Code: "NON_MONOTONIC_UPDATE", Reason: "attestation slot does not advance past last update"}
	ErrConfidenceTooLow   = &Error{Code: "CONFIDENCE_TOO_LOW", Reason: "confidence below protocol floor"}
	ErrContextIntegrity   = &Error{Code: "CONTEXT_INTEGRITY", Reason: "market context fails integrity checks"}
)

// ValidateWindow enforces the slot-relative validity window as a security
// invariant: the window must be well-formed, sized within protocol bounds,
// and must contain the current slot.
func ValidateWindow(a *schema.SignalAssessment, currentSlot, minWindow, maxWindow uint64) error {
	if a.ValidFromSlot > a.ValidUntilSlot {
		return ErrMalformedWindow
	}
	width := a.ValidUntilSlot - a.ValidFromSlot
	if width < minWindow {
		return ErrWindowTooShort
	}
	if width > maxWindow {
		return ErrWindowTooLong
	}
	if currentSlot < a.ValidFromSlot {
		return ErrSignalNotYetValid
	}
	if currentSlot > a.ValidUntilSlot {
		return ErrSignalExpired
	}
	return nil
}

// ValidateValues bounds-checks the subjective scores.
func ValidateValues(a *schema.SignalAssessment) error {
	if a.Magnitude > schema.MaxScore || a.Confidence > schema.MaxScore {
		return ErrOutOfRange
	}
	if !a.SignalType.Valid() || !a.Direction.Valid() {
		return ErrOutOfRange
	}
	return nil
}

// ValidateMonotonicity requires every accepted attestation to carry a
// strictly newer slot than the last committed one, preventing replay of a
// previously-valid pair. The very first update compares against the zero
// sentinel and is exempt.
func ValidateMonotonicity(newTimestampSlot, lastUpdateSlot uint64) error {
	if lastUpdateSlot == 0 {
		return nil
	}
	if newTimestampSlot <= lastUpdateSlot {
		return ErrNonMonotonicUpdate
	}
	return nil
}

// ValidateConfidenceFloor rejects assessments below the protocol's minimum
// confidence.
func ValidateConfidenceFloor(a *schema.SignalAssessment, minConfidence uint8) error {
	if a.Confidence < minConfidence {
		return ErrConfidenceTooLow
	}
	return nil
}

// ValidateContext checks observable-data integrity: a priced market, enough
// sources, and a bitmap that agrees with the declared source count. No
// semantics beyond bit 0 being reserved are assumed for the bitmap.
func ValidateContext(m *schema.MarketContext, minSourceCount uint8) error {
	if m.Price == 0 {
		return ErrContextIntegrity
	}
	if m.SourceCount < minSourceCount {
		return ErrContextIntegrity
	}
	if !m.SourceCountMatchesBitmap() {
		return ErrContextIntegrity
	}
	return nil
}
