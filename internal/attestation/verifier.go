// Package attestation validates TEE receipts against the provider allowlist.
// Verification is a pure function of its inputs: the registry is passed in
// explicitly and nothing here reads or mutates shared state.
package attestation

import (
	"crypto/ed25519"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// Error is an attestation failure with a stable machine-readable code.
type Error struct {
	Code   string
	Reason string
}

func (e *Error) Error() string { return "attestation: " + e.Reason }

var (
	ErrSignerMismatch        = &Error{Code: "SIGNER_MISMATCH", Reason: "attesting signer does not match receipt enclave signer"}
	ErrEnclaveNotAllowlisted = &Error{Code: "ENCLAVE_NOT_ALLOWLISTED", Reason: "mr_enclave has no active allowlist entry"}
	ErrPlatformVersionTooLow = &Error{Code: "PLATFORM_VERSION_TOO_LOW", Reason: "receipt platform version below allowlist minimum"}
	ErrAttestationStale      = &Error{Code: "ATTESTATION_STALE", Reason: "receipt timestamp outside the freshness window"}
	ErrSignatureInvalid      = &Error{Code: "SIGNATURE_INVALID", Reason: "enclave signature does not verify"}
)

// Verify checks a receipt against the allowlist. Checks run in a fixed order
// and short-circuit on the first failure; on success nothing is mutated.
//
// Order: signer binding, allowlist membership, platform version floor,
// freshness. A future-dated receipt is rejected as stale rather than risking
// an age underflow.
func Verify(receipt *schema.TeeReceipt, signer schema.PublicKey, registry *schema.ProviderRegistry, currentSlot, maxAgeSlots uint64) error {
	if signer != receipt.EnclaveSigner {
		return ErrSignerMismatch
	}

	entry, ok := registry.ActiveEntry(receipt.MrEnclave)
	if !ok {
		return ErrEnclaveNotAllowlisted
	}

	if receipt.PlatformVersion < entry.MinPlatformVersion {
		return ErrPlatformVersionTooLow
	}

	if receipt.TimestampSlot > currentSlot {
		return ErrAttestationStale
	}
	if currentSlot-receipt.TimestampSlot > maxAgeSlots {
		return ErrAttestationStale
	}

	return nil
}

// VerifySignature checks the Ed25519 signature binding an update payload to
// the enclave signing key named in its receipt. The submitter's own identity
// is never part of the trust chain; only this signature is.
func VerifySignature(digest [32]byte, signature []byte, signer schema.PublicKey) error {
	if len(signature) != ed25519.SignatureSize {
		return ErrSignatureInvalid
	}
	if !ed25519.Verify(ed25519.PublicKey(signer[:]), digest[:], signature) {
		return ErrSignatureInvalid
	}
	return nil
}
