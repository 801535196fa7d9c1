package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

func testReceipt() (*schema.TeeReceipt, schema.Digest) {
	var mr schema.Digest
	mr[0] = 0x11
	r := &schema.TeeReceipt{
		MrEnclave:       mr,
		TimestampSlot:   1000,
		PlatformVersion: 5,
	}
	r.EnclaveSigner[0] = 0x22
	return r, mr
}

func registryWith(mr schema.Digest, signer schema.PublicKey, minPV uint16) *schema.ProviderRegistry {
	reg := schema.NewProviderRegistry()
	reg.Register(schema.ProviderEntry{
		MrEnclave:          mr,
		EnclaveSigner:      signer,
		MinPlatformVersion: minPV,
		RegisteredAtSlot:   1,
	})
	return reg
}

func TestVerifyHappyPath(t *testing.T) {
	r, mr := testReceipt()
	reg := registryWith(mr, r.EnclaveSigner, 3)
	if err := Verify(r, r.EnclaveSigner, reg, 1050, 150); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifySignerMismatch(t *testing.T) {
	r, mr := testReceipt()
	reg := registryWith(mr, r.EnclaveSigner, 3)
	var other schema.PublicKey
	other[0] = 0x99
	if err := Verify(r, other, reg, 1050, 150); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("expected ErrSignerMismatch, got %v", err)
	}
}

func TestVerifyEnclaveNotAllowlisted(t *testing.T) {
	r, _ := testReceipt()
	reg := schema.NewProviderRegistry()
	if err := Verify(r, r.EnclaveSigner, reg, 1050, 150); !errors.Is(err, ErrEnclaveNotAllowlisted) {
		t.Fatalf("expected ErrEnclaveNotAllowlisted, got %v", err)
	}
}

func TestVerifyRevokedEnclaveRejected(t *testing.T) {
	r, mr := testReceipt()
	reg := registryWith(mr, r.EnclaveSigner, 3)
	reg.Revoke(mr, 900)
	if err := Verify(r, r.EnclaveSigner, reg, 1050, 150); !errors.Is(err, ErrEnclaveNotAllowlisted) {
		t.Fatalf("expected ErrEnclaveNotAllowlisted after revoke, got %v", err)
	}
}

func TestVerifyPlatformVersionFloor(t *testing.T) {
	r, mr := testReceipt()
	r.PlatformVersion = 2
	reg := registryWith(mr, r.EnclaveSigner, 3)
	if err := Verify(r, r.EnclaveSigner, reg, 1050, 150); !errors.Is(err, ErrPlatformVersionTooLow) {
		t.Fatalf("expected ErrPlatformVersionTooLow, got %v", err)
	}
	// Equal to the floor passes.
	r.PlatformVersion = 3
	if err := Verify(r, r.EnclaveSigner, reg, 1050, 150); err != nil {
		t.Fatalf("verify at floor: %v", err)
	}
}

func TestVerifyStaleness(t *testing.T) {
	r, mr := testReceipt()
	reg := registryWith(mr, r.EnclaveSigner, 3)

	// Exactly maxAge slots old passes.
	if err := Verify(r, r.EnclaveSigner, reg, r.TimestampSlot+150, 150); err != nil {
		t.Fatalf("verify at age boundary: %v", err)
	}
	// One slot beyond is stale.
	if err := Verify(r, r.EnclaveSigner, reg, r.TimestampSlot+151, 150); !errors.Is(err, ErrAttestationStale) {
		t.Fatalf("expected ErrAttestationStale, got %v", err)
	}
	// Future-dated receipts are stale too, never an underflow.
	if err := Verify(r, r.EnclaveSigner, reg, r.TimestampSlot-1, 150); !errors.Is(err, ErrAttestationStale) {
		t.Fatalf("expected ErrAttestationStale for future receipt, got %v", err)
	}
}

func TestVerifyCheckOrder(t *testing.T) {
	// With several problems at once, signer binding is reported first.
	r, mr := testReceipt()
	r.PlatformVersion = 0
	reg := registryWith(mr, r.EnclaveSigner, 3)
	var other schema.PublicKey
	other[0] = 0x99
	if err := Verify(r, other, reg, r.TimestampSlot+9999, 150); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("expected signer check first, got %v", err)
	}
	// Signer fixed: allowlist comes before version and freshness.
	reg2 := schema.NewProviderRegistry()
	if err := Verify(r, r.EnclaveSigner, reg2, r.TimestampSlot+9999, 150); !errors.Is(err, ErrEnclaveNotAllowlisted) {
		t.Fatalf("expected allowlist check second, got %v", err)
	}
	// Allowlisted: version floor comes before freshness.
	if err := Verify(r, r.EnclaveSigner, reg, r.TimestampSlot+9999, 150); !errors.Is(err, ErrPlatformVersionTooLow) {
		t.Fatalf("expected version check third, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var signer schema.PublicKey
	copy(signer[:], pub)

	var digest [32]byte
	digest[0] = 0x42
	sig := ed25519.Sign(priv, digest[:])

	if err := VerifySignature(digest, sig, signer); err != nil {
		t.Fatalf("verify signature: %v", err)
	}

	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xFF
	if err := VerifySignature(digest, tampered, signer); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for tampered sig, got %v", err)
	}

	var otherDigest [32]byte
	otherDigest[0] = 0x43
	if err := VerifySignature(otherDigest, sig, signer); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for wrong digest, got %v", err)
	}

	if err := VerifySignature(digest, sig[:32], signer); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for truncated sig, got %v", err)
	}
}
