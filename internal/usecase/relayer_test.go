package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/OSINTfan/sso-1/internal/dispatcher"
	"github.com/OSINTfan/sso-1/internal/domain/models"
	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/slot"
	"github.com/OSINTfan/sso-1/internal/store"
)

// mapCache is an in-memory AccountCache for asserting cache coherence.
type mapCache struct {
	entries map[schema.Digest][]byte
}

func (c *mapCache) Put(_ context.Context, key schema.Digest, encoded []byte) error {
	c.entries[key] = encoded
	return nil
}

func (c *mapCache) Get(_ context.Context, key schema.Digest) ([]byte, error) {
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return nil, domrepo.ErrCacheMiss
}

func (c *mapCache) Invalidate(_ context.Context, key schema.Digest) error {
	delete(c.entries, key)
	return nil
}

func newRelayerFixture(t *testing.T) (*Relayer, *store.AccountStore, schema.PublicKey, ed25519.PrivateKey, *mapCache) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var signer schema.PublicKey
	copy(signer[:], pub)

	admin := schema.PublicKey{0xAD}
	authority := schema.PublicKey{0xA1}
	mr := schema.Digest{0xE1}

	st := store.New()
	if err := st.InitConfig(schema.Config{
		Admin:                  admin,
		MinWindowSlots:         10,
		MaxWindowSlots:         1000,
		MaxAttestationAgeSlots: 150,
		MinSourceCount:         3,
		MinConfidence:          20,
	}); err != nil {
		t.Fatalf("init config: %v", err)
	}
	if err := st.RegisterProvider(admin, schema.ProviderEntry{
		MrEnclave:          mr,
		EnclaveSigner:      signer,
		MinPlatformVersion: 3,
	}); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	if _, err := st.InitSignalAccount(authority, authority, mustEncodePair(t, "SOL/USDC")); err != nil {
		t.Fatalf("init account: %v", err)
	}

	cache := &mapCache{entries: make(map[schema.Digest][]byte)}
	disp := dispatcher.New(st, slot.NewCounter(1000), dispatcher.WithCache(cache))
	return NewRelayer("sso.signal.ingest", disp), st, signer, priv, cache
}

func mustEncodePair(t *testing.T, pair string) [32]byte {
	t.Helper()
	p, err := schema.EncodeAssetPair(pair)
	if err != nil {
		t.Fatalf("encode pair: %v", err)
	}
	return p
}

// signedRequest builds a wire-level submission whose signature covers the
// canonical encoded triple.
func signedRequest(t *testing.T, signer schema.PublicKey, priv ed25519.PrivateKey, ts uint64) []byte {
	t.Helper()
	authority := schema.PublicKey{0xA1}
	mc := schema.MarketContext{Slot: ts, Price: 150 * schema.PriceScale, SourceBitmap: 0b111, SourceCount: 3}
	sa := schema.SignalAssessment{
		SignalType:     schema.SignalMomentum,
		Direction:      schema.DirectionLong,
		Magnitude:      70,
		Confidence:     60,
		ValidFromSlot:  ts,
		ValidUntilSlot: ts + 100,
	}
	receipt := schema.TeeReceipt{
		EnclaveSigner:   signer,
		MrEnclave:       schema.Digest{0xE1},
		TimestampSlot:   ts,
		PlatformVersion: 5,
	}
	digest := schema.UpdateSigningDigest(&mc, &sa, &receipt)
	sig := ed25519.Sign(priv, digest[:])

	req := models.UpdateSignalRequest{
		AssetPair: "SOL/USDC",
		Authority: authority.String(),
		Signer:    signer.String(),
		Signature: base64.StdEncoding.EncodeToString(sig),
		Context: models.MarketContextPayload{
			Slot:         mc.Slot,
			Price:        mc.Price,
			SourceBitmap: mc.SourceBitmap,
			SourceCount:  mc.SourceCount,
		},
		Assessment: models.SignalAssessmentPayload{
			SignalType:     "momentum",
			Direction:      "long",
			Magnitude:      sa.Magnitude,
			Confidence:     sa.Confidence,
			ValidFromSlot:  sa.ValidFromSlot,
			ValidUntilSlot: sa.ValidUntilSlot,
		},
		Receipt: models.TeeReceiptPayload{
			EnclaveSigner:   receipt.EnclaveSigner.String(),
			AttestationHash: receipt.AttestationHash.String(),
			MrEnclave:       receipt.MrEnclave.String(),
			TimestampSlot:   receipt.TimestampSlot,
			PlatformVersion: receipt.PlatformVersion,
		},
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestRelayerTopic(t *testing.T) {
	r, _, _, _, _ := newRelayerFixture(t)
	if r.Topic() != "sso.signal.ingest" {
		t.Fatalf("topic = %q", r.Topic())
	}
}

func TestRelayerCommitsValidSubmission(t *testing.T) {
	r, st, signer, priv, _ := newRelayerFixture(t)
	if err := r.Handle(context.Background(), signedRequest(t, signer, priv, 1000)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	key := schema.DeriveAccountKey(mustEncodePair(t, "SOL/USDC"), schema.PublicKey{0xA1})
	acct, err := st.GetSignal(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.UpdateCount != 1 || acct.LastUpdateSlot != 1000 {
		t.Fatalf("account not updated: count=%d last=%d", acct.UpdateCount, acct.LastUpdateSlot)
	}
}

func TestRelayerSwallowsProtocolRejection(t *testing.T) {
	r, st, signer, priv, _ := newRelayerFixture(t)
	msg := signedRequest(t, signer, priv, 1000)
	if err := r.Handle(context.Background(), msg); err != nil {
		t.Fatalf("first handle: %v", err)
	}

	// Replay: rejected by the protocol, but the handler reports success so
	// the consumer commits the offset instead of retrying forever.
	if err := r.Handle(context.Background(), msg); err != nil {
		t.Fatalf("replay handle returned error: %v", err)
	}
	key := schema.DeriveAccountKey(mustEncodePair(t, "SOL/USDC"), schema.PublicKey{0xA1})
	acct, _ := st.GetSignal(key)
	if acct.UpdateCount != 1 {
		t.Fatalf("replay committed: count=%d", acct.UpdateCount)
	}
}

func TestRelayerCommitRefreshesCache(t *testing.T) {
	r, _, signer, priv, cache := newRelayerFixture(t)
	key := schema.DeriveAccountKey(mustEncodePair(t, "SOL/USDC"), schema.PublicKey{0xA1})

	// An earlier read-side fill that would go stale if the relayer path
	// skipped cache maintenance.
	cache.entries[key] = []byte{0xDE, 0xAD}

	if err := r.Handle(context.Background(), signedRequest(t, signer, priv, 1000)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	acct, err := schema.DecodeSignalAccount(cache.entries[key])
	if err != nil {
		t.Fatalf("decode cached account: %v", err)
	}
	if acct.UpdateCount != 1 || acct.LastUpdateSlot != 1000 {
		t.Fatalf("cache stale after relayer commit: count=%d last=%d", acct.UpdateCount, acct.LastUpdateSlot)
	}
}

func TestRelayerRejectsUndecodableFrame(t *testing.T) {
	r, _, _, _, _ := newRelayerFixture(t)
	if err := r.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected decode error to propagate")
	}
}

func TestRelayerRejectsUnparsableFields(t *testing.T) {
	r, _, _, _, _ := newRelayerFixture(t)
	msg := []byte(`{"asset_pair":"SOL/USDC","authority":"zz","signer":"zz","signature":"!!","market_context":{},"signal_assessment":{},"tee_receipt":{}}`)
	if err := r.Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected parse error to propagate")
	}
}
