package dispatcher

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/OSINTfan/sso-1/internal/attestation"
	"github.com/OSINTfan/sso-1/internal/domain/models"
	"github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/slot"
	"github.com/OSINTfan/sso-1/internal/store"
	"github.com/OSINTfan/sso-1/internal/validation"
)

var (
	admin     = schema.PublicKey{0xAD}
	authority = schema.PublicKey{0xA1}
	mrEnclave = schema.Digest{0xE1}
)

// captureSink records emitted events for assertions.
type captureSink struct {
	repository.NoopSink
	updated     []models.SignalUpdated
	revoked     []models.SignalRevoked
	initialized []models.AccountInitialized
	providers   []models.ProviderRegistered
}

func (c *captureSink) SignalUpdated(_ context.Context, ev models.SignalUpdated) {
	c.updated = append(c.updated, ev)
}

func (c *captureSink) SignalRevoked(_ context.Context, ev models.SignalRevoked) {
	c.revoked = append(c.revoked, ev)
}

func (c *captureSink) AccountInitialized(_ context.Context, ev models.AccountInitialized) {
	c.initialized = append(c.initialized, ev)
}

func (c *captureSink) ProviderRegistered(_ context.Context, ev models.ProviderRegistered) {
	c.providers = append(c.providers, ev)
}

type captureAudit struct {
	repository.NoopAudit
	entries []repository.AuditEntry
}

func (c *captureAudit) Append(_ context.Context, e repository.AuditEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

// captureCache records read-cache maintenance keyed by account.
type captureCache struct {
	entries       map[schema.Digest][]byte
	invalidations []schema.Digest
}

func newCaptureCache() *captureCache {
	return &captureCache{entries: make(map[schema.Digest][]byte)}
}

func (c *captureCache) Put(_ context.Context, key schema.Digest, encoded []byte) error {
	c.entries[key] = encoded
	return nil
}

func (c *captureCache) Get(_ context.Context, key schema.Digest) ([]byte, error) {
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return nil, repository.ErrCacheMiss
}

func (c *captureCache) Invalidate(_ context.Context, key schema.Digest) error {
	delete(c.entries, key)
	c.invalidations = append(c.invalidations, key)
	return nil
}

type fixture struct {
	disp   *Dispatcher
	store  *store.AccountStore
	slots  *slot.Counter
	sink   *captureSink
	audit  *captureAudit
	cache  *captureCache
	signer schema.PublicKey
	priv   ed25519.PrivateKey
}

// newFixture builds a dispatcher with an initialized config, one allowlisted
// provider, and one active SOL/USDC account, at slot 1000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var signer schema.PublicKey
	copy(signer[:], pub)

	st := store.New()
	slots := slot.NewCounter(1000)
	sink := &captureSink{}
	audit := &captureAudit{}
	cache := newCaptureCache()
	disp := New(st, slots, WithEvents(sink), WithAudit(audit), WithCache(cache))
	f := &fixture{disp: disp, store: st, slots: slots, sink: sink, audit: audit, cache: cache, signer: signer, priv: priv}

	f.dispatch(t, KindInitializeConfig, &InitializeConfigParams{Config: schema.Config{
		Admin:                  admin,
		MinWindowSlots:         10,
		MaxWindowSlots:         1000,
		MaxAttestationAgeSlots: 150,
		MinSourceCount:         3,
		MinConfidence:          20,
		ProtocolVersion:        uint16(schema.SpecVersion),
	}})
	f.dispatch(t, KindRegisterProvider, &RegisterProviderParams{
		Admin:              admin,
		MrEnclave:          mrEnclave,
		EnclaveSigner:      signer,
		MinPlatformVersion: 3,
	})
	f.dispatch(t, KindInitializeSignalAccount, &InitializeSignalAccountParams{
		Caller:    authority,
		Authority: authority,
		AssetPair: "SOL/USDC",
	})
	return f
}

func (f *fixture) dispatch(t *testing.T, kind Kind, params any) Result {
	t.Helper()
	res, err := f.disp.Dispatch(context.Background(), Instruction{Kind: kind, Params: params})
	if err != nil {
		t.Fatalf("dispatch %s: %v", kind, err)
	}
	return res
}

// signedUpdate builds a fully valid update at the fixture's current slot.
func (f *fixture) signedUpdate(ts uint64) *UpdateSignalParams {
	p := &UpdateSignalParams{
		Authority: authority,
		AssetPair: "SOL/USDC",
		Signer:    f.signer,
		Context: schema.MarketContext{
			Slot:         ts,
			Price:        150 * schema.PriceScale,
			SourceBitmap: 0b111,
			SourceCount:  3,
		},
		Assessment: schema.SignalAssessment{
			SignalType:     schema.SignalMomentum,
			Direction:      schema.DirectionLong,
			Magnitude:      70,
			Confidence:     60,
			ValidFromSlot:  ts,
			ValidUntilSlot: ts + 100,
		},
		Receipt: schema.TeeReceipt{
			EnclaveSigner:   f.signer,
			MrEnclave:       mrEnclave,
			TimestampSlot:   ts,
			PlatformVersion: 5,
		},
	}
	digest := schema.UpdateSigningDigest(&p.Context, &p.Assessment, &p.Receipt)
	p.Signature = ed25519.Sign(f.priv, digest[:])
	return p
}

func (f *fixture) tryUpdate(p *UpdateSignalParams) error {
	_, err := f.disp.Dispatch(context.Background(), Instruction{Kind: KindUpdateSignal, Params: p})
	return err
}

func TestUpdateSignalHappyPath(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(t, KindUpdateSignal, f.signedUpdate(1000))
	if res.Account == nil || res.Account.UpdateCount != 1 {
		t.Fatalf("result account: %+v", res.Account)
	}
	if res.Account.LastUpdateSlot != 1000 {
		t.Fatalf("last update slot = %d", res.Account.LastUpdateSlot)
	}

	if len(f.sink.updated) != 1 {
		t.Fatalf("signal updated events = %d", len(f.sink.updated))
	}
	ev := f.sink.updated[0]
	if ev.AssetPair != "SOL/USDC" || ev.UpdateCount != 1 || ev.TimestampSlot != 1000 {
		t.Fatalf("unexpected event %+v", ev)
	}

	last := f.audit.entries[len(f.audit.entries)-1]
	if last.Instruction != "update_signal" || last.UpdateCount != 1 {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}

func TestUpdateSignalRefreshesCache(t *testing.T) {
	f := newFixture(t)
	res := f.dispatch(t, KindUpdateSignal, f.signedUpdate(1000))

	raw, ok := f.cache.entries[res.AccountKey]
	if !ok {
		t.Fatalf("no cached entry after commit")
	}
	acct, err := schema.DecodeSignalAccount(raw)
	if err != nil {
		t.Fatalf("decode cached account: %v", err)
	}
	if acct.UpdateCount != 1 || acct.LastUpdateSlot != 1000 {
		t.Fatalf("cached account stale: count=%d last=%d", acct.UpdateCount, acct.LastUpdateSlot)
	}

	// A rejected update must not disturb the cached state.
	if err := f.tryUpdate(f.signedUpdate(1000)); err == nil {
		t.Fatalf("replay committed")
	}
	acct, err = schema.DecodeSignalAccount(f.cache.entries[res.AccountKey])
	if err != nil {
		t.Fatalf("decode cached account: %v", err)
	}
	if acct.UpdateCount != 1 {
		t.Fatalf("rejected update touched the cache: count=%d", acct.UpdateCount)
	}
}

func TestRevokeSignalInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	res := f.dispatch(t, KindUpdateSignal, f.signedUpdate(1000))
	f.dispatch(t, KindRevokeSignal, &RevokeSignalParams{
		Caller: authority, Authority: authority, AssetPair: "SOL/USDC",
	})

	if _, ok := f.cache.entries[res.AccountKey]; ok {
		t.Fatalf("revoked account still cached")
	}
	if len(f.cache.invalidations) != 1 || f.cache.invalidations[0] != res.AccountKey {
		t.Fatalf("invalidations = %v", f.cache.invalidations)
	}

	// Idempotent re-revoke is a no-op for the cache too.
	f.dispatch(t, KindRevokeSignal, &RevokeSignalParams{
		Caller: authority, Authority: authority, AssetPair: "SOL/USDC",
	})
	if len(f.cache.invalidations) != 1 {
		t.Fatalf("no-op revoke invalidated again")
	}
}

func TestUpdateSignalReplayRejected(t *testing.T) {
	f := newFixture(t)
	p := f.signedUpdate(1000)
	f.dispatch(t, KindUpdateSignal, p)

	// Same attested payload again: the receipt slot no longer advances.
	err := f.tryUpdate(f.signedUpdate(1000))
	if !errors.Is(err, validation.ErrNonMonotonicUpdate) {
		t.Fatalf("expected ErrNonMonotonicUpdate, got %v", err)
	}
	if len(f.sink.updated) != 1 {
		t.Fatalf("rejected update still emitted an event")
	}

	// A fresher attestation goes through.
	f.slots.Observe(1001)
	res := f.dispatch(t, KindUpdateSignal, f.signedUpdate(1001))
	if res.Account.UpdateCount != 2 {
		t.Fatalf("update count = %d", res.Account.UpdateCount)
	}
}

func TestUpdateSignalBadSignature(t *testing.T) {
	f := newFixture(t)
	p := f.signedUpdate(1000)
	p.Signature[0] ^= 0xFF
	if err := f.tryUpdate(p); !errors.Is(err, attestation.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestUpdateSignalTamperedPayload(t *testing.T) {
	// Signature was made over the original triple; changing any field after
	// signing must fail.
	f := newFixture(t)
	p := f.signedUpdate(1000)
	p.Assessment.Confidence = 99
	if err := f.tryUpdate(p); !errors.Is(err, attestation.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestUpdateSignalUnknownEnclave(t *testing.T) {
	f := newFixture(t)
	p := f.signedUpdate(1000)
	p.Receipt.MrEnclave = schema.Digest{0x99}
	digest := schema.UpdateSigningDigest(&p.Context, &p.Assessment, &p.Receipt)
	p.Signature = ed25519.Sign(f.priv, digest[:])
	if err := f.tryUpdate(p); !errors.Is(err, attestation.ErrEnclaveNotAllowlisted) {
		t.Fatalf("expected ErrEnclaveNotAllowlisted, got %v", err)
	}
}

func TestUpdateSignalRevokedProvider(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, KindRevokeProvider, &RevokeProviderParams{Admin: admin, MrEnclave: mrEnclave})
	if err := f.tryUpdate(f.signedUpdate(1000)); !errors.Is(err, attestation.ErrEnclaveNotAllowlisted) {
		t.Fatalf("expected ErrEnclaveNotAllowlisted, got %v", err)
	}
}

func TestUpdateSignalStaleAttestation(t *testing.T) {
	f := newFixture(t)
	f.slots.Observe(2000)
	p := f.signedUpdate(1700) // 300 slots old, max age 150
	p.Assessment.ValidFromSlot = 1700
	p.Assessment.ValidUntilSlot = 2100
	digest := schema.UpdateSigningDigest(&p.Context, &p.Assessment, &p.Receipt)
	p.Signature = ed25519.Sign(f.priv, digest[:])
	if err := f.tryUpdate(p); !errors.Is(err, attestation.ErrAttestationStale) {
		t.Fatalf("expected ErrAttestationStale, got %v", err)
	}
}

func TestUpdateSignalLowConfidence(t *testing.T) {
	f := newFixture(t)
	p := f.signedUpdate(1000)
	p.Assessment.Confidence = 10
	digest := schema.UpdateSigningDigest(&p.Context, &p.Assessment, &p.Receipt)
	p.Signature = ed25519.Sign(f.priv, digest[:])
	if err := f.tryUpdate(p); !errors.Is(err, validation.ErrConfidenceTooLow) {
		t.Fatalf("expected ErrConfidenceTooLow, got %v", err)
	}
}

func TestUpdateSignalRevokedAccount(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, KindRevokeSignal, &RevokeSignalParams{
		Caller: authority, Authority: authority, AssetPair: "SOL/USDC",
	})
	err := f.tryUpdate(f.signedUpdate(1000))
	if !errors.Is(err, store.ErrAccountRevoked) {
		t.Fatalf("expected ErrAccountRevoked, got %v", err)
	}
}

func TestUpdateSignalWhilePaused(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, KindPauseProtocol, &PauseProtocolParams{Admin: admin, Paused: true})
	if err := f.tryUpdate(f.signedUpdate(1000)); !errors.Is(err, store.ErrProtocolPaused) {
		t.Fatalf("expected ErrProtocolPaused, got %v", err)
	}

	f.dispatch(t, KindPauseProtocol, &PauseProtocolParams{Admin: admin, Paused: false})
	if err := f.tryUpdate(f.signedUpdate(1000)); err != nil {
		t.Fatalf("update after resume: %v", err)
	}
}

func TestUpdateSignalUnknownAccount(t *testing.T) {
	f := newFixture(t)
	p := f.signedUpdate(1000)
	p.AssetPair = "BTC/USDC"
	if err := f.tryUpdate(p); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeSignalIdempotent(t *testing.T) {
	f := newFixture(t)
	rv := &RevokeSignalParams{Caller: authority, Authority: authority, AssetPair: "SOL/USDC"}

	res := f.dispatch(t, KindRevokeSignal, rv)
	if !res.Changed {
		t.Fatalf("first revoke reported no change")
	}
	if len(f.sink.revoked) != 1 {
		t.Fatalf("revoke events = %d", len(f.sink.revoked))
	}

	res = f.dispatch(t, KindRevokeSignal, rv)
	if res.Changed {
		t.Fatalf("second revoke reported a change")
	}
	// No duplicate event or audit row for the no-op.
	if len(f.sink.revoked) != 1 {
		t.Fatalf("no-op revoke emitted an event")
	}
}

func TestDispatchUnknownInstruction(t *testing.T) {
	f := newFixture(t)
	_, err := f.disp.Dispatch(context.Background(), Instruction{Kind: Kind(200)})
	if !errors.Is(err, ErrUnknownInstruction) {
		t.Fatalf("expected ErrUnknownInstruction, got %v", err)
	}
	_, err = f.disp.Dispatch(context.Background(), Instruction{Kind: kindCount})
	if !errors.Is(err, ErrUnknownInstruction) {
		t.Fatalf("expected ErrUnknownInstruction at kindCount, got %v", err)
	}
}

func TestDispatchBadParams(t *testing.T) {
	f := newFixture(t)
	_, err := f.disp.Dispatch(context.Background(), Instruction{
		Kind:   KindUpdateSignal,
		Params: &RevokeSignalParams{},
	})
	if !errors.Is(err, ErrBadParams) {
		t.Fatalf("expected ErrBadParams, got %v", err)
	}
}

func TestInitializeAccountEmitsEvent(t *testing.T) {
	f := newFixture(t)
	if len(f.sink.initialized) != 1 {
		t.Fatalf("initialized events = %d", len(f.sink.initialized))
	}
	ev := f.sink.initialized[0]
	pair, _ := schema.EncodeAssetPair("SOL/USDC")
	wantKey := schema.DeriveAccountKey(pair, authority)
	if ev.AccountKey != wantKey.String() {
		t.Fatalf("event key %s, want %s", ev.AccountKey, wantKey)
	}
}

func TestUpdateConfigInstruction(t *testing.T) {
	f := newFixture(t)
	minConf := uint8(40)
	res := f.dispatch(t, KindUpdateConfig, &UpdateConfigParams{
		Admin:         admin,
		MinConfidence: &minConf,
	})
	if res.Config == nil || res.Config.MinConfidence != 40 {
		t.Fatalf("config result: %+v", res.Config)
	}
	// Untouched fields keep their values.
	if res.Config.MaxWindowSlots != 1000 {
		t.Fatalf("max window changed: %d", res.Config.MaxWindowSlots)
	}

	// The raised floor is live for the next update.
	p := f.signedUpdate(1000) // confidence 60, still fine
	if err := f.tryUpdate(p); err != nil {
		t.Fatalf("update after config change: %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnknownInstruction, "UNKNOWN_INSTRUCTION"},
		{ErrBadParams, "BAD_PARAMS"},
		{attestation.ErrSignatureInvalid, "SIGNATURE_INVALID"},
		{validation.ErrNonMonotonicUpdate, "NON_MONOTONIC_UPDATE"},
		{store.ErrUnauthorized, "UNAUTHORIZED"},
		{store.ErrNotFound, "NOT_FOUND"},
		{errors.New("boom"), "INTERNAL"},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
