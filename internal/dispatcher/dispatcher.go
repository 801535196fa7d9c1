// Package dispatcher routes instructions to their handlers and runs the
// update verification pipeline. The instruction set is closed: routing goes
// through a fixed table indexed by Kind, and every mutation commits through
// the store as a single atomic transaction before any event, audit row, or
// metric leaves the process.
package dispatcher

import (
	"context"
	"time"

	"github.com/OSINTfan/sso-1/internal/attestation"
	"github.com/OSINTfan/sso-1/internal/domain/models"
	"github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/store"
	"github.com/OSINTfan/sso-1/internal/validation"
	"github.com/OSINTfan/sso-1/pkg/logger"
)

// Result is what a successful dispatch hands back to the transport layer.
type Result struct {
	Account    *schema.SignalAccount
	AccountKey schema.Digest
	Config     *schema.Config
	Changed    bool
}

type handlerFunc func(ctx context.Context, d *Dispatcher, params any) (Result, error)

// handlers is the closed routing table. An out-of-range kind never reaches
// it; Dispatch bounds-checks first.
var handlers = [kindCount]handlerFunc{
	KindInitializeConfig:        handleInitializeConfig,
	KindRegisterProvider:        handleRegisterProvider,
	KindRevokeProvider:          handleRevokeProvider,
	KindInitializeSignalAccount: handleInitializeSignalAccount,
	KindUpdateSignal:            handleUpdateSignal,
	KindRevokeSignal:            handleRevokeSignal,
	KindPauseProtocol:           handlePauseProtocol,
	KindUpdateConfig:            handleUpdateConfig,
}

// Dispatcher executes instructions against the store. Events, audit, the
// read cache, and metrics are optional collaborators; absent ones default
// to no-ops.
type Dispatcher struct {
	store   *store.AccountStore
	slots   repository.SlotSource
	events  repository.EventSink
	audit   repository.AuditLog
	cache   repository.AccountCache
	metrics repository.Metrics
	log     *logger.Logger
}

type Option func(*Dispatcher)

func WithEvents(s repository.EventSink) Option {
	return func(d *Dispatcher) { d.events = s }
}

// WithCache keeps the read cache coherent with committed state, whatever
// transport the instruction arrived on.
func WithCache(c repository.AccountCache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

func WithAudit(a repository.AuditLog) Option {
	return func(d *Dispatcher) { d.audit = a }
}

func WithMetrics(m repository.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func New(st *store.AccountStore, slots repository.SlotSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   st,
		slots:   slots,
		events:  repository.NoopSink{},
		audit:   repository.NoopAudit{},
		cache:   repository.NoopCache{},
		metrics: repository.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes one instruction. On rejection the store is untouched and
// the stable error code is recorded; on success the post-commit side effects
// (metrics, cache, audit, events) run after the state change is already
// durable.
func (d *Dispatcher) Dispatch(ctx context.Context, ins Instruction) (Result, error) {
	if ins.Kind >= kindCount {
		d.metrics.RecordInstruction(ins.Kind.String(), "rejected")
		d.metrics.RecordRejection(ErrUnknownInstruction.Code)
		return Result{}, ErrUnknownInstruction
	}

	res, err := handlers[ins.Kind](ctx, d, ins.Params)
	if err != nil {
		code := ErrorCode(err)
		d.metrics.RecordInstruction(ins.Kind.String(), "rejected")
		d.metrics.RecordRejection(code)
		if d.log != nil {
			d.log.Warn("instruction rejected",
				logger.String("instruction", ins.Kind.String()),
				logger.String("code", code),
				logger.Error(err),
			)
		}
		return Result{}, err
	}

	d.metrics.RecordInstruction(ins.Kind.String(), "committed")
	return res, nil
}

func (d *Dispatcher) appendAudit(ctx context.Context, entry repository.AuditEntry) {
	if err := d.audit.Append(ctx, entry); err != nil && d.log != nil {
		d.log.Error("audit append failed",
			logger.String("instruction", entry.Instruction),
			logger.Error(err),
		)
	}
}

// refreshCache replaces the cached encoding with the committed account.
func (d *Dispatcher) refreshCache(ctx context.Context, key schema.Digest, acct *schema.SignalAccount) {
	if err := d.cache.Put(ctx, key, schema.EncodeSignalAccount(acct)); err != nil && d.log != nil {
		d.log.Warn("cache refresh failed",
			logger.String("account_key", key.String()),
			logger.Error(err),
		)
	}
}

func (d *Dispatcher) dropCache(ctx context.Context, key schema.Digest) {
	if err := d.cache.Invalidate(ctx, key); err != nil && d.log != nil {
		d.log.Warn("cache invalidate failed",
			logger.String("account_key", key.String()),
			logger.Error(err),
		)
	}
}

func handleInitializeConfig(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*InitializeConfigParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	if err := d.store.InitConfig(p.Config); err != nil {
		return Result{}, err
	}
	cfg := p.Config
	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindInitializeConfig.String(),
		Authority:   cfg.Admin.String(),
		Slot:        d.slots.CurrentSlot(),
	})
	return Result{Config: &cfg, Changed: true}, nil
}

func handleRegisterProvider(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*RegisterProviderParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	slot := d.slots.CurrentSlot()
	entry := schema.ProviderEntry{
		MrEnclave:          p.MrEnclave,
		EnclaveSigner:      p.EnclaveSigner,
		MinPlatformVersion: p.MinPlatformVersion,
		Active:             true,
		RegisteredAtSlot:   slot,
	}
	if err := d.store.RegisterProvider(p.Admin, entry); err != nil {
		return Result{}, err
	}

	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindRegisterProvider.String(),
		Authority:   p.Admin.String(),
		Slot:        slot,
		Detail:      p.MrEnclave.String(),
	})
	d.events.ProviderRegistered(ctx, models.ProviderRegistered{
		MrEnclave:          p.MrEnclave.String(),
		EnclaveSigner:      p.EnclaveSigner.String(),
		MinPlatformVersion: p.MinPlatformVersion,
		CurrentSlot:        slot,
	})
	return Result{Changed: true}, nil
}

func handleRevokeProvider(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*RevokeProviderParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	slot := d.slots.CurrentSlot()
	if err := d.store.RevokeProvider(p.Admin, p.MrEnclave, slot); err != nil {
		return Result{}, err
	}

	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindRevokeProvider.String(),
		Authority:   p.Admin.String(),
		Slot:        slot,
		Detail:      p.MrEnclave.String(),
	})
	d.events.ProviderRevoked(ctx, models.ProviderRevoked{
		MrEnclave:   p.MrEnclave.String(),
		CurrentSlot: slot,
	})
	return Result{Changed: true}, nil
}

func handleInitializeSignalAccount(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*InitializeSignalAccountParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	pair, err := schema.EncodeAssetPair(p.AssetPair)
	if err != nil {
		return Result{}, err
	}
	acct, err := d.store.InitSignalAccount(p.Caller, p.Authority, pair)
	if err != nil {
		return Result{}, err
	}
	key := schema.DeriveAccountKey(pair, p.Authority)
	slot := d.slots.CurrentSlot()

	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindInitializeSignalAccount.String(),
		AccountKey:  key.String(),
		AssetPair:   p.AssetPair,
		Authority:   p.Authority.String(),
		Slot:        slot,
	})
	d.events.AccountInitialized(ctx, models.AccountInitialized{
		AssetPair:   p.AssetPair,
		Authority:   p.Authority.String(),
		AccountKey:  key.String(),
		CurrentSlot: slot,
	})
	return Result{Account: acct, AccountKey: key, Changed: true}, nil
}

// handleUpdateSignal runs the full pipeline for one attested triple:
// envelope signature, attestation chain, assessment validity, context
// integrity, then the atomic commit. Monotonicity and account status are
// re-checked inside CommitUpdate under the writer lock, so two racing
// updates serialize there.
func handleUpdateSignal(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*UpdateSignalParams)
	if !ok {
		return Result{}, ErrBadParams
	}

	cfg, err := d.store.Config()
	if err != nil {
		return Result{}, err
	}
	if cfg.Paused {
		return Result{}, store.ErrProtocolPaused
	}

	pair, err := schema.EncodeAssetPair(p.AssetPair)
	if err != nil {
		return Result{}, err
	}
	key := schema.DeriveAccountKey(pair, p.Authority)
	acct, err := d.store.GetSignal(key)
	if err != nil {
		return Result{}, err
	}
	if acct.Status == schema.StatusRevoked {
		return Result{}, store.ErrAccountRevoked
	}

	currentSlot := d.slots.CurrentSlot()
	verifyStart := time.Now()

	digest := schema.UpdateSigningDigest(&p.Context, &p.Assessment, &p.Receipt)
	if err := attestation.VerifySignature(digest, p.Signature, p.Signer); err != nil {
		return Result{}, err
	}
	registry := d.store.Registry()
	if err := attestation.Verify(&p.Receipt, p.Signer, registry, currentSlot, cfg.MaxAttestationAgeSlots); err != nil {
		return Result{}, err
	}

	if err := validation.ValidateValues(&p.Assessment); err != nil {
		return Result{}, err
	}
	if err := validation.ValidateConfidenceFloor(&p.Assessment, cfg.MinConfidence); err != nil {
		return Result{}, err
	}
	if err := validation.ValidateWindow(&p.Assessment, currentSlot, cfg.MinWindowSlots, cfg.MaxWindowSlots); err != nil {
		return Result{}, err
	}
	if err := validation.ValidateContext(&p.Context, cfg.MinSourceCount); err != nil {
		return Result{}, err
	}
	if err := validation.ValidateMonotonicity(p.Receipt.TimestampSlot, acct.LastUpdateSlot); err != nil {
		return Result{}, err
	}
	d.metrics.RecordVerifyLatency(time.Since(verifyStart).Seconds())

	committed, err := d.store.CommitUpdate(key, &p.Context, &p.Assessment, &p.Receipt)
	if err != nil {
		return Result{}, err
	}

	d.metrics.RecordLastUpdateSlot(p.AssetPair, committed.LastUpdateSlot)
	d.refreshCache(ctx, key, committed)
	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindUpdateSignal.String(),
		AccountKey:  key.String(),
		AssetPair:   p.AssetPair,
		Authority:   p.Authority.String(),
		UpdateCount: committed.UpdateCount,
		Slot:        currentSlot,
	})
	d.events.SignalUpdated(ctx, models.SignalUpdated{
		AssetPair:      p.AssetPair,
		Authority:      p.Authority.String(),
		AccountKey:     key.String(),
		UpdateCount:    committed.UpdateCount,
		ValidUntilSlot: committed.SignalAssessment.ValidUntilSlot,
		TimestampSlot:  committed.TeeReceipt.TimestampSlot,
		CurrentSlot:    currentSlot,
	})
	if d.log != nil {
		d.log.Debug("signal updated",
			logger.String("asset_pair", p.AssetPair),
			logger.Uint64("update_count", committed.UpdateCount),
			logger.Uint64("slot", currentSlot),
		)
	}
	return Result{Account: committed, AccountKey: key, Changed: true}, nil
}

func handleRevokeSignal(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*RevokeSignalParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	pair, err := schema.EncodeAssetPair(p.AssetPair)
	if err != nil {
		return Result{}, err
	}
	key := schema.DeriveAccountKey(pair, p.Authority)
	changed, err := d.store.RevokeSignal(key, p.Caller)
	if err != nil {
		return Result{}, err
	}
	slot := d.slots.CurrentSlot()

	if changed {
		d.dropCache(ctx, key)
		d.appendAudit(ctx, repository.AuditEntry{
			Instruction: KindRevokeSignal.String(),
			AccountKey:  key.String(),
			AssetPair:   p.AssetPair,
			Authority:   p.Authority.String(),
			Slot:        slot,
		})
		d.events.SignalRevoked(ctx, models.SignalRevoked{
			AssetPair:   p.AssetPair,
			Authority:   p.Authority.String(),
			AccountKey:  key.String(),
			CurrentSlot: slot,
		})
	}
	return Result{AccountKey: key, Changed: changed}, nil
}

func handlePauseProtocol(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*PauseProtocolParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	if err := d.store.SetPaused(p.Admin, p.Paused); err != nil {
		return Result{}, err
	}
	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindPauseProtocol.String(),
		Authority:   p.Admin.String(),
		Slot:        d.slots.CurrentSlot(),
		Detail:      map[bool]string{true: "paused", false: "resumed"}[p.Paused],
	})
	return Result{Changed: true}, nil
}

func handleUpdateConfig(ctx context.Context, d *Dispatcher, params any) (Result, error) {
	p, ok := params.(*UpdateConfigParams)
	if !ok {
		return Result{}, ErrBadParams
	}
	cfg, err := d.store.UpdateConfig(p.Admin, func(c *schema.Config) {
		if p.MinWindowSlots != nil {
			c.MinWindowSlots = *p.MinWindowSlots
		}
		if p.MaxWindowSlots != nil {
			c.MaxWindowSlots = *p.MaxWindowSlots
		}
		if p.MaxAttestationAgeSlots != nil {
			c.MaxAttestationAgeSlots = *p.MaxAttestationAgeSlots
		}
		if p.MinSourceCount != nil {
			c.MinSourceCount = *p.MinSourceCount
		}
		if p.MinConfidence != nil {
			c.MinConfidence = *p.MinConfidence
		}
	})
	if err != nil {
		return Result{}, err
	}
	d.appendAudit(ctx, repository.AuditEntry{
		Instruction: KindUpdateConfig.String(),
		Authority:   p.Admin.String(),
		Slot:        d.slots.CurrentSlot(),
	})
	return Result{Config: &cfg, Changed: true}, nil
}
