package repository

import (
	"context"

	"github.com/OSINTfan/sso-1/internal/domain/models"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// NoopSink discards all events. Embed it to implement only part of EventSink.
type NoopSink struct{}

func (NoopSink) SignalUpdated(context.Context, models.SignalUpdated)           {}
func (NoopSink) SignalRevoked(context.Context, models.SignalRevoked)           {}
func (NoopSink) AccountInitialized(context.Context, models.AccountInitialized) {}
func (NoopSink) ProviderRegistered(context.Context, models.ProviderRegistered) {}
func (NoopSink) ProviderRevoked(context.Context, models.ProviderRevoked)       {}
func (NoopSink) Close() error                                                  { return nil }

// NoopAudit discards audit entries.
type NoopAudit struct{}

func (NoopAudit) Append(context.Context, AuditEntry) error { return nil }
func (NoopAudit) Health(context.Context) error             { return nil }
func (NoopAudit) Close() error                             { return nil }

// NoopMetrics discards measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordInstruction(kind, result string)              {}
func (NoopMetrics) RecordRejection(code string)                        {}
func (NoopMetrics) RecordLastUpdateSlot(assetPair string, slot uint64) {}
func (NoopMetrics) RecordVerifyLatency(seconds float64)                {}

// NoopCache caches nothing.
type NoopCache struct{}

func (NoopCache) Put(context.Context, schema.Digest, []byte) error { return nil }
func (NoopCache) Get(context.Context, schema.Digest) ([]byte, error) {
	return nil, ErrCacheMiss
}
func (NoopCache) Invalidate(context.Context, schema.Digest) error { return nil }
