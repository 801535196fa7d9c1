package repository

import (
	"context"
	"errors"

	"github.com/OSINTfan/sso-1/internal/domain/models"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// ErrCacheMiss is returned by AccountCache.Get when no entry exists.
var ErrCacheMiss = errors.New("account cache: key not found")

// EventSink receives notifications after a mutation has committed. Sinks run
// outside the transaction: a sink failure never unwinds committed state.
type EventSink interface {
	SignalUpdated(ctx context.Context, ev models.SignalUpdated)
	SignalRevoked(ctx context.Context, ev models.SignalRevoked)
	AccountInitialized(ctx context.Context, ev models.AccountInitialized)
	ProviderRegistered(ctx context.Context, ev models.ProviderRegistered)
	ProviderRevoked(ctx context.Context, ev models.ProviderRevoked)
	Close() error
}

// AuditLog appends an immutable row per committed instruction.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Health(ctx context.Context) error
	Close() error
}

// AuditEntry is one audit row.
type AuditEntry struct {
	Instruction string
	AccountKey  string
	AssetPair   string
	Authority   string
	UpdateCount uint64
	Slot        uint64
	Detail      string
}

// AccountCache caches the latest encoded account per key for consumer reads.
type AccountCache interface {
	Put(ctx context.Context, key schema.Digest, encoded []byte) error
	Get(ctx context.Context, key schema.Digest) ([]byte, error)
	Invalidate(ctx context.Context, key schema.Digest) error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordInstruction(kind, result string)
	RecordRejection(code string)
	RecordLastUpdateSlot(assetPair string, slot uint64)
	RecordVerifyLatency(seconds float64)
}

// SlotSource supplies the current slot. The core is slot-indexed only; how
// slots advance (chain follower, test counter) is the caller's concern.
type SlotSource interface {
	CurrentSlot() uint64
}
