package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	pkgch "github.com/OSINTfan/sso-1/pkg/clickhouse"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// AuditSchema creates the audit database and table. Safe to run on every
// startup.
var AuditSchema = []string{
	`CREATE DATABASE IF NOT EXISTS sso`,
	`CREATE TABLE IF NOT EXISTS sso.signal_audit (
        ts           DateTime64(3) DEFAULT now64(3),
        instruction  LowCardinality(String),
        account_key  String,
        asset_pair   LowCardinality(String),
        authority    String,
        update_count UInt64,
        slot         UInt64,
        detail       String
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(ts)
    ORDER BY (asset_pair, slot, ts)`,
}

// CHAuditLog implements AuditLog backed by ClickHouse. One row per committed
// instruction; rows are append-only and never updated.
type CHAuditLog struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHAuditLog(ch *pkgch.Client) *CHAuditLog {
	return &CHAuditLog{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (a *CHAuditLog) SetLogger(l *applogger.Logger) { a.l = l }

// Init ensures the audit schema exists.
func (a *CHAuditLog) Init(ctx context.Context) error {
	return a.client.InitSchema(ctx, AuditSchema)
}

func (a *CHAuditLog) Append(ctx context.Context, entry domrepo.AuditEntry) error {
	start := time.Now()
	const q = `
        INSERT INTO sso.signal_audit
            (instruction, account_key, asset_pair, authority, update_count, slot, detail)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := a.db.ExecContext(ctx, q,
		entry.Instruction, entry.AccountKey, entry.AssetPair,
		entry.Authority, entry.UpdateCount, entry.Slot, entry.Detail,
	)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse audit insert error",
				applogger.String("instruction", entry.Instruction),
				applogger.String("asset_pair", entry.AssetPair),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append audit: %w", err)
	}
	if a.l != nil {
		a.l.Debug("clickhouse audit insert ok",
			applogger.String("instruction", entry.Instruction),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (a *CHAuditLog) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *CHAuditLog) Close() error {
	return a.client.Close()
}
