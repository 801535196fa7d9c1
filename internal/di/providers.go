package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/OSINTfan/sso-1/internal/dispatcher"
	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/handler/api"
	internalrepo "github.com/OSINTfan/sso-1/internal/repository"
	"github.com/OSINTfan/sso-1/internal/slot"
	"github.com/OSINTfan/sso-1/internal/store"
	"github.com/OSINTfan/sso-1/internal/usecase"
	pkgcache "github.com/OSINTfan/sso-1/pkg/cache"
	pkgch "github.com/OSINTfan/sso-1/pkg/clickhouse"
	"github.com/OSINTfan/sso-1/pkg/config"
	xhttp "github.com/OSINTfan/sso-1/pkg/http"
	pkgkafka "github.com/OSINTfan/sso-1/pkg/kafka"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
	"github.com/OSINTfan/sso-1/pkg/metrics"
	"github.com/OSINTfan/sso-1/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Log.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideStore creates the account store seeded with the protocol config
// from YAML.
func ProvideStore(cfg *config.Config) (*store.AccountStore, error) {
	admin, err := schema.ParsePublicKey(cfg.Protocol.Admin)
	if err != nil {
		return nil, fmt.Errorf("protocol admin key: %w", err)
	}
	st := store.New()
	if err := st.InitConfig(schema.Config{
		Admin:                  admin,
		MinWindowSlots:         cfg.Protocol.MinWindowSlots,
		MaxWindowSlots:         cfg.Protocol.MaxWindowSlots,
		MaxAttestationAgeSlots: cfg.Protocol.MaxAttestationAgeSlots,
		MinSourceCount:         cfg.Protocol.MinSourceCount,
		MinConfidence:          cfg.Protocol.MinConfidence,
		ProtocolVersion:        uint16(schema.SpecVersion),
	}); err != nil {
		return nil, fmt.Errorf("init protocol config: %w", err)
	}
	return st, nil
}

// ProvideSlotCounter creates the slot counter starting at the genesis slot.
func ProvideSlotCounter(cfg *config.Config) *slot.Counter {
	return slot.NewCounter(cfg.Protocol.GenesisSlot)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAuditLog creates the ClickHouse audit log and ensures its schema.
// Falls back to a no-op when ClickHouse is disabled.
func ProvideAuditLog(chClient *pkgch.Client, log *applogger.Logger) (domrepo.AuditLog, error) {
	if chClient == nil {
		return domrepo.NoopAudit{}, nil
	}
	audit := internalrepo.NewCHAuditLog(chClient)
	audit.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := audit.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return audit, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideStreamHandler creates the WebSocket event stream.
func ProvideStreamHandler(log *applogger.Logger) *api.StreamHandler {
	sh := api.NewStreamHandler()
	sh.SetLogger(log)
	return sh
}

// ProvideEventSink fans committed-state events out to Kafka and the
// WebSocket stream. Without Kafka only the stream receives events.
func ProvideEventSink(producer *pkgkafka.Producer, stream *api.StreamHandler, cfg *config.Config, log *applogger.Logger) domrepo.EventSink {
	if producer == nil {
		return internalrepo.NewFanoutSink(stream)
	}
	kafkaSink := internalrepo.NewKafkaEventSink(producer, internalrepo.EventTopics{
		Signals:  cfg.Kafka.SignalsTopic,
		Registry: cfg.Kafka.RegistryTopic,
	})
	kafkaSink.SetLogger(log)
	return internalrepo.NewFanoutSink(kafkaSink, stream)
}

// ProvideAccountCache creates the account read cache. With Redis enabled it
// layers an in-process L1 over Redis; without Redis, reads are served from
// the in-process cache alone.
func ProvideAccountCache(cfg *config.Config) (domrepo.AccountCache, error) {
	ttl := cfg.Redis.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if !cfg.Redis.Enabled {
		mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(10_000))
		return internalrepo.NewEncodedAccountCache(mem, ttl), nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "sso"
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	layered := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(10_000))
	return internalrepo.NewEncodedAccountCache(layered, ttl), nil
}

// ProvideDispatcher assembles the instruction dispatcher. The read cache is
// maintained here, in the post-commit side effects, so HTTP and relayer
// commits keep it coherent alike.
func ProvideDispatcher(
	st *store.AccountStore,
	slots *slot.Counter,
	events domrepo.EventSink,
	audit domrepo.AuditLog,
	cache domrepo.AccountCache,
	m domrepo.Metrics,
	log *applogger.Logger,
) *dispatcher.Dispatcher {
	return dispatcher.New(st, slots,
		dispatcher.WithEvents(events),
		dispatcher.WithAudit(audit),
		dispatcher.WithCache(cache),
		dispatcher.WithMetrics(m),
		dispatcher.WithLogger(log),
	)
}

// ProvideSignalsHandler creates the HTTP instruction surface.
func ProvideSignalsHandler(
	disp *dispatcher.Dispatcher,
	st *store.AccountStore,
	slots *slot.Counter,
	cache domrepo.AccountCache,
	audit domrepo.AuditLog,
	log *applogger.Logger,
) *api.SignalsHandler {
	h := api.NewSignalsHandler(disp, st, slots)
	h.SetCache(cache)
	h.SetAudit(audit)
	h.SetLogger(log)
	return h
}

// ProvideHandlers collects every HTTP handler for route registration.
func ProvideHandlers(signals *api.SignalsHandler, stream *api.StreamHandler) []xhttp.Handler {
	return []xhttp.Handler{signals, stream}
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.IngestTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRelayer creates the update-submission relayer.
func ProvideRelayer(cfg *config.Config, disp *dispatcher.Dispatcher, log *applogger.Logger) *usecase.Relayer {
	r := usecase.NewRelayer(cfg.Kafka.IngestTopic, disp)
	r.SetLogger(log)
	return r
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handlers []xhttp.Handler,
	consumer *pkgkafka.Consumer,
	relayer *usecase.Relayer,
	events domrepo.EventSink,
	audit domrepo.AuditLog,
	slots *slot.Counter,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(consumerHook(log))
	}
	return server.New(cfg, log, handlers, consumer, relayer, events, audit, slots)
}

// consumerHook threads trace metadata into consumed messages and logs
// terminal handling failures before they reach the DLQ.
func consumerHook(log *applogger.Logger) pkgkafka.ConsumerHook {
	tracing := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
	failures := pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, err error) {
			log.Warn("consumer handling failed",
				applogger.String("topic", topic),
				applogger.Error(err),
			)
		},
	}
	return pkgkafka.NewHookChain(tracing, failures)
}
