package repository

import (
	"context"

	"github.com/OSINTfan/sso-1/internal/domain/models"
	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	pkgkafka "github.com/OSINTfan/sso-1/pkg/kafka"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// EventTopics names the Kafka topics the sink publishes to. Signal events
// are keyed by account key so per-account ordering survives partitioning;
// registry events are keyed by mr_enclave.
type EventTopics struct {
	Signals  string
	Registry string
}

// KafkaEventSink publishes committed-state events. Publish failures are
// logged and dropped: the commit already happened and must not unwind.
type KafkaEventSink struct {
	producer *pkgkafka.Producer
	topics   EventTopics
	l        *applogger.Logger
}

func NewKafkaEventSink(producer *pkgkafka.Producer, topics EventTopics) *KafkaEventSink {
	return &KafkaEventSink{producer: producer, topics: topics}
}

// SetLogger injects a structured logger.
func (s *KafkaEventSink) SetLogger(l *applogger.Logger) { s.l = l }

type eventEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (s *KafkaEventSink) publish(ctx context.Context, topic, eventType string, key []byte, payload any) {
	err := s.producer.Publish(ctx, topic, key, eventEnvelope{Type: eventType, Payload: payload})
	if err != nil && s.l != nil {
		s.l.Error("event publish failed",
			applogger.String("topic", topic),
			applogger.String("type", eventType),
			applogger.Error(err),
		)
	}
}

func (s *KafkaEventSink) SignalUpdated(ctx context.Context, ev models.SignalUpdated) {
	s.publish(ctx, s.topics.Signals, "signal_updated", []byte(ev.AccountKey), ev)
}

func (s *KafkaEventSink) SignalRevoked(ctx context.Context, ev models.SignalRevoked) {
	s.publish(ctx, s.topics.Signals, "signal_revoked", []byte(ev.AccountKey), ev)
}

func (s *KafkaEventSink) AccountInitialized(ctx context.Context, ev models.AccountInitialized) {
	s.publish(ctx, s.topics.Signals, "account_initialized", []byte(ev.AccountKey), ev)
}

func (s *KafkaEventSink) ProviderRegistered(ctx context.Context, ev models.ProviderRegistered) {
	s.publish(ctx, s.topics.Registry, "provider_registered", []byte(ev.MrEnclave), ev)
}

func (s *KafkaEventSink) ProviderRevoked(ctx context.Context, ev models.ProviderRevoked) {
	s.publish(ctx, s.topics.Registry, "provider_revoked", []byte(ev.MrEnclave), ev)
}

func (s *KafkaEventSink) Close() error {
	return s.producer.Close()
}

// FanoutSink delivers every event to all child sinks in order.
type FanoutSink struct {
	sinks []domrepo.EventSink
}

func NewFanoutSink(sinks ...domrepo.EventSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (f *FanoutSink) SignalUpdated(ctx context.Context, ev models.SignalUpdated) {
	for _, s := range f.sinks {
		s.SignalUpdated(ctx, ev)
	}
}

func (f *FanoutSink) SignalRevoked(ctx context.Context, ev models.SignalRevoked) {
	for _, s := range f.sinks {
		s.SignalRevoked(ctx, ev)
	}
}

func (f *FanoutSink) AccountInitialized(ctx context.Context, ev models.AccountInitialized) {
	for _, s := range f.sinks {
		s.AccountInitialized(ctx, ev)
	}
}

func (f *FanoutSink) ProviderRegistered(ctx context.Context, ev models.ProviderRegistered) {
	for _, s := range f.sinks {
		s.ProviderRegistered(ctx, ev)
	}
}

func (f *FanoutSink) ProviderRevoked(ctx context.Context, ev models.ProviderRevoked) {
	for _, s := range f.sinks {
		s.ProviderRevoked(ctx, ev)
	}
}

func (f *FanoutSink) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
