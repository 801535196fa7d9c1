//go:build wireinject
// +build wireinject

package di

import (
	"github.com/OSINTfan/sso-1/pkg/config"
	"github.com/OSINTfan/sso-1/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Core protocol state
		ProvideStore,
		ProvideSlotCounter,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideAuditLog,
		ProvideAccountCache,

		// Sinks and dispatch
		ProvideStreamHandler,
		ProvideEventSink,
		ProvideDispatcher,

		// Transports
		ProvideSignalsHandler,
		ProvideHandlers,
		ProvideKafkaConsumer,
		ProvideRelayer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
