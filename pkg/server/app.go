package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/slot"
	"github.com/OSINTfan/sso-1/pkg/config"
	xhttp "github.com/OSINTfan/sso-1/pkg/http"
	pkgkafka "github.com/OSINTfan/sso-1/pkg/kafka"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// App encapsulates the entire application lifecycle: HTTP surface, Kafka
// relayer, and the sinks that must be flushed on shutdown.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	handlers []xhttp.Handler
	consumer *pkgkafka.Consumer
	relayer  pkgkafka.MessageHandler
	events   domrepo.EventSink
	audit    domrepo.AuditLog
	slots    *slot.Counter

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handlers []xhttp.Handler,
	consumer *pkgkafka.Consumer,
	relayer pkgkafka.MessageHandler,
	events domrepo.EventSink,
	audit domrepo.AuditLog,
	slots *slot.Counter,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handlers: handlers,
		consumer: consumer,
		relayer:  relayer,
		events:   events,
		audit:    audit,
		slots:    slots,
	}
}

type compositeHandler struct {
	handlers []xhttp.Handler
}

func (c compositeHandler) RegisterRoutes(e *echo.Echo) {
	for _, h := range c.handlers {
		h.RegisterRoutes(e)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(compositeHandler{handlers: a.handlers},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.relayer != nil {
		a.consumer.RegisterHandler(a.relayer)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka relayer started", applogger.String("topic", a.relayer.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("oracle started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Uint64("genesis_slot", a.slots.CurrentSlot()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event sink close error", applogger.Error(err))
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn("audit close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
