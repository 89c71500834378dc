package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/handler/ws"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *ws.Hub
	scheduler  *usecase.Scheduler
	consumer   *pkgkafka.Consumer
	archive    pkgkafka.MessageHandler
	queue      *queue.RedisQueue
}

// New creates a new App instance with all dependencies. consumer may be nil
// when signals are written directly.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	archive pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		hub:        hub,
		scheduler:  scheduler,
		consumer:   consumer,
		archive:    archive,
	}
}

// SetQueue attaches the notification queue so its workers follow the app
// lifecycle.
func (a *App) SetQueue(q *queue.RedisQueue) { a.queue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then shuts
// down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(runCtx)

	if a.consumer != nil && a.archive != nil {
		if err := a.consumer.RegisterHandler(a.archive); err != nil {
			return err
		}
		if err := a.consumer.Start(runCtx); err != nil {
			return err
		}
		a.log.Info("signal archive consumer started", applogger.String("topic", a.archive.Topic()))
	}

	if a.queue != nil {
		if err := a.queue.Start(runCtx); err != nil {
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.cfg.Scheduler.AutoStart {
		if err := a.scheduler.Start(runCtx); err != nil {
			a.log.Warn("scheduler auto start", applogger.Error(err))
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services. Infrastructure clients are closed by
// the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.scheduler.Stop(ctx); err != nil && !errors.Is(err, models.ErrNotRunning) {
		a.log.Warn("scheduler stop error", applogger.Error(err))
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("notify queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
