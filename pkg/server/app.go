package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"OppScan/internal/handler/api"
	mid "OppScan/internal/middleware"
	internalrepo "OppScan/internal/repository"
	"OppScan/internal/usecase"
	pkgcache "OppScan/pkg/cache"
	"OppScan/pkg/config"
	xhttp "OppScan/pkg/http"
	applogger "OppScan/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	sessions   *usecase.SessionManager
	pipeline   *mid.EventPipeline
	hub        *api.StreamHub
	sink       *internalrepo.KafkaOutcomeSink
	cache      pkgcache.Service
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	sessions *usecase.SessionManager,
	pipeline *mid.EventPipeline,
	hub *api.StreamHub,
	sink *internalrepo.KafkaOutcomeSink,
	cache pkgcache.Service,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		pipeline: pipeline,
		hub:      hub,
		sink:     sink,
		cache:    cache,
		handler:  handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the event dispatch path before anything can emit.
	a.pipeline.Start(ctx)

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop in-flight scans first so nothing emits into a stopped pipeline.
	if err := a.sessions.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("scan shutdown timed out", applogger.Error(err))
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.hub.Close(); err != nil {
		a.logger.Warn("stream hub close error", applogger.Error(err))
	}

	a.pipeline.Stop()

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.logger.RemoveCollector()
	a.logger.Info("shutdown complete")
	return nil
}
