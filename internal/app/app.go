package app

import (
	"context"
	"errors"
	"fmt"

	apphttp "github.com/yungbote/winegraph/internal/http"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *apphttp.Server

	shutdownOTel func(context.Context) error
}

// New connects every configured dependency. On error everything already
// opened is released.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("app: logger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdownOTel := observability.InitOTel(ctx, log, cfg.Otel)

	var metrics *observability.Metrics
	if cfg.Metrics {
		metrics = observability.Init()
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownOTel(ctx)
		return nil, err
	}

	reposet := wireRepos(clients.RunDB, log)

	serviceset, err := wireServices(log, cfg, clients, reposet, metrics)
	if err != nil {
		_ = clients.Close(ctx)
		_ = shutdownOTel(ctx)
		return nil, err
	}

	handlerset := wireHandlers(log, clients, reposet, serviceset)
	server := wireServer(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Serve blocks until ctx is done or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
	return a.Server.Run(ctx, a.Cfg.HTTP.Addr)
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	err := a.Clients.Close(ctx)
	if a.shutdownOTel != nil {
		err = errors.Join(err, a.shutdownOTel(ctx))
		a.shutdownOTel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return err
}
