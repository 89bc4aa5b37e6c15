package app

import (
	"context"

	apphttp "github.com/yungbote/winegraph/internal/http"
	httpH "github.com/yungbote/winegraph/internal/http/handlers"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Wine   *httpH.WineHandler
	Run    *httpH.RunHandler
}

func wireHandlers(log *logger.Logger, clients Clients, repos Repos, services Services) Handlers {
	log.Info("Wiring handlers...")
	ready := map[string]httpH.Pinger{}
	if clients.Neo4j != nil && clients.Neo4j.Driver != nil {
		driver := clients.Neo4j.Driver
		ready["graph"] = func(ctx context.Context) error { return driver.VerifyConnectivity(ctx) }
	}
	if clients.RunDB != nil {
		if sqlDB, err := clients.RunDB.DB(); err == nil {
			ready["runstore"] = sqlDB.PingContext
		}
	}
	h := Handlers{
		Health: httpH.NewHealthHandler(ready),
		Wine:   httpH.NewWineHandler(services.Query),
	}
	if repos.Runs != nil {
		h.Run = httpH.NewRunHandler(repos.Runs)
	}
	return h
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *apphttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		ServiceName:   serviceName,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		Log:           log.With("component", "http"),
		Metrics:       metrics,
		HealthHandler: handlers.Health,
		WineHandler:   handlers.Wine,
		RunHandler:    handlers.Run,
	})
}
