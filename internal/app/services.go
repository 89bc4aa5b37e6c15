package app

import (
	"context"
	"fmt"

	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/normalize"
	"github.com/yungbote/winegraph/internal/ingestion/orchestrator"
	"github.com/yungbote/winegraph/internal/ingestion/upsert"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/services"
)

type Services struct {
	Query        services.QueryService
	Ingestion    services.IngestionService
	Orchestrator *orchestrator.Orchestrator
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, repos Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	queryOpts := []services.QueryOption{
		services.WithQueryTimeout(cfg.Query.Timeout),
		services.WithQueryMetrics(metrics),
	}
	if clients.Cache != nil {
		queryOpts = append(queryOpts, services.WithQueryCache(clients.Cache))
	}
	query := services.NewQueryService(clients.Graph, log, queryOpts...)

	normalizer, err := normalize.New()
	if err != nil {
		return Services{}, fmt.Errorf("init normalizer: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithMetrics(metrics),
		orchestrator.WithFinished(func(ctx context.Context, report *domain.IngestionReport) {
			if report.BatchesSucceeded > 0 {
				query.Invalidate(ctx)
			}
		}),
	}
	if repos.Runs != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(repos.Runs))
	}
	orch, err := orchestrator.New(clients.Graph, normalizer, upsert.NewEngine(log), log, cfg.Ingest, orchOpts...)
	if err != nil {
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}

	return Services{
		Query:        query,
		Ingestion:    services.NewIngestionService(clients.Graph, orch, clients.Objects, log),
		Orchestrator: orch,
	}, nil
}
