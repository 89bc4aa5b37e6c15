package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/orchestrator"
	"github.com/yungbote/winegraph/internal/ingestion/source"
	"github.com/yungbote/winegraph/internal/platform/gcp"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

// ErrRunInProgress is returned when an ingestion run is already active in this
// process.
var ErrRunInProgress = errors.New("ingestion run already in progress")

type IngestionService interface {
	// Ingest opens uri (path, "-" or gs://) and runs it through the orchestrator.
	// A report comes back for every run, including one whose source cannot be
	// opened; only ErrRunInProgress returns a nil report.
	Ingest(ctx context.Context, uri string) (*domain.IngestionReport, error)
	// EnsureSchema creates the graph constraints and indexes without ingesting.
	EnsureSchema(ctx context.Context) error
}

type ingestionService struct {
	store   graph.Store
	orch    *orchestrator.Orchestrator
	objects gcp.ObjectReader
	log     *logger.Logger
	running sync.Mutex
}

func NewIngestionService(store graph.Store, orch *orchestrator.Orchestrator, objects gcp.ObjectReader, log *logger.Logger) IngestionService {
	return &ingestionService{
		store:   store,
		orch:    orch,
		objects: objects,
		log:     log.With("service", "IngestionService"),
	}
}

func (s *ingestionService) Ingest(ctx context.Context, uri string) (*domain.IngestionReport, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	rc, err := source.Open(ctx, uri, s.objects)
	if err != nil {
		err = fmt.Errorf("open source: %w", err)
		return s.orch.Abort(ctx, uri, err), err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			s.log.Warn("source close failed", "source", uri, "error", cerr)
		}
	}()

	s.log.Info("ingestion started", "source", uri)
	return s.orch.Run(ctx, uri, source.Records(rc))
}

func (s *ingestionService) EnsureSchema(ctx context.Context) (err error) {
	session, err := s.store.OpenWriteSession(ctx)
	if err != nil {
		return fmt.Errorf("open write session: %w", err)
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := session.EnsureSchema(ctx); err != nil {
		return err
	}
	s.log.Info("graph schema ensured", "statements", len(graph.SchemaStatements()))
	return nil
}
