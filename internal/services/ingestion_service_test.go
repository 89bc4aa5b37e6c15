package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/normalize"
	"github.com/yungbote/winegraph/internal/ingestion/orchestrator"
	"github.com/yungbote/winegraph/internal/ingestion/upsert"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

const reviews = `{"id": 40825, "points": "90", "title": "Castello San Donato in Perano 2009 Riserva (Chianti Classico)", "country": "Italy", "province": "Tuscany", "taster_name": "Kerin O'Keefe"}
{"id": 7, "points": 87, "title": "Nicosia 2013 Vulkà Bianco  (Etna)", "country": "null", "price": null, "designation": "Vulkà Bianco"}
`

func newIngestion(t *testing.T, store graph.Store) IngestionService {
	t.Helper()
	n, err := normalize.New()
	require.NoError(t, err)
	cfg := orchestrator.DefaultConfig()
	cfg.BatchSize = 1
	orch, err := orchestrator.New(store, n, upsert.NewEngine(logger.Nop()), logger.Nop(), cfg)
	require.NoError(t, err)
	return NewIngestionService(store, orch, nil, logger.Nop())
}

func TestIngestFileEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(reviews), 0o644))

	store := graph.NewMemoryStore()
	report, err := newIngestion(t, store).Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.BatchesSucceeded)

	italy, err := NewQueryService(store, logger.Nop()).TopByCountry(context.Background(), "Italy", 5)
	require.NoError(t, err)
	require.Len(t, italy, 1)
	assert.Equal(t, int64(40825), italy[0].WineID)
	assert.True(t, store.HasEdge(domain.LabelProvince, "Tuscany", domain.RelIsLocatedIn, domain.LabelCountry, "Italy"))

	props, ok := store.Node(domain.LabelWine, int64(7))
	require.True(t, ok)
	assert.Equal(t, "Vulkà Bianco", props["vineyard"])
	assert.NotContains(t, props, "price")
	assert.True(t, store.HasEdge(domain.LabelWine, int64(7), domain.RelIsFromCountry, domain.LabelCountry, domain.UnknownCountry))
}

func TestIngestMissingSource(t *testing.T) {
	store := graph.NewMemoryStore()
	path := filepath.Join(t.TempDir(), "nope.jsonl")
	report, err := newIngestion(t, store).Ingest(context.Background(), path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NotNil(t, report)
	assert.Equal(t, domain.RunStatusFailed, report.Status())
	assert.Equal(t, path, report.Source)
	assert.Contains(t, report.Error, "open source")
	assert.Zero(t, store.OpenSessions())
	assert.Zero(t, store.SchemaRuns())
}

func TestEnsureSchemaOnly(t *testing.T) {
	store := graph.NewMemoryStore()
	require.NoError(t, newIngestion(t, store).EnsureSchema(context.Background()))
	assert.Equal(t, 1, store.SchemaRuns())
	assert.Zero(t, store.OpenSessions())
	assert.Zero(t, store.NodeCount(domain.LabelWine))
}

func TestIngestRejectsConcurrentRun(t *testing.T) {
	svc := newIngestion(t, graph.NewMemoryStore()).(*ingestionService)
	svc.running.Lock()
	defer svc.running.Unlock()
	_, err := svc.Ingest(context.Background(), "-")
	assert.ErrorIs(t, err, ErrRunInProgress)
}
