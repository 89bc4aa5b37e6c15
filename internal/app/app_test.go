package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/data/db"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

const fixtureNDJSON = `{"id": 1, "points": "91", "title": "Castello 2015 Brunello", "description": "cherry and leather", "price": 55, "variety": "Sangiovese", "winery": "Castello", "country": "Italy", "province": "Tuscany", "taster_name": "Kerin O'Keefe"}
{"id": 2, "points": 87, "title": "Fattoria 2018 Chianti", "description": "bright cherry", "price": "18.0", "variety": "Sangiovese", "country": "Italy", "province": "Tuscany", "designation": "Vigna Alta"}
{"id": 3, "points": 89, "title": "Mystery Red", "description": "cherry"}
`

func testApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.GraphBackend = GraphBackendMemory
	cfg.RunStore = db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "runs.db")}

	a, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestAppIngestThenQuery(t *testing.T) {
	a := testApp(t)
	src := filepath.Join(t.TempDir(), "wines.jsonl")
	require.NoError(t, os.WriteFile(src, []byte(fixtureNDJSON), 0o600))

	report, err := a.Services.Ingestion.Ingest(context.Background(), src)
	require.NoError(t, err)
	require.True(t, report.OK(), report.Error)
	assert.Equal(t, 3, report.RecordsNormalized)
	assert.Equal(t, 3, report.RecordsWritten())

	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rest/search?terms=cherry&max_price=60", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rows []domain.WineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].WineID)

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rest/wines/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail domain.WineDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, domain.UnknownCountry, detail.Country)

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rest/ingestion/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []domain.IngestionRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, report.RunID, list.Runs[0].ID)
	assert.Equal(t, domain.RunStatusSucceeded, list.Runs[0].Status)
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.Timeout = 0
	_, err := New(context.Background(), cfg, logger.Nop())
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestAppCloseIsIdempotent(t *testing.T) {
	a := testApp(t)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}
