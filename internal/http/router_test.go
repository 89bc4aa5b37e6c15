package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	httpH "github.com/yungbote/winegraph/internal/http/handlers"
	"github.com/yungbote/winegraph/internal/ingestion/upsert"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/services"
)

func testRouter(t *testing.T) (*gin.Engine, *observability.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p, err := upsert.BuildPlan([]domain.WineRecord{
		{ID: 10, Points: 94, Title: "Castello 2015 Brunello", Description: domain.Some("cherry and leather"), Price: domain.Some(60.0), Variety: domain.Some("Sangiovese"), Country: "Italy", Province: domain.Some("Tuscany")},
		{ID: 11, Points: 88, Title: "Fattoria 2018 Chianti", Description: domain.Some("bright cherry"), Price: domain.Some(18.0), Variety: domain.Some("Sangiovese"), Country: "Italy", Province: domain.Some("Tuscany")},
	})
	require.NoError(t, err)
	store := graph.NewMemoryStore()
	ws, err := store.OpenWriteSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, ws.Apply(context.Background(), p))
	require.NoError(t, ws.Close(context.Background()))

	m := observability.NewMetrics(prometheus.NewRegistry())
	log := logger.Nop()
	return NewRouter(RouterConfig{
		Log:           log,
		Metrics:       m,
		WineHandler:   httpH.NewWineHandler(services.NewQueryService(store, log, services.WithQueryMetrics(m))),
		HealthHandler: httpH.NewHealthHandler(nil),
	}), m
}

func TestRouterServesSearch(t *testing.T) {
	r, _ := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rest/search?terms=cherry&max_price=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.EqualValues(t, 10, rows[0]["wineID"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rest/search?terms=riesling&max_price=100", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRoutes(t *testing.T) {
	r, _ := testRouter(t)
	cases := map[string]int{
		"/healthcheck":                                    http.StatusOK,
		"/v1/rest/top_by_country?country=italy":           http.StatusOK,
		"/v1/rest/top_by_province?province=Tuscany":       http.StatusOK,
		"/v1/rest/most_by_variety?country=Italy":          http.StatusOK,
		"/v1/rest/wines/11":                               http.StatusOK,
		"/v1/rest/wines/12":                               http.StatusNotFound,
		"/v1/rest/top_by_country?country=Italy&limit=500": http.StatusBadRequest,
		"/v1/rest/ingestion/runs":                         http.StatusNotFound,
		"/metrics":                                        http.StatusOK,
	}
	for target, want := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, want, rec.Code, target)
	}
}

func TestMetricsEndpointExposesQueryCounters(t *testing.T) {
	r, _ := testRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/rest/wines/10", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wg_query_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/v1/rest/wines/:id"`)
}

func TestServerShutsDownOnCancel(t *testing.T) {
	r, _ := testRouter(t)
	srv := &Server{Engine: r}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
