package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/winegraph/internal/http/handlers"
	httpMW "github.com/yungbote/winegraph/internal/http/middleware"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	Log         *logger.Logger
	Metrics     *observability.Metrics

	WineHandler   *httpH.WineHandler
	RunHandler    *httpH.RunHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/v1/rest")
	{
		if cfg.WineHandler != nil {
			api.GET("/search", cfg.WineHandler.Search)
			api.GET("/top_by_country", cfg.WineHandler.TopByCountry)
			api.GET("/top_by_province", cfg.WineHandler.TopByProvince)
			api.GET("/most_by_variety", cfg.WineHandler.MostByVariety)
			api.GET("/wines/:id", cfg.WineHandler.GetWine)
		}
		if cfg.RunHandler != nil {
			api.GET("/ingestion/runs", cfg.RunHandler.ListRuns)
			api.GET("/ingestion/runs/:id", cfg.RunHandler.GetRun)
		}
	}

	return r
}
