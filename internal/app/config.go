package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/winegraph/internal/data/db"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/orchestrator"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/envutil"
	"github.com/yungbote/winegraph/internal/platform/gcp"
	"github.com/yungbote/winegraph/internal/platform/neo4jdb"
	"github.com/yungbote/winegraph/internal/platform/rediscache"
)

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type QueryConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type GCSConfig struct {
	Enabled    bool `yaml:"enabled"`
	gcp.Config `yaml:",inline"`
}

type Config struct {
	LogMode      string                   `yaml:"log_mode"`
	GraphBackend GraphBackend             `yaml:"graph_backend"`
	Neo4j        neo4jdb.Config           `yaml:"neo4j"`
	HTTP         HTTPConfig               `yaml:"http"`
	Ingest       orchestrator.Config      `yaml:"ingest"`
	Query        QueryConfig              `yaml:"query"`
	Cache        rediscache.Config        `yaml:"cache"`
	RunStore     db.Config                `yaml:"runstore"`
	GCS          GCSConfig                `yaml:"gcs"`
	Otel         observability.OtelConfig `yaml:"otel"`
	Metrics      bool                     `yaml:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:      "development",
		GraphBackend: GraphBackendNeo4j,
		Neo4j:        neo4jdb.DefaultConfig(),
		HTTP:         HTTPConfig{Addr: ":8080"},
		Ingest:       orchestrator.DefaultConfig(),
		Query:        QueryConfig{Timeout: 5 * time.Second},
		Cache:        rediscache.Config{TTL: 10 * time.Minute},
		Otel:         observability.OtelConfig{ServiceName: "winegraph", SampleRatio: 1},
		Metrics:      true,
	}
}

// LoadConfig reads and validates the layered config.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ReadConfig layers defaults, then the YAML file at path (if any), then the
// environment. It does not validate.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, &domain.ConfigError{Field: "file", Reason: fmt.Sprintf("%s: %v", path, err)}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.GraphBackend = GraphBackend(strings.ToLower(envutil.String("GRAPH_BACKEND", string(cfg.GraphBackend))))

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	cfg.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", cfg.Neo4j.MaxPoolSize)
	cfg.Neo4j.ConnectTimeout = envutil.Seconds("NEO4J_TIMEOUT_SECONDS", cfg.Neo4j.ConnectTimeout)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if origins := envutil.String("CORS_ORIGINS", ""); origins != "" {
		cfg.HTTP.CORSOrigins = splitList(origins)
	}

	cfg.Ingest.BatchSize = envutil.Int("INGEST_BATCH_SIZE", cfg.Ingest.BatchSize)
	cfg.Ingest.Policy = orchestrator.Policy(envutil.String("INGEST_POLICY", string(cfg.Ingest.Policy)))
	cfg.Ingest.MaxBatchAttempts = envutil.Int("INGEST_MAX_ATTEMPTS", cfg.Ingest.MaxBatchAttempts)
	cfg.Ingest.RetryBackoff = envutil.Millis("INGEST_RETRY_BACKOFF_MS", cfg.Ingest.RetryBackoff)

	cfg.Query.Timeout = envutil.Millis("QUERY_TIMEOUT_MS", cfg.Query.Timeout)

	cfg.Cache.Addr = envutil.String("REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = envutil.String("REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Cache.DB = envutil.Int("REDIS_DB", cfg.Cache.DB)
	cfg.Cache.TTL = envutil.Seconds("CACHE_TTL_SECONDS", cfg.Cache.TTL)

	cfg.RunStore.Driver = envutil.String("RUNSTORE_DRIVER", cfg.RunStore.Driver)
	cfg.RunStore.DSN = envutil.String("RUNSTORE_DSN", cfg.RunStore.DSN)

	cfg.GCS.EmulatorHost = envutil.String("GCS_EMULATOR_HOST", cfg.GCS.EmulatorHost)
	cfg.GCS.Credentials = envutil.String("GCS_CREDENTIALS", cfg.GCS.Credentials)
	cfg.GCS.Enabled = envutil.Bool("GCS_ENABLED", cfg.GCS.Enabled || cfg.GCS.EmulatorHost != "")

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		cfg.Otel.Headers = observability.ParseHeaders(raw)
	}
	if ratio := envutil.Int("OTEL_SAMPLE_PERCENT", -1); ratio >= 0 {
		cfg.Otel.SampleRatio = float64(ratio) / 100
	}

	cfg.Metrics = envutil.Bool("METRICS_ENABLED", cfg.Metrics)
}

// Validate checks every section; all problems are reported together.
func (c Config) Validate() error {
	var errs []error
	switch c.GraphBackend {
	case GraphBackendNeo4j:
		if strings.TrimSpace(c.Neo4j.URI) == "" {
			errs = append(errs, &domain.ConfigError{Field: "neo4j.uri", Reason: "required for the neo4j backend"})
		}
	case GraphBackendMemory:
	default:
		errs = append(errs, &domain.ConfigError{Field: "graph_backend", Reason: fmt.Sprintf("unknown backend %q (want neo4j or memory)", c.GraphBackend)})
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, &domain.ConfigError{Field: "http.addr", Reason: "must not be empty"})
	}
	if err := c.Ingest.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Query.Timeout <= 0 {
		errs = append(errs, &domain.ConfigError{Field: "query.timeout", Reason: "must be positive"})
	}
	if c.Cache.Enabled() && c.Cache.TTL <= 0 {
		errs = append(errs, &domain.ConfigError{Field: "cache.ttl", Reason: "must be positive"})
	}
	if err := c.RunStore.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
