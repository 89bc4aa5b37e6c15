package app

import (
	"context"
	"fmt"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/platform/neo4jdb"
)

var newNeo4jClient = neo4jdb.New

type GraphBackend string

const (
	GraphBackendNeo4j  GraphBackend = "neo4j"
	GraphBackendMemory GraphBackend = "memory"
)

type GraphProviderBootstrapErrorCode string

const (
	GraphProviderBootstrapErrorInvalidBackend GraphProviderBootstrapErrorCode = "invalid_backend"
	GraphProviderBootstrapErrorConnectFailed  GraphProviderBootstrapErrorCode = "connect_failed"
)

type GraphProviderBootstrapError struct {
	Code    GraphProviderBootstrapErrorCode
	Backend GraphBackend
	URI     string
	Cause   error
}

func (e *GraphProviderBootstrapError) Error() string {
	if e == nil {
		return "graph store bootstrap failed"
	}
	return fmt.Sprintf(
		"graph store bootstrap failed (code=%s backend=%q uri=%q): %v",
		e.Code,
		e.Backend,
		e.URI,
		e.Cause,
	)
}

func (e *GraphProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveGraphStore opens the configured backend. The returned client is nil
// for the memory backend.
func resolveGraphStore(ctx context.Context, log *logger.Logger, cfg Config) (graph.Store, *neo4jdb.Client, error) {
	switch cfg.GraphBackend {
	case GraphBackendMemory:
		log.Warn("Using in-memory graph store; data is lost on exit")
		return graph.NewMemoryStore(), nil, nil
	case GraphBackendNeo4j:
	default:
		err := &GraphProviderBootstrapError{
			Code:    GraphProviderBootstrapErrorInvalidBackend,
			Backend: cfg.GraphBackend,
			Cause:   fmt.Errorf("unsupported graph backend %q", cfg.GraphBackend),
		}
		log.Error("Graph store selection failed", "backend", cfg.GraphBackend, "error_code", err.Code, "error", err)
		return nil, nil, err
	}

	log.Info("Selecting graph store", "backend", cfg.GraphBackend, "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	client, err := newNeo4jClient(ctx, cfg.Neo4j, log)
	if err != nil {
		err = &GraphProviderBootstrapError{
			Code:    GraphProviderBootstrapErrorConnectFailed,
			Backend: cfg.GraphBackend,
			URI:     cfg.Neo4j.URI,
			Cause:   err,
		}
		log.Error("Graph store bootstrap failed", "backend", cfg.GraphBackend, "uri", cfg.Neo4j.URI, "error_code", GraphProviderBootstrapErrorConnectFailed, "error", err)
		return nil, nil, err
	}
	store, err := graph.NewNeo4jStore(client, log)
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	return store, client, nil
}
