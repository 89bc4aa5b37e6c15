package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/data/db"
	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/platform/gcp"
	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/platform/neo4jdb"
	"github.com/yungbote/winegraph/internal/platform/rediscache"
)

// Clients are the process-lifetime connections. Optional ones stay nil when
// not configured.
type Clients struct {
	Graph   graph.Store
	Neo4j   *neo4jdb.Client
	Cache   rediscache.Cache
	RunDB   *gorm.DB
	Objects gcp.ObjectReader
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	store, client, err := resolveGraphStore(ctx, log, cfg)
	if err != nil {
		return Clients{}, err
	}
	c.Graph, c.Neo4j = store, client

	if cfg.Cache.Enabled() {
		cache, err := rediscache.New(ctx, log, cfg.Cache)
		if err != nil {
			_ = c.Close(ctx)
			return Clients{}, fmt.Errorf("init redis cache: %w", err)
		}
		c.Cache = cache
	}

	if cfg.RunStore.Enabled() {
		runDB, err := db.Open(cfg.RunStore, log)
		if err != nil {
			_ = c.Close(ctx)
			return Clients{}, fmt.Errorf("init run store: %w", err)
		}
		c.RunDB = runDB
	}

	objects, err := resolveObjectReader(ctx, log, cfg.GCS)
	if err != nil {
		_ = c.Close(ctx)
		return Clients{}, err
	}
	c.Objects = objects

	return c, nil
}

// Close releases everything in reverse order of acquisition.
func (c *Clients) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Objects != nil {
		errs = append(errs, c.Objects.Close())
		c.Objects = nil
	}
	if c.RunDB != nil {
		errs = append(errs, db.Close(c.RunDB))
		c.RunDB = nil
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
		c.Cache = nil
	}
	if c.Graph != nil {
		errs = append(errs, c.Graph.Close(ctx))
		c.Graph = nil
	}
	if c.Neo4j != nil {
		errs = append(errs, c.Neo4j.Close(ctx))
		c.Neo4j = nil
	}
	return errors.Join(errs...)
}
