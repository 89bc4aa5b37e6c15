// Package rediscache is the read-through cache for query results. Keys live under
// a version number; bumping the version after an ingestion run orphans every old
// entry at once and lets TTLs reclaim them.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/winegraph/internal/platform/logger"
)

const defaultPrefix = "winegraph:q"

type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

type Cache interface {
	// Get also returns the version it looked under. A miss is (nil, version,
	// false, nil).
	Get(ctx context.Context, key string) ([]byte, int64, bool, error)
	// Set writes under version, normally the one a preceding Get returned, so a
	// result computed before a Bump never lands in the newer namespace.
	Set(ctx context.Context, version int64, key string, val []byte) error
	// Bump invalidates every entry written before it.
	Bump(ctx context.Context) error
	Close() error
}

type redisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (Cache, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,

		ContextTimeoutEnabled: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	c := &redisCache{
		log:    log.With("service", "QueryCache"),
		rdb:    rdb,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
	if c.prefix == "" {
		c.prefix = defaultPrefix
	}
	if c.ttl <= 0 {
		c.ttl = 10 * time.Minute
	}
	c.log.Info("query cache connected", "addr", cfg.Addr, "db", cfg.DB, "ttl", c.ttl.String())
	return c, nil
}

func (c *redisCache) versionKey() string { return c.prefix + ":version" }

func entryKey(prefix string, version int64, key string) string {
	return prefix + ":v" + strconv.FormatInt(version, 10) + ":" + key
}

func (c *redisCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, int64, bool, error) {
	v, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	b, err := c.rdb.Get(ctx, entryKey(c.prefix, v, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, v, false, nil
	}
	if err != nil {
		return nil, v, false, err
	}
	return b, v, true, nil
}

func (c *redisCache) Set(ctx context.Context, version int64, key string, val []byte) error {
	return c.rdb.Set(ctx, entryKey(c.prefix, version, key), val, c.ttl).Err()
}

func (c *redisCache) Bump(ctx context.Context) error {
	v, err := c.rdb.Incr(ctx, c.versionKey()).Result()
	if err != nil {
		return err
	}
	c.log.Info("query cache invalidated", "version", v)
	return nil
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}
