package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/platform/rediscache"
)

const (
	DefaultQueryLimit   = 5
	MaxQueryLimit       = 100
	DefaultQueryTimeout = 5 * time.Second
)

const (
	opSearch        = "search"
	opTopByCountry  = "top_by_country"
	opTopByProvince = "top_by_province"
	opMostByVariety = "most_by_variety"
	opGetWine       = "get_wine"
)

// QueryService answers read-only questions about the wine graph. It is safe for
// concurrent use; identical in-flight requests share one store round trip.
type QueryService interface {
	SearchByKeywords(ctx context.Context, terms string, maxPrice float64, limit int) ([]domain.WineSummary, error)
	TopByCountry(ctx context.Context, country string, limit int) ([]domain.WineSummary, error)
	TopByProvince(ctx context.Context, province string, limit int) ([]domain.WineSummary, error)
	MostByVariety(ctx context.Context, country string, limit int) ([]domain.VarietyCount, error)
	GetWine(ctx context.Context, id int64) (*domain.WineDetail, error)
	// Invalidate drops cached results, typically after an ingestion run.
	Invalidate(ctx context.Context)
}

type queryService struct {
	reader  graph.Reader
	cache   rediscache.Cache
	metrics *observability.Metrics
	log     *logger.Logger
	timeout time.Duration
	group   singleflight.Group
}

type QueryOption func(*queryService)

func WithQueryCache(c rediscache.Cache) QueryOption {
	return func(s *queryService) { s.cache = c }
}

func WithQueryMetrics(m *observability.Metrics) QueryOption {
	return func(s *queryService) { s.metrics = m }
}

// WithQueryTimeout sets the caller-facing deadline; non-positive keeps the default.
func WithQueryTimeout(d time.Duration) QueryOption {
	return func(s *queryService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewQueryService(reader graph.Reader, log *logger.Logger, opts ...QueryOption) QueryService {
	s := &queryService{
		reader:  reader,
		log:     log.With("service", "QueryService"),
		timeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *queryService) SearchByKeywords(ctx context.Context, terms string, maxPrice float64, limit int) ([]domain.WineSummary, error) {
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, &domain.ConfigError{Field: "terms", Reason: "must not be empty"}
	}
	if math.IsNaN(maxPrice) || maxPrice < 0 {
		return nil, &domain.ConfigError{Field: "max_price", Reason: "must be a non-negative number"}
	}
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	key := cacheKey(opSearch, terms, strconv.FormatFloat(maxPrice, 'f', -1, 64), strconv.Itoa(limit))
	return run(ctx, s, opSearch, key, func(ctx context.Context) ([]domain.WineSummary, error) {
		rows, err := s.reader.SearchWines(ctx, graph.SearchQuery{Terms: terms, MaxPrice: maxPrice, Limit: limit})
		if err != nil {
			return nil, err
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Score != rows[j].Score {
				return rows[i].Score > rows[j].Score
			}
			return rows[i].Points > rows[j].Points
		})
		return truncate(rows, limit), nil
	})
}

func (s *queryService) TopByCountry(ctx context.Context, country string, limit int) ([]domain.WineSummary, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, &domain.ConfigError{Field: "country", Reason: "must not be empty"}
	}
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	key := cacheKey(opTopByCountry, strings.ToLower(country), strconv.Itoa(limit))
	return run(ctx, s, opTopByCountry, key, func(ctx context.Context) ([]domain.WineSummary, error) {
		rows, err := s.reader.TopWinesByCountry(ctx, country, limit)
		if err != nil {
			return nil, err
		}
		sortByPoints(rows)
		return truncate(rows, limit), nil
	})
}

func (s *queryService) TopByProvince(ctx context.Context, province string, limit int) ([]domain.WineSummary, error) {
	province = strings.TrimSpace(province)
	if province == "" {
		return nil, &domain.ConfigError{Field: "province", Reason: "must not be empty"}
	}
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	key := cacheKey(opTopByProvince, strings.ToLower(province), strconv.Itoa(limit))
	return run(ctx, s, opTopByProvince, key, func(ctx context.Context) ([]domain.WineSummary, error) {
		rows, err := s.reader.TopWinesByProvince(ctx, province, limit)
		if err != nil {
			return nil, err
		}
		sortByPoints(rows)
		return truncate(rows, limit), nil
	})
}

func (s *queryService) MostByVariety(ctx context.Context, country string, limit int) ([]domain.VarietyCount, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, &domain.ConfigError{Field: "country", Reason: "must not be empty"}
	}
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	key := cacheKey(opMostByVariety, strings.ToLower(country), strconv.Itoa(limit))
	return run(ctx, s, opMostByVariety, key, func(ctx context.Context) ([]domain.VarietyCount, error) {
		rows, err := s.reader.MostWinesByVariety(ctx, country, limit)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].WineCount > rows[j].WineCount })
		return truncate(rows, limit), nil
	})
}

// GetWine returns domain.ErrNotFound, unwrapped, when no wine has the id.
func (s *queryService) GetWine(ctx context.Context, id int64) (*domain.WineDetail, error) {
	if id < 0 {
		return nil, &domain.ConfigError{Field: "id", Reason: "must not be negative"}
	}
	key := cacheKey(opGetWine, strconv.FormatInt(id, 10))
	return run(ctx, s, opGetWine, key, func(ctx context.Context) (*domain.WineDetail, error) {
		return s.reader.GetWine(ctx, id)
	})
}

func (s *queryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.log.Warn("query cache invalidate failed", "error", err)
	}
}

// run applies the caller deadline, the cache and request coalescing around fn.
// The deadline covers the cache lookup. The shared store call runs detached from
// any single caller's cancellation and under its own copy of the deadline.
func run[T any](ctx context.Context, s *queryService, op, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, version, hit, cacheable := s.cacheGet(ctx, key)
	if hit {
		var out T
		if err := json.Unmarshal(v, &out); err == nil {
			s.metrics.ObserveQuery(op, "cache_hit", time.Since(start))
			return out, nil
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		err := s.queryErr(op, cerr)
		s.metrics.ObserveQuery(op, outcome(err), time.Since(start))
		return zero, err
	}

	ch := s.group.DoChan(key, func() (any, error) {
		fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer fcancel()
		out, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.cacheSet(fctx, version, key, out)
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		err := s.queryErr(op, ctx.Err())
		s.metrics.ObserveQuery(op, outcome(err), time.Since(start))
		return zero, err
	case res := <-ch:
		if res.Err != nil {
			err := res.Err
			if !errors.Is(err, domain.ErrNotFound) {
				err = s.queryErr(op, err)
			}
			s.metrics.ObserveQuery(op, outcome(err), time.Since(start))
			return zero, err
		}
		s.metrics.ObserveQuery(op, "ok", time.Since(start))
		return cloneResult(res.Val.(T)), nil
	}
}

func (s *queryService) queryErr(op string, err error) error {
	qe := &domain.QueryError{Op: op, Err: err, Timeout: errors.Is(err, context.DeadlineExceeded)}
	s.log.Warn("query failed", "op", op, "timeout", qe.Timeout, "error", err)
	return qe
}

// cacheGet reports whether the lookup hit and whether a miss may be filled under
// the returned version.
func (s *queryService) cacheGet(ctx context.Context, key string) (val []byte, version int64, hit, cacheable bool) {
	if s.cache == nil {
		return nil, 0, false, false
	}
	v, version, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.IncCache("error")
		s.log.Debug("query cache get failed", "error", err)
		return nil, 0, false, false
	case !ok:
		s.metrics.IncCache("miss")
		return nil, version, false, true
	default:
		s.metrics.IncCache("hit")
		return v, version, true, true
	}
}

func (s *queryService) cacheSet(ctx context.Context, version int64, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, version, key, b); err != nil {
		s.log.Debug("query cache set failed", "error", err)
	}
}

func outcome(err error) string {
	var qe *domain.QueryError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &qe) && qe.Timeout:
		return "timeout"
	default:
		return "error"
	}
}

func checkLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultQueryLimit, nil
	}
	if limit < 1 || limit > MaxQueryLimit {
		return 0, &domain.ConfigError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxQueryLimit)}
	}
	return limit, nil
}

// cacheKey joins parts with a separator that cannot appear unescaped in them.
func cacheKey(op string, parts ...string) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(p))
	}
	return b.String()
}

func sortByPoints(rows []domain.WineSummary) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Points > rows[j].Points })
}

func truncate[T any](rows []T, limit int) []T {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// cloneResult gives each coalesced caller its own slice header.
func cloneResult[T any](v T) T {
	switch t := any(v).(type) {
	case []domain.WineSummary:
		return any(slices.Clone(t)).(T)
	case []domain.VarietyCount:
		return any(slices.Clone(t)).(T)
	default:
		return v
	}
}
