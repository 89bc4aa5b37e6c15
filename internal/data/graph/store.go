// Package graph is the wine graph's storage boundary: the merge Plan, the write
// session the ingestion run owns, the read queries, and the Neo4j and in-memory
// implementations behind them.
package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/winegraph/internal/domain"
)

// ErrTransient marks a failure worth retrying (lost connection, leader switch,
// deadlock). Neo4j errors are classified by the driver instead.
var ErrTransient = errors.New("graph: transient failure")

// WriteSession is a single write handle owned by one ingestion run. Apply is
// atomic: the whole plan commits or nothing does. Implementations are not safe
// for concurrent use.
type WriteSession interface {
	EnsureSchema(ctx context.Context) error
	Apply(ctx context.Context, p *Plan) error
	Close(ctx context.Context) error
}

// SearchQuery is a full-text search over wine title, description and variety.
type SearchQuery struct {
	Terms    string
	MaxPrice float64
	Limit    int
}

// Reader runs read-only queries. Implementations are safe for concurrent use.
// An empty result is not an error.
type Reader interface {
	SearchWines(ctx context.Context, q SearchQuery) ([]domain.WineSummary, error)
	TopWinesByCountry(ctx context.Context, country string, limit int) ([]domain.WineSummary, error)
	TopWinesByProvince(ctx context.Context, province string, limit int) ([]domain.WineSummary, error)
	MostWinesByVariety(ctx context.Context, country string, limit int) ([]domain.VarietyCount, error)
	// GetWine returns domain.ErrNotFound when no wine has the id.
	GetWine(ctx context.Context, id int64) (*domain.WineDetail, error)
}

type Store interface {
	Reader
	OpenWriteSession(ctx context.Context) (WriteSession, error)
	Close(ctx context.Context) error
}

// IsRetryable reports whether a failed Apply may succeed if resubmitted.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || neo4j.IsRetryable(err)
}
