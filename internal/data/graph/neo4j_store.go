package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/winegraph/internal/platform/logger"
	"github.com/yungbote/winegraph/internal/platform/neo4jdb"
)

// Neo4jStore reads through short-lived read sessions on the shared driver (driver
// sessions are not goroutine-safe; the driver and its pool are) and hands out one
// long-lived write session per ingestion run.
type Neo4jStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jStore(client *neo4jdb.Client, log *logger.Logger) (*Neo4jStore, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	return &Neo4jStore{client: client, log: log.With("store", "Neo4jStore")}, nil
}

func (s *Neo4jStore) OpenWriteSession(ctx context.Context) (WriteSession, error) {
	if s.client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j driver closed")
	}
	session := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
	return &neo4jWriteSession{session: session, log: s.log}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

type neo4jWriteSession struct {
	session neo4j.SessionWithContext
	log     *logger.Logger
}

func (w *neo4jWriteSession) EnsureSchema(ctx context.Context) error {
	for _, st := range SchemaStatements() {
		res, err := w.session.Run(ctx, st.Cypher, nil)
		if err != nil {
			return fmt.Errorf("graph: ensure %s: %w", st.Name, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("graph: ensure %s: %w", st.Name, err)
		}
		w.log.Debug("schema ensured", "name", st.Name)
	}
	return nil
}

// Apply runs the plan in one explicit transaction. The driver's managed retries
// are bypassed on purpose: resubmission is the caller's decision.
func (w *neo4jWriteSession) Apply(ctx context.Context, p *Plan) error {
	if p == nil || p.Empty() {
		return nil
	}
	tx, err := w.session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("graph: begin transaction: %w", err)
	}
	// Close rolls back anything not committed.
	defer tx.Close(ctx)

	for _, st := range CompilePlan(p) {
		res, err := tx.Run(ctx, st.Cypher, st.Params)
		if err != nil {
			return err
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (w *neo4jWriteSession) Close(ctx context.Context) error {
	return w.session.Close(ctx)
}
