// Package upsert writes batches of normalized records into the graph, one
// transaction per batch.
package upsert

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

type Engine struct {
	log *logger.Logger
}

func NewEngine(log *logger.Logger) *Engine {
	return &Engine{log: log.With("component", "UpsertEngine")}
}

// Upsert applies every record of the batch through session as one atomic
// transaction. It never retries; a failure comes back as *domain.TransactionError
// carrying the batch's id range, and nothing from the batch is committed.
func (e *Engine) Upsert(ctx context.Context, session graph.WriteSession, batch domain.Batch) (domain.UpsertResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "upsert.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.seq", batch.Seq),
		attribute.Int("batch.records", batch.Len()),
		attribute.Int64("batch.min_id", batch.MinID()),
		attribute.Int64("batch.max_id", batch.MaxID()),
	)

	fail := func(err error) (domain.UpsertResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return domain.UpsertResult{}, &domain.TransactionError{
			BatchSeq:  batch.Seq,
			MinID:     batch.MinID(),
			MaxID:     batch.MaxID(),
			Retryable: graph.IsRetryable(err),
			Err:       err,
		}
	}

	if session == nil {
		return fail(fmt.Errorf("upsert: nil session"))
	}
	if batch.Len() == 0 {
		return domain.UpsertResult{}, nil
	}

	plan, err := BuildPlan(batch.Records)
	if err != nil {
		return fail(err)
	}
	nodes, edges := plan.Size()

	start := time.Now()
	if err := session.Apply(ctx, plan); err != nil {
		e.log.Warn("batch rolled back",
			"seq", batch.Seq,
			"min_id", batch.MinID(),
			"max_id", batch.MaxID(),
			"error", err,
		)
		return fail(err)
	}
	e.log.Debug("batch committed",
		"seq", batch.Seq,
		"records", batch.Len(),
		"nodes", nodes,
		"edges", edges,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return domain.UpsertResult{Records: batch.Len(), Nodes: nodes, Edges: edges}, nil
}
