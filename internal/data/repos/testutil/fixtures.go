package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/domain"
)

// SeedRun inserts a finished run with the given status, started at startedAt.
func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, status string, startedAt time.Time) *domain.IngestionRun {
	tb.Helper()
	run := &domain.IngestionRun{
		ID:             uuid.New(),
		Source:         "fixtures/winemag.jsonl",
		Policy:         "strict",
		BatchSize:      domain.DefaultBatchSize,
		Status:         status,
		Succeeded:      datatypes.JSON([]byte("[]")),
		Failed:         datatypes.JSON([]byte("[]")),
		RecordFailures: datatypes.JSON([]byte("[]")),
		StartedAt:      startedAt.UTC(),
		FinishedAt:     startedAt.UTC().Add(time.Minute),
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return run
}
