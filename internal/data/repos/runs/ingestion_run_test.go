package runs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/data/repos/testutil"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/pkg/dbctx"
)

func TestIngestionRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIngestionRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC().Truncate(time.Second)
	old := testutil.SeedRun(t, ctx, tx, domain.RunStatusSucceeded, now.Add(-3*time.Hour))
	partial := testutil.SeedRun(t, ctx, tx, domain.RunStatusPartial, now.Add(-2*time.Hour))
	latest := testutil.SeedRun(t, ctx, tx, domain.RunStatusSucceeded, now.Add(-time.Hour))

	got, err := repo.GetByID(dbc, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)

	_, err = repo.GetByID(dbc, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recent, err := repo.ListRecent(dbc, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, latest.ID, recent[0].ID)
	assert.Equal(t, partial.ID, recent[1].ID)

	all, err := repo.ListRecent(dbc, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1, "limit is clamped to at least one")

	ok, err := repo.ListByStatus(dbc, domain.RunStatusSucceeded, now.Add(-4*time.Hour))
	require.NoError(t, err)
	require.Len(t, ok, 2)
	assert.Equal(t, latest.ID, ok[0].ID)
	assert.Equal(t, old.ID, ok[1].ID)
}

func TestRecordRunPersistsReport(t *testing.T) {
	db := testutil.DB(t)
	repo := NewIngestionRunRepo(db, testutil.Logger(t))

	started := time.Now().UTC().Add(-time.Minute)
	report := &domain.IngestionReport{
		RunID:            uuid.New(),
		Source:           "gs://reviews/winemag.jsonl.gz",
		Policy:           "skip",
		BatchSize:        500,
		StartedAt:        started,
		FinishedAt:       started.Add(30 * time.Second),
		RecordsRead:      1000,
		BatchesTotal:     2,
		BatchesSucceeded: 1,
		BatchesFailed:    1,
		Succeeded:        []domain.BatchRange{{Seq: 0, MinID: 0, MaxID: 499, Records: 500}},
		Failed: []domain.BatchFailure{{
			BatchRange: domain.BatchRange{Seq: 1, MinID: 500, MaxID: 999, Records: 500},
			Attempts:   1,
			Error:      "constraint violation",
		}},
	}
	require.NoError(t, repo.RecordRun(context.Background(), report))

	got, err := repo.GetByID(dbctx.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)
	assert.Equal(t, 1000, got.RecordsRead)

	var failed []domain.BatchFailure
	require.NoError(t, json.Unmarshal(got.Failed, &failed))
	assert.Equal(t, report.Failed, failed)
	assert.JSONEq(t, "[]", string(got.RecordFailures))

	err = repo.RecordRun(context.Background(), report)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMapError(t *testing.T) {
	assert.Nil(t, MapError("op", nil))
	assert.ErrorIs(t, MapError("op", gorm.ErrRecordNotFound), domain.ErrNotFound)
	assert.ErrorIs(t, MapError("op", &pgconn.PgError{Code: "23505"}), ErrConflict)
	assert.ErrorIs(t, MapError("op", &pgconn.PgError{Code: "40P01"}), ErrRetryable)
	assert.ErrorIs(t, MapError("op", context.DeadlineExceeded), ErrRetryable)

	plain := errors.New("boom")
	err := MapError("op", plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrConflict)
}
