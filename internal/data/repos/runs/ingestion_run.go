// Package runs keeps the history of ingestion runs.
package runs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/pkg/dbctx"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

const maxListLimit = 100

type IngestionRunRepo interface {
	Create(dbc dbctx.Context, run *domain.IngestionRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.IngestionRun, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*domain.IngestionRun, error)
	ListByStatus(dbc dbctx.Context, status string, since time.Time) ([]*domain.IngestionRun, error)
	// RecordRun stores a finished report; it satisfies the orchestrator's recorder.
	RecordRun(ctx context.Context, report *domain.IngestionReport) error
}

type ingestionRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestionRunRepo {
	return &ingestionRunRepo{
		db:  db,
		log: baseLog.With("repo", "IngestionRunRepo"),
	}
}

func (r *ingestionRunRepo) Create(dbc dbctx.Context, run *domain.IngestionRun) error {
	if run == nil {
		return nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return MapError("create run", dbc.DB(r.db).Create(run).Error)
}

func (r *ingestionRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.IngestionRun, error) {
	var run domain.IngestionRun
	if err := dbc.DB(r.db).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, MapError("get run", err)
	}
	return &run, nil
}

// ListRecent returns the newest runs first. limit is clamped to [1, 100].
func (r *ingestionRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]*domain.IngestionRun, error) {
	limit = min(max(limit, 1), maxListLimit)
	out := []*domain.IngestionRun{}
	err := dbc.DB(r.db).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, MapError("list runs", err)
	}
	return out, nil
}

func (r *ingestionRunRepo) ListByStatus(dbc dbctx.Context, status string, since time.Time) ([]*domain.IngestionRun, error) {
	out := []*domain.IngestionRun{}
	err := dbc.DB(r.db).
		Where("status = ? AND started_at >= ?", status, since.UTC()).
		Order("started_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, MapError("list runs by status", err)
	}
	return out, nil
}

func (r *ingestionRunRepo) RecordRun(ctx context.Context, report *domain.IngestionReport) error {
	run, err := FromReport(report)
	if err != nil {
		return err
	}
	if err := r.Create(dbctx.Context{Ctx: ctx}, run); err != nil {
		return err
	}
	r.log.Debug("run recorded", "run_id", run.ID.String(), "status", run.Status)
	return nil
}

// FromReport flattens a report into its persisted row.
func FromReport(report *domain.IngestionReport) (*domain.IngestionRun, error) {
	succeeded, err := jsonOf(report.Succeeded)
	if err != nil {
		return nil, err
	}
	failed, err := jsonOf(report.Failed)
	if err != nil {
		return nil, err
	}
	recordFailures, err := jsonOf(report.RecordFailures)
	if err != nil {
		return nil, err
	}
	return &domain.IngestionRun{
		ID:                report.RunID,
		Source:            report.Source,
		Policy:            report.Policy,
		BatchSize:         report.BatchSize,
		Status:            report.Status(),
		RecordsRead:       report.RecordsRead,
		RecordsNormalized: report.RecordsNormalized,
		RecordsSkipped:    report.RecordsSkipped,
		BatchesTotal:      report.BatchesTotal,
		BatchesSucceeded:  report.BatchesSucceeded,
		BatchesFailed:     report.BatchesFailed,
		Succeeded:         succeeded,
		Failed:            failed,
		RecordFailures:    recordFailures,
		Error:             report.Error,
		StartedAt:         report.StartedAt.UTC(),
		FinishedAt:        report.FinishedAt.UTC(),
	}, nil
}

func jsonOf[T any](v []T) (datatypes.JSON, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
