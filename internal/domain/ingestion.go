package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Batch is a contiguous slice of normalized records submitted as one transaction.
type Batch struct {
	Seq     int
	Records []WineRecord
}

func (b Batch) Len() int { return len(b.Records) }

func (b Batch) MinID() int64 {
	if len(b.Records) == 0 {
		return 0
	}
	m := b.Records[0].ID
	for _, r := range b.Records[1:] {
		if r.ID < m {
			m = r.ID
		}
	}
	return m
}

func (b Batch) MaxID() int64 {
	if len(b.Records) == 0 {
		return 0
	}
	m := b.Records[0].ID
	for _, r := range b.Records[1:] {
		if r.ID > m {
			m = r.ID
		}
	}
	return m
}

func (b Batch) Range() BatchRange {
	return BatchRange{Seq: b.Seq, MinID: b.MinID(), MaxID: b.MaxID(), Records: len(b.Records)}
}

type UpsertResult struct {
	Records int
	Nodes   int
	Edges   int
}

type BatchRange struct {
	Seq     int   `json:"seq"`
	MinID   int64 `json:"min_id"`
	MaxID   int64 `json:"max_id"`
	Records int   `json:"records"`
}

type BatchFailure struct {
	BatchRange
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

type RecordFailure struct {
	Line     int    `json:"line,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error"`
}

// BatchResult is what the orchestrator reports after each batch.
type BatchResult struct {
	Range    BatchRange
	Attempts int
	Err      error
	Elapsed  time.Duration
}

// IngestionReport summarizes one ingestion run. It is produced on every exit path.
type IngestionReport struct {
	RunID      uuid.UUID `json:"run_id"`
	Source     string    `json:"source"`
	Policy     string    `json:"policy"`
	BatchSize  int       `json:"batch_size"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RecordsRead       int             `json:"records_read"`
	RecordsNormalized int             `json:"records_normalized"`
	RecordsSkipped    int             `json:"records_skipped"`
	RecordFailures    []RecordFailure `json:"record_failures,omitempty"`

	BatchesTotal     int            `json:"batches_total"`
	BatchesSucceeded int            `json:"batches_succeeded"`
	BatchesFailed    int            `json:"batches_failed"`
	Succeeded        []BatchRange   `json:"succeeded"`
	Failed           []BatchFailure `json:"failed"`

	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether every batch committed and the run finished normally.
func (r *IngestionReport) OK() bool {
	return r != nil && r.Error == "" && !r.Cancelled && r.BatchesFailed == 0
}

// RecordsWritten counts records in committed batches.
func (r *IngestionReport) RecordsWritten() int {
	n := 0
	for _, b := range r.Succeeded {
		n += b.Records
	}
	return n
}

// IngestionRun is the persisted form of an IngestionReport.
type IngestionRun struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Source            string         `gorm:"column:source" json:"source"`
	Policy            string         `gorm:"column:policy" json:"policy"`
	BatchSize         int            `gorm:"column:batch_size;not null" json:"batch_size"`
	Status            string         `gorm:"column:status;not null;index" json:"status"`
	RecordsRead       int            `gorm:"column:records_read;not null;default:0" json:"records_read"`
	RecordsNormalized int            `gorm:"column:records_normalized;not null;default:0" json:"records_normalized"`
	RecordsSkipped    int            `gorm:"column:records_skipped;not null;default:0" json:"records_skipped"`
	BatchesTotal      int            `gorm:"column:batches_total;not null;default:0" json:"batches_total"`
	BatchesSucceeded  int            `gorm:"column:batches_succeeded;not null;default:0" json:"batches_succeeded"`
	BatchesFailed     int            `gorm:"column:batches_failed;not null;default:0" json:"batches_failed"`
	Succeeded         datatypes.JSON `gorm:"column:succeeded" json:"succeeded"`
	Failed            datatypes.JSON `gorm:"column:failed" json:"failed"`
	RecordFailures    datatypes.JSON `gorm:"column:record_failures" json:"record_failures"`
	Error             string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt         time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt        time.Time      `gorm:"column:finished_at;not null" json:"finished_at"`
}

func (IngestionRun) TableName() string { return "ingestion_run" }

const (
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Status classifies a finished report.
func (r *IngestionReport) Status() string {
	switch {
	case r.Cancelled:
		return RunStatusCancelled
	case r.Error != "":
		return RunStatusFailed
	case r.BatchesFailed > 0 && r.BatchesSucceeded > 0:
		return RunStatusPartial
	case r.BatchesFailed > 0:
		return RunStatusFailed
	default:
		return RunStatusSucceeded
	}
}
