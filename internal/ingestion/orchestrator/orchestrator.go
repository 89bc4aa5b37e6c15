// Package orchestrator drives one ingestion run: schema, normalization, batching
// and sequential batch upserts over a single write session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/winegraph/internal/data/graph"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/ingestion/batch"
	"github.com/yungbote/winegraph/internal/ingestion/normalize"
	"github.com/yungbote/winegraph/internal/ingestion/upsert"
	"github.com/yungbote/winegraph/internal/observability"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

// RunRecorder persists finished reports.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *domain.IngestionReport) error
}

type Orchestrator struct {
	store      graph.Store
	normalizer *normalize.Normalizer
	engine     *upsert.Engine
	cfg        Config
	log        *logger.Logger

	metrics  *observability.Metrics
	recorder RunRecorder
	progress func(domain.BatchResult)
	finished []func(context.Context, *domain.IngestionReport)
	sleep    func(context.Context, time.Duration) error
}

type Option func(*Orchestrator)

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithRecorder(r RunRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithProgress is called after every batch, committed or not.
func WithProgress(fn func(domain.BatchResult)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithFinished is called once per run with the final report, on every exit path
// past config validation.
func WithFinished(fn func(context.Context, *domain.IngestionReport)) Option {
	return func(o *Orchestrator) { o.finished = append(o.finished, fn) }
}

func New(store graph.Store, normalizer *normalize.Normalizer, engine *upsert.Engine, log *logger.Logger, cfg Config, opts ...Option) (*Orchestrator, error) {
	if store == nil || normalizer == nil || engine == nil {
		return nil, errors.New("orchestrator: store, normalizer and engine are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:      store,
		normalizer: normalizer,
		engine:     engine,
		cfg:        cfg,
		log:        log.With("component", "Orchestrator"),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run ingests everything source yields. The report is never nil. The returned
// error is set when the run itself could not proceed (session, schema, source
// I/O, strict-policy validation, cancellation); failed batches are only reported.
//
// Cancellation is honoured between batches. A batch in flight always runs to
// commit or failure.
func (o *Orchestrator) Run(ctx context.Context, sourceName string, source iter.Seq2[domain.SourceRecord, error]) (report *domain.IngestionReport, err error) {
	report = o.newReport(sourceName)
	log := o.log.With("run_id", report.RunID.String(), "source", sourceName)

	ctx, span := observability.Tracer().Start(ctx, "ingest.run")
	span.SetAttributes(
		attribute.String("run.id", report.RunID.String()),
		attribute.String("run.source", sourceName),
		attribute.Int("run.batch_size", o.cfg.BatchSize),
	)
	defer func() {
		if err != nil {
			if report.Error == "" {
				report.Error = err.Error()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, report.Status())
		}
		span.End()
		o.finish(ctx, log, report)
	}()

	session, err := o.store.OpenWriteSession(ctx)
	if err != nil {
		return report, fmt.Errorf("open write session: %w", err)
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("write session close failed", "error", cerr)
		}
	}()

	if err := session.EnsureSchema(ctx); err != nil {
		return report, fmt.Errorf("ensure schema: %w", err)
	}

	records, err := o.normalize(report, source)
	if err != nil {
		return report, err
	}
	log.Info("source normalized",
		"read", report.RecordsRead,
		"normalized", report.RecordsNormalized,
		"skipped", report.RecordsSkipped,
	)

	batches, err := batch.Chunk(records, o.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	report.BatchesTotal = batch.Count(len(records), o.cfg.BatchSize)

	for b := range batches {
		if cerr := ctx.Err(); cerr != nil {
			report.Cancelled = true
			log.Warn("run cancelled", "next_batch", b.Seq, "remaining", report.BatchesTotal-b.Seq)
			return report, cerr
		}
		o.submit(ctx, log, session, b, report)
	}

	log.Info("run finished",
		"batches", report.BatchesTotal,
		"succeeded", report.BatchesSucceeded,
		"failed", report.BatchesFailed,
		"records_written", report.RecordsWritten(),
	)
	return report, nil
}

// Abort finishes a run that failed before its source could be read. The failed
// report goes through the recorder and finished hooks like any other run.
func (o *Orchestrator) Abort(ctx context.Context, sourceName string, cause error) *domain.IngestionReport {
	report := o.newReport(sourceName)
	report.Error = cause.Error()
	log := o.log.With("run_id", report.RunID.String(), "source", sourceName)
	log.Error("run aborted", "error", cause)
	o.finish(ctx, log, report)
	return report
}

func (o *Orchestrator) newReport(sourceName string) *domain.IngestionReport {
	return &domain.IngestionReport{
		RunID:     uuid.New(),
		Source:    sourceName,
		Policy:    string(o.cfg.Policy),
		BatchSize: o.cfg.BatchSize,
		StartedAt: time.Now().UTC(),
		Succeeded: []domain.BatchRange{},
		Failed:    []domain.BatchFailure{},
	}
}

// normalize drains the source and applies the configured policy. Failures are
// reported with the record's source line, or its ordinal when the source has none.
func (o *Orchestrator) normalize(report *domain.IngestionReport, source iter.Seq2[domain.SourceRecord, error]) ([]domain.WineRecord, error) {
	var (
		raws  []domain.RawRecord
		lines []int
		pos   int
	)
	for rec, err := range source {
		pos++
		line := rec.Line
		if line == 0 {
			line = pos
		}
		if err == nil {
			raws = append(raws, rec.Fields)
			lines = append(lines, line)
			continue
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("read source: %w", err)
		}
		report.RecordFailures = append(report.RecordFailures, recordFailure(line, ve))
		if o.cfg.Policy == PolicyStrict {
			report.RecordsRead = pos
			report.RecordsSkipped = 1
			return nil, err
		}
	}
	report.RecordsRead = pos

	switch o.cfg.Policy {
	case PolicySkip:
		out, failures := o.normalizer.NormalizeEach(raws)
		for _, f := range failures {
			report.RecordFailures = append(report.RecordFailures, recordFailure(lines[f.Index], f.Err))
		}
		report.RecordsNormalized = len(out)
		report.RecordsSkipped = len(report.RecordFailures)
		o.metrics.AddRecords("normalized", len(out))
		o.metrics.AddRecords("skipped", report.RecordsSkipped)
		return out, nil
	default:
		out, err := o.normalizer.NormalizeAll(raws)
		if err != nil {
			var f *normalize.Failure
			if errors.As(err, &f) {
				report.RecordFailures = append(report.RecordFailures, recordFailure(lines[f.Index], f.Err))
			}
			report.RecordsSkipped = len(raws)
			return nil, err
		}
		report.RecordsNormalized = len(out)
		o.metrics.AddRecords("normalized", len(out))
		return out, nil
	}
}

// submit runs one batch to commit or final failure, retrying retryable failures.
// The batch runs detached from ctx cancellation; ctx only stops further attempts.
func (o *Orchestrator) submit(ctx context.Context, log *logger.Logger, session graph.WriteSession, b domain.Batch, report *domain.IngestionReport) {
	rng := b.Range()
	start := time.Now()
	var (
		err      error
		attempts int
	)
	for attempts < o.cfg.MaxBatchAttempts {
		attempts++
		_, err = o.engine.Upsert(context.WithoutCancel(ctx), session, b)
		if err == nil || !retryable(err) || attempts == o.cfg.MaxBatchAttempts {
			break
		}
		log.Warn("batch failed, retrying",
			"seq", b.Seq,
			"attempt", attempts,
			"backoff_ms", o.cfg.RetryBackoff.Milliseconds(),
			"error", err,
		)
		if serr := o.sleep(ctx, o.cfg.RetryBackoff); serr != nil {
			break
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		report.BatchesFailed++
		report.Failed = append(report.Failed, domain.BatchFailure{BatchRange: rng, Attempts: attempts, Error: err.Error()})
		o.metrics.ObserveBatch("failed", elapsed)
		o.metrics.AddRecords("failed", rng.Records)
		log.Error("batch failed",
			"seq", b.Seq,
			"min_id", rng.MinID,
			"max_id", rng.MaxID,
			"attempts", attempts,
			"error", err,
		)
	} else {
		report.BatchesSucceeded++
		report.Succeeded = append(report.Succeeded, rng)
		o.metrics.ObserveBatch("committed", elapsed)
		o.metrics.AddRecords("written", rng.Records)
		log.Info("batch committed",
			"seq", b.Seq,
			"min_id", rng.MinID,
			"max_id", rng.MaxID,
			"records", rng.Records,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	if o.progress != nil {
		o.progress(domain.BatchResult{Range: rng, Attempts: attempts, Err: err, Elapsed: elapsed})
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *logger.Logger, report *domain.IngestionReport) {
	report.FinishedAt = time.Now().UTC()
	o.metrics.IncRun(report.Status())

	detached := context.WithoutCancel(ctx)
	if o.recorder != nil {
		if err := o.recorder.RecordRun(detached, report); err != nil {
			log.Warn("run record failed", "error", err)
		}
	}
	for _, fn := range o.finished {
		fn(detached, report)
	}
}

func retryable(err error) bool {
	var txErr *domain.TransactionError
	return errors.As(err, &txErr) && txErr.Retryable
}

func recordFailure(line int, ve *domain.ValidationError) domain.RecordFailure {
	if ve.Line != 0 {
		line = ve.Line
	}
	return domain.RecordFailure{Line: line, RecordID: ve.RecordID, Error: ve.Error()}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
