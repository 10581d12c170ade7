package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tablexport/internal/config"
	"github.com/JonMunkholm/tablexport/internal/logging"
)

// Default export settings.
const (
	DefaultBatchSize   = 150000
	DefaultParallelism = 3
)

// Options controls an Exporter.
type Options struct {
	OutputDir         string
	DestinationPrefix string
	BatchSize         int64
	Parallelism       int
	Retry             RetryPolicy
	BreakerFailures   int
	BreakerWindow     time.Duration
}

// OptionsFromConfig builds Options from the env configuration and manifest.
func OptionsFromConfig(cfg *config.Config, m *config.Manifest) Options {
	return Options{
		OutputDir:         cfg.Export.OutputDir,
		DestinationPrefix: m.DestinationPrefix,
		BatchSize:         cfg.Export.BatchSize,
		Parallelism:       cfg.Export.Parallelism,
		Retry:             RetryPolicyFromConfig(cfg.Retry),
		BreakerFailures:   cfg.Retry.BreakerMaxFailures,
		BreakerWindow:     cfg.Retry.BreakerWindow,
	}
}

// Exporter drives the per-table export: count, page, upload.
// Tables are processed one at a time; batches within a table run
// Parallelism at a time.
type Exporter struct {
	source   Source
	uploader Uploader
	opts     Options
	breaker  *Breaker
	tracker  *Tracker
}

// NewExporter creates an Exporter. A nil tracker is replaced by a private one.
func NewExporter(source Source, uploader Uploader, opts Options, tracker *Tracker) *Exporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if tracker == nil {
		tracker = NewTracker("", nil)
	}

	return &Exporter{
		source:   source,
		uploader: uploader,
		opts:     opts,
		breaker:  NewBreaker(opts.BreakerFailures, opts.BreakerWindow),
		tracker:  tracker,
	}
}

// Tracker returns the progress tracker the exporter reports to.
func (e *Exporter) Tracker() *Tracker {
	return e.tracker
}

// Run exports every table in order. A failing table never stops the
// remaining ones; the returned Summary carries every outcome.
func (e *Exporter) Run(ctx context.Context, tables []config.TableSpec) Summary {
	start := time.Now()
	summary := Summary{Results: make([]TableResult, 0, len(tables))}

	for _, spec := range tables {
		if ctx.Err() != nil {
			res := TableResult{Table: spec.Name, State: StateFailed, FailedIn: StatePending, Err: ctx.Err()}
			e.tracker.Fail(spec.Name, ctx.Err())
			summary.Results = append(summary.Results, res)
			continue
		}
		summary.Results = append(summary.Results, e.ExportTable(ctx, spec))
	}

	summary.Duration = time.Since(start)
	return summary
}

// ExportTable runs the full state machine for one table:
// counting -> paging -> drained -> uploading -> done | failed.
func (e *Exporter) ExportTable(ctx context.Context, spec config.TableSpec) TableResult {
	start := time.Now()
	logger := logging.WithFields(ctx, "table", spec.Name)
	logger.Info("exporting table", "columns", len(spec.Columns))

	res := TableResult{
		Table:     spec.Name,
		LocalPath: filepath.Join(e.opts.OutputDir, OutputFileName(spec.Name)),
		Key:       DestinationKey(e.opts.DestinationPrefix, spec.Name),
	}
	fail := func(stage TableState, err error) TableResult {
		res.State = StateFailed
		res.FailedIn = stage
		res.Err = err
		res.Duration = time.Since(start)
		e.tracker.Fail(spec.Name, err)
		logger.Error("table export failed",
			"stage", stage,
			"error", err,
			"code", ErrorCode(err),
			"rows_processed", res.ProcessedRows,
		)
		return res
	}

	sink, err := CreateSink(res.LocalPath)
	if err != nil {
		return fail(StatePending, err)
	}
	defer sink.Close()

	// COUNTING
	e.tracker.SetState(spec.Name, StateCounting)
	total, err := e.source.CountRows(ctx, spec.Name)
	if err != nil {
		return fail(StateCounting, fmt.Errorf("count rows: %w", err))
	}
	res.TotalRows = total
	e.tracker.SetTotal(spec.Name, total)
	logger.Info("counted rows", "total_rows", total)

	// PAGING
	e.tracker.SetState(spec.Name, StatePaging)
	job := &ExportJob{Table: spec, TotalRowCount: total, Output: sink}
	err = e.page(ctx, job, logger)
	res.ProcessedRows = job.ProcessedRowCount
	if err != nil {
		return fail(StatePaging, err)
	}

	// DRAINED
	if err := sink.Close(); err != nil {
		return fail(StateDrained, err)
	}
	e.tracker.SetState(spec.Name, StateDrained)
	if job.ProcessedRowCount != total {
		// Rows were inserted or deleted after COUNT(*); the file reflects what paging saw.
		logger.Warn("row count drifted during export",
			"total_rows", total,
			"rows_processed", job.ProcessedRowCount,
		)
	}

	// UPLOADING
	e.tracker.SetState(spec.Name, StateUploading)
	e.tracker.SetKey(spec.Name, res.Key)
	logger.Info("uploading", "file", res.LocalPath, "key", res.Key, "bytes", sink.Bytes())
	if err := e.uploader.Upload(ctx, res.LocalPath, res.Key); err != nil {
		return fail(StateUploading, fmt.Errorf("upload %s: %w", res.LocalPath, err))
	}

	res.State = StateDone
	res.Duration = time.Since(start)
	e.tracker.SetState(spec.Name, StateDone)
	logger.Info("table exported",
		"rows_processed", res.ProcessedRows,
		"key", res.Key,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// page dispatches the table's batches in rounds of Parallelism and blocks on
// each round before starting the next.
func (e *Exporter) page(ctx context.Context, job *ExportJob, logger *slog.Logger) error {
	rounds := PlanRounds(job.TotalRowCount, e.opts.BatchSize, e.opts.Parallelism)

	for _, round := range rounds {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Parallelism)

		counts := make([]int64, len(round))
		for i, b := range round {
			g.Go(func() error {
				n, err := e.runBatch(gctx, job, b, logger)
				counts[i] = n
				return err
			})
		}
		err := g.Wait()

		for _, n := range counts {
			job.ProcessedRowCount += n
		}
		e.tracker.AddProcessed(job.Table.Name, sum(counts))
		logger.Info("export progress",
			"rows_processed", job.ProcessedRowCount,
			"total_rows", job.TotalRowCount,
		)

		if err != nil {
			return err
		}
	}
	return nil
}

// runBatch fetches and appends one batch, retrying the fetch per the retry
// policy. Write failures are not retried since part of the block may
// already be on disk.
func (e *Exporter) runBatch(ctx context.Context, job *ExportJob, b Batch, logger *slog.Logger) (int64, error) {
	policy := e.opts.Retry
	policy.OnRetry = func(err error, next time.Duration) {
		logger.Debug("retrying batch", "offset", b.Offset, "wait", next)
	}

	return Retry(ctx, policy, func(ctx context.Context, attempt int) (int64, error) {
		rows, err := e.source.FetchBatch(ctx, job.Table, b.Size, b.Offset)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			logger.Warn("batch failed",
				"offset", b.Offset,
				"attempt", attempt,
				"error", err,
				"code", ErrorCode(err),
			)
			if berr := e.breaker.RecordFailure(job.Table.Name); berr != nil {
				return 0, Permanent(errors.Join(berr, err))
			}
			return 0, fmt.Errorf("fetch offset %d: %w", b.Offset, err)
		}

		b.Rows = rows
		n, err := job.Output.Append(b.Rows)
		if err != nil {
			return 0, Permanent(err)
		}
		logger.Debug("batch written", "offset", b.Offset, "rows", n)
		return n, nil
	})
}

func sum(xs []int64) int64 {
	var total int64
	for _, x := range xs {
		total += x
	}
	return total
}
