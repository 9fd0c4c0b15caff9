// Package pipeline orchestrates one analysis run: chunked reads, per-record
// derivation, per-chunk partial aggregation, and the streaming merge into
// the run-wide aggregate.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ntbcli/internal/adoption"
	"ntbcli/internal/infrastructure"
	"ntbcli/internal/ingest"
	"ntbcli/pkg/contracts/domain"
)

// Source is the chunked record supply consumed by a run. Both the CSV and
// Excel readers in internal/ingest satisfy it.
type Source interface {
	Next(ctx context.Context) ([]domain.AccountRecord, error)
	Stats() ingest.ReadStats
	Close() error
}

// Options configures a Runner.
type Options struct {
	// ReferenceTime anchors all relative classifications.
	ReferenceTime time.Time
	// Workers > 1 processes chunks concurrently; merge order does not
	// affect the result.
	Workers int
	// RegionFilter / RGMFilter restrict which records enter the aggregates.
	RegionFilter string
	RGMFilter    string
	// TotalRows is an advisory pre-count used only for progress reporting.
	TotalRows int64

	Logger  *slog.Logger
	Metrics *infrastructure.RunMetrics
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Aggregate *adoption.Partial
	ReadStats ingest.ReadStats
	// FilteredRecords counts records excluded by the region/RGM filters.
	FilteredRecords int64
	// Stopped reports that the run was cancelled between chunks; the
	// aggregate covers every chunk completed before the stop and remains
	// internally consistent.
	Stopped  bool
	Duration time.Duration
}

// Runner executes analysis runs.
type Runner struct {
	opts Options
}

// NewRunner creates a runner. A zero ReferenceTime defaults to now.
func NewRunner(opts Options) *Runner {
	if opts.ReferenceTime.IsZero() {
		opts.ReferenceTime = time.Now()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts}
}

// Run folds the source into a run-wide aggregate. Chunk N+1 is not read
// before chunk N has been handed off, so peak memory stays proportional to
// chunk size plus the fixed-cardinality group keys.
//
// Cancellation is cooperative: the run stops after the chunk in flight and
// returns the aggregate accumulated so far with Stopped set.
func (r *Runner) Run(ctx context.Context, src Source) (*Result, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	logger := r.opts.Logger.With(slog.String("run_id", runID))

	logger.InfoContext(ctx, "starting analysis run",
		slog.Time("reference_time", r.opts.ReferenceTime),
		slog.Int("workers", r.opts.Workers),
		slog.String("total_rows", humanize.Comma(r.opts.TotalRows)))

	started := time.Now()
	result := &Result{RunID: runID, Aggregate: adoption.NewPartial()}

	var err error
	if r.opts.Workers > 1 {
		err = r.runParallel(ctx, src, result, logger)
	} else {
		err = r.runSequential(ctx, src, result, logger)
	}

	result.ReadStats = src.Stats()
	result.Duration = time.Since(started)
	r.opts.Metrics.RecordDropped(ctx, int(result.ReadStats.DroppedRows))

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Stopped = true
			logger.WarnContext(ctx, "run stopped after current chunk",
				slog.String("rows_read", humanize.Comma(result.ReadStats.RowsRead)))
			r.opts.Metrics.RecordRunCompleted(ctx, false)
			return result, nil
		}
		r.opts.Metrics.RecordRunCompleted(ctx, false)
		return nil, err
	}

	r.opts.Metrics.RecordRunCompleted(ctx, true)
	logger.InfoContext(ctx, "analysis run complete",
		slog.String("rows_read", humanize.Comma(result.ReadStats.RowsRead)),
		slog.Int64("dropped_rows", result.ReadStats.DroppedRows),
		slog.Int64("rejected_records", result.Aggregate.RejectedRecords),
		slog.Int64("filtered_records", result.FilteredRecords),
		slog.Duration("elapsed", result.Duration))

	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, src Source, result *Result, logger *slog.Logger) error {
	progress := newProgress(logger, r.opts.TotalRows)

	for {
		batch, err := src.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		chunkStart := time.Now()
		partial, filtered := r.foldChunk(batch)
		result.Aggregate.Merge(partial)
		result.FilteredRecords += filtered

		r.opts.Metrics.RecordChunk(ctx, len(batch), int(partial.RejectedRecords), time.Since(chunkStart))
		progress.report(ctx, src.Stats().RowsRead)
	}
}

// runParallel reads chunks sequentially but derives and aggregates them on
// independent workers, merging worker-local partials at a single point.
// Worker ordering is irrelevant: Merge is associative and commutative.
func (r *Runner) runParallel(ctx context.Context, src Source, result *Result, logger *slog.Logger) error {
	progress := newProgress(logger, r.opts.TotalRows)
	chunks := make(chan []domain.AccountRecord, r.opts.Workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < r.opts.Workers; i++ {
		g.Go(func() error {
			local := adoption.NewPartial()
			var filtered int64
			for batch := range chunks {
				chunkStart := time.Now()
				partial, f := r.foldChunk(batch)
				local.Merge(partial)
				filtered += f
				r.opts.Metrics.RecordChunk(gctx, len(batch), int(partial.RejectedRecords), time.Since(chunkStart))
			}
			mu.Lock()
			result.Aggregate.Merge(local)
			result.FilteredRecords += filtered
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		defer close(chunks)
		for {
			batch, err := src.Next(gctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case chunks <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			progress.report(gctx, src.Stats().RowsRead)
		}
	})

	return g.Wait()
}

// foldChunk derives and aggregates one batch into a fresh partial.
// Derived records are discarded as soon as they are folded.
func (r *Runner) foldChunk(batch []domain.AccountRecord) (*adoption.Partial, int64) {
	partial := adoption.NewPartial()
	var filtered int64

	for i := range batch {
		rec := &batch[i]
		if r.opts.RegionFilter != "" && rec.RegionDesc != r.opts.RegionFilter {
			filtered++
			continue
		}
		if r.opts.RGMFilter != "" && rec.RGM != r.opts.RGMFilter {
			filtered++
			continue
		}

		derived, err := adoption.Derive(*rec, r.opts.ReferenceTime)
		if err != nil {
			partial.AddRejected()
			continue
		}
		partial.Add(&derived)
	}

	return partial, filtered
}

// progress throttles scan progress logging on long runs.
type progress struct {
	logger  *slog.Logger
	total   int64
	limiter *rate.Limiter
}

func newProgress(logger *slog.Logger, total int64) *progress {
	return &progress{
		logger:  logger,
		total:   total,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (p *progress) report(ctx context.Context, rowsRead int64) {
	if !p.limiter.Allow() {
		return
	}
	attrs := []any{slog.String("rows_read", humanize.Comma(rowsRead))}
	if p.total > 0 {
		attrs = append(attrs, slog.String("progress",
			humanize.FormatFloat("#.#", float64(rowsRead)/float64(p.total)*100)+"%"))
	}
	p.logger.InfoContext(ctx, "scan progress", attrs...)
}
