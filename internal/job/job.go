// Package job runs replace steps end to end: read a table from storage,
// render the step, and write the result back.
//
// A job is one input and one output. RunBatch runs several jobs with a
// bounded number in flight; each job still holds its whole table in
// memory, so the bound is also the memory bound.
package job

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/colreplace/pkg/compression"
	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/errors"
	"github.com/ajitpratap0/colreplace/pkg/formats"
	"github.com/ajitpratap0/colreplace/pkg/logger"
	"github.com/ajitpratap0/colreplace/pkg/metrics"
	"github.com/ajitpratap0/colreplace/pkg/observability"
	"github.com/ajitpratap0/colreplace/pkg/replace"
	"github.com/ajitpratap0/colreplace/pkg/storage"
)

// Job stages, used for spans, logs and stage metrics.
const (
	StageRead   = "read"
	StageRender = "render"
	StageWrite  = "write"
)

// Spec describes one job.
type Spec struct {
	// ID identifies the job in logs. Generated when empty.
	ID     string
	Input  string
	Output string
	Params replace.Params
}

// Report summarizes a successful job.
type Report struct {
	ID       string
	Input    string
	Output   string
	Rows     int64
	Columns  []replace.ColumnReport
	Duration time.Duration
}

// Runner executes jobs. It is safe for concurrent use.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	storage  *storage.Resolver
	renderer *replace.Renderer
	mem      memory.Allocator
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records job and render metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithAllocator sets the Arrow allocator for every stage.
func WithAllocator(mem memory.Allocator) Option {
	return func(r *Runner) { r.mem = mem }
}

// WithStorage overrides the storage resolver.
func WithStorage(s *storage.Resolver) Option {
	return func(r *Runner) { r.storage = s }
}

// NewRunner creates a Runner from cfg.
func NewRunner(cfg *config.Config, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{cfg: cfg, logger: log, mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(r)
	}
	if r.storage == nil {
		r.storage = storage.NewResolver(cfg.Storage, log)
	}
	r.renderer = replace.NewRenderer(log,
		replace.WithAllocator(r.mem),
		replace.WithMetrics(r.metrics),
	)
	return r
}

// Close releases storage clients.
func (r *Runner) Close() error {
	return r.storage.Close()
}

// Run executes spec. A rejected replace step is returned as a
// replace.RenderError so callers can localize it; no output is written
// in that case.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Report, error) {
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	start := time.Now()
	ctx = logger.ContextWithJob(ctx, spec.ID, spec.Input)
	log := logger.WithContext(ctx, r.logger)

	ctx, span := observability.StartSpan(ctx, "job.Run",
		attribute.String("job.id", spec.ID),
		attribute.String("job.input", spec.Input),
		attribute.String("job.output", spec.Output),
	)
	report, err := r.run(ctx, spec, log)
	observability.EndSpan(span, err)
	if err != nil {
		log.Error("job failed", zap.Error(err))
		return nil, err
	}

	report.Duration = time.Since(start)
	log.Info("job completed",
		zap.String("output", spec.Output),
		zap.Int64("rows", report.Rows),
		zap.Int("columns", len(report.Columns)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) run(ctx context.Context, spec Spec, log *zap.Logger) (*Report, error) {
	table, err := r.read(ctx, spec.Input)
	if err != nil {
		return nil, err
	}
	defer table.Release()

	var result replace.Result
	err = r.stage(ctx, StageRender, func(ctx context.Context) error {
		result = r.renderer.Render(ctx, table, spec.Params)
		return result.Err()
	})
	defer result.Release()
	if err != nil {
		return nil, err
	}

	if err := r.write(ctx, spec.Output, result.Table); err != nil {
		return nil, err
	}
	r.metrics.AddRows(result.Table.NumRows())

	return &Report{
		ID:      spec.ID,
		Input:   spec.Input,
		Output:  spec.Output,
		Rows:    result.Table.NumRows(),
		Columns: result.Columns,
	}, nil
}

func (r *Runner) read(ctx context.Context, uri string) (arrow.Table, error) {
	var table arrow.Table
	err := r.stage(ctx, StageRead, func(ctx context.Context) error {
		format, algo, err := formats.Detect(uri)
		if err != nil {
			return err
		}

		rc, err := r.storage.Open(ctx, uri)
		if err != nil {
			return err
		}
		defer rc.Close()

		dec, err := compression.NewReader(rc, algo)
		if err != nil {
			return err
		}
		defer dec.Close()

		table, err = formats.Read(ctx, dec, format, formats.ReadOptions{
			Allocator: r.mem,
			BatchRows: r.cfg.Output.BatchRows,
		})
		return err
	})
	return table, err
}

func (r *Runner) write(ctx context.Context, uri string, table arrow.Table) error {
	return r.stage(ctx, StageWrite, func(ctx context.Context) error {
		format, algo, err := r.outputEncoding(uri)
		if err != nil {
			return err
		}

		wc, err := r.storage.Create(ctx, uri)
		if err != nil {
			return err
		}
		enc, err := compression.NewWriter(wc, algo, compression.Default)
		if err != nil {
			wc.Close()
			return err
		}

		err = formats.Write(ctx, enc, table, format, formats.WriteOptions{
			Allocator:    r.mem,
			BatchRows:    r.cfg.Output.BatchRows,
			ParquetCodec: r.cfg.Output.ParquetCodec,
		})
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		if cerr := wc.Close(); err == nil {
			err = cerr
		}
		return err
	})
}

// outputEncoding applies the configured format and compression over what
// the output suffixes imply.
func (r *Runner) outputEncoding(uri string) (formats.Format, compression.Algorithm, error) {
	format, algo, detectErr := formats.Detect(uri)

	if name := r.cfg.Output.Compression; name != "" {
		a, err := compression.ParseAlgorithm(name)
		if err != nil {
			return "", "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
		}
		algo = a
	}
	if name := r.cfg.Output.Format; name != "" {
		f, err := formats.ParseFormat(name)
		if err != nil {
			return "", "", err
		}
		return f, algo, nil
	}
	if detectErr != nil {
		return "", "", detectErr
	}
	return format, algo, nil
}

// stage runs fn inside a span, timing it into the stage histogram.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "job cancelled before "+name)
	}

	ctx = logger.ContextWithStep(ctx, name)
	ctx, span := observability.StartSpan(ctx, "job."+name)
	timer := metrics.NewTimer(name)

	err := fn(ctx)

	d := timer.Stop()
	r.metrics.ObserveStage(name, d)
	observability.EndSpan(span, err)
	logger.WithContext(ctx, r.logger).Debug("stage finished", zap.Duration("duration", d), zap.Error(err))
	return err
}

// RunBatch runs specs with at most concurrency jobs in flight. Every job
// runs even when another fails; reports are returned in spec order with
// nil entries for failed jobs, alongside the first error.
func (r *Runner) RunBatch(ctx context.Context, specs []Spec, concurrency int) ([]*Report, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	reports := make([]*Report, len(specs))
	errs := make([]error, len(specs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			reports[i], errs[i] = r.Run(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}
