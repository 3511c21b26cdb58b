// Package replace implements the find-and-replace step over table columns.
//
// Render compiles the user's pattern, rewrites each selected column in the
// representation it already has (plain or dictionary encoded), and restores
// each column's original type whenever every rewritten value still parses
// as that type. Invalid input is reported as localizable RenderErrors rather
// than Go errors, because it is the user's to fix.
package replace

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/colreplace/pkg/errors"
	"github.com/ajitpratap0/colreplace/pkg/i18n"
	"github.com/ajitpratap0/colreplace/pkg/logger"
	"github.com/ajitpratap0/colreplace/pkg/metrics"
	"github.com/ajitpratap0/colreplace/pkg/pattern"
	"github.com/ajitpratap0/colreplace/pkg/rewrite"
)

const tracerName = "github.com/ajitpratap0/colreplace/pkg/replace"

// Option configures a Renderer.
type Option func(*Renderer)

// WithAllocator sets the Arrow allocator used for rewritten columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(r *Renderer) { r.mem = mem }
}

// WithMetrics records render metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Renderer) { r.metrics = c }
}

// Renderer renders replace steps. It is safe for concurrent use.
type Renderer struct {
	mem      memory.Allocator
	logger   *zap.Logger
	metrics  *metrics.Collector
	rewriter *rewrite.Rewriter
}

// NewRenderer creates a Renderer. A nil logger discards logs.
func NewRenderer(log *zap.Logger, opts ...Option) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{mem: memory.DefaultAllocator, logger: log}
	for _, opt := range opts {
		opt(r)
	}
	r.rewriter = rewrite.NewRewriter(r.mem, r.logger)
	return r
}

// Render applies params to table. The input table is never modified; the
// caller must Release the returned Result.
func Render(ctx context.Context, table arrow.Table, params Params) Result {
	return NewRenderer(nil).Render(ctx, table, params)
}

// Render applies params to table.
//
// A no-op step returns table itself, retained. Otherwise either every
// selected column is rewritten, or the result holds exactly one error and an
// empty table. Unselected columns are shared with the input.
func (r *Renderer) Render(ctx context.Context, table arrow.Table, params Params) Result {
	timer := metrics.NewTimer("render")
	log := logger.WithContext(ctx, r.logger)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "replace.Render")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("table.rows", table.NumRows()),
		attribute.StringSlice("replace.colnames", params.Colnames),
		attribute.Bool("replace.regex", params.Regex),
	)

	if params.IsNoop() {
		table.Retain()
		r.metrics.ObserveRender(metrics.OutcomeNoop, timer.Stop())
		log.Debug("replace step is a no-op", zap.Strings("colnames", params.Colnames))
		return Result{Table: table}
	}

	compiled, err := pattern.Compile(params.Options())
	if err != nil {
		return r.fail(ctx, log, timer, toRenderError(err))
	}

	targets, renderErr := resolveColumns(table.Schema(), params.Colnames)
	if renderErr != nil {
		return r.fail(ctx, log, timer, *renderErr)
	}

	out, reports := r.rewriteTable(table, targets, compiled)

	for _, rep := range reports {
		log.Debug("column rewritten",
			zap.String("column", rep.Name),
			zap.Stringer("representation", rep.Stats.Representation),
			zap.Stringer("type", rep.Type),
			zap.Int("values", rep.Stats.Values),
			zap.Int("changed", rep.Stats.Changed))
	}
	log.Info("replace step rendered",
		zap.Int("columns", len(reports)),
		zap.Int64("rows", out.NumRows()),
		zap.Duration("duration", timer.Stop()))
	r.metrics.ObserveRender(metrics.OutcomeOK, timer.Stop())

	return Result{Table: out, Columns: reports}
}

// rewriteTable builds the output table. Each targeted column index is
// rewritten from the input once; repeated names map to the same index and
// would produce the same column.
func (r *Renderer) rewriteTable(table arrow.Table, targets []int, compiled *pattern.Compiled) (arrow.Table, []ColumnReport) {
	schema := table.Schema()
	fields := make([]arrow.Field, len(schema.Fields()))
	copy(fields, schema.Fields())
	cols := make([]arrow.Column, table.NumCols())
	for i := range cols {
		cols[i] = *table.Column(i)
	}

	var (
		reports   []ColumnReport
		rewritten []*arrow.Column
	)
	for _, idx := range targets {
		col, stats := r.rewriter.Column(table.Column(idx), compiled)
		rewritten = append(rewritten, col)
		cols[idx] = *col
		fields[idx] = col.Field()

		reports = append(reports, ColumnReport{Name: col.Name(), Type: col.DataType(), Stats: stats})
		r.metrics.ObserveColumn(stats.Representation.String(), stats.Values, stats.Changed)
		if !rewrite.IsTextual(table.Column(idx).DataType()) {
			r.metrics.ObserveReconciliation(stats.Reconciled)
		}
	}

	md := schema.Metadata()
	out := array.NewTable(arrow.NewSchema(fields, &md), cols, table.NumRows())
	for _, col := range rewritten {
		col.Release()
	}
	return out, reports
}

// resolveColumns maps colnames to schema indices in order, without
// duplicates. A name matching several fields selects all of them.
func resolveColumns(schema *arrow.Schema, colnames []string) ([]int, *RenderError) {
	var targets []int
	seen := make(map[int]bool)
	for _, name := range colnames {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			err := errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", name).
				WithDetail("column", name)
			return nil, &RenderError{
				Message: i18n.NewMessage(i18n.ColumnNotInTable, "column", name),
				Err:     err,
			}
		}
		for _, idx := range indices {
			if !seen[idx] {
				seen[idx] = true
				targets = append(targets, idx)
			}
		}
	}
	return targets, nil
}

// toRenderError translates a compile failure into its user-facing message.
func toRenderError(err error) RenderError {
	var e *errors.Error
	if !errors.As(err, &e) {
		return RenderError{Message: i18n.NewMessage(i18n.RegexGeneral, "error", err.Error()), Err: err}
	}

	id := i18n.RegexGeneral
	if e.Type == errors.ErrorTypeTemplate {
		id = i18n.TemplateInvalid
	}
	return RenderError{Message: i18n.NewMessage(id, "error", e.Message), Err: err}
}

func (r *Renderer) fail(ctx context.Context, log *zap.Logger, timer *metrics.Timer, renderErr RenderError) Result {
	span := trace.SpanFromContext(ctx)
	span.RecordError(renderErr.Err)
	span.SetStatus(codes.Error, renderErr.Message.ID)

	log.Info("replace step rejected",
		zap.String("message_id", renderErr.Message.ID),
		zap.Error(renderErr.Err))
	r.metrics.ObserveRender(metrics.OutcomeError, timer.Stop())

	return Result{
		Table:  array.NewTable(arrow.NewSchema(nil, nil), nil, 0),
		Errors: []RenderError{renderErr},
	}
}
