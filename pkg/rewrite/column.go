package rewrite

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/compute"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/colreplace/pkg/pattern"
)

// Rewriter rewrites whole chunked columns, dispatching each on its
// representation. It holds no per-call state and is safe for concurrent use
// on distinct columns.
type Rewriter struct {
	mem    memory.Allocator
	logger *zap.Logger
}

// NewRewriter creates a Rewriter. A nil allocator means memory.DefaultAllocator.
func NewRewriter(mem memory.Allocator, logger *zap.Logger) *Rewriter {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{mem: mem, logger: logger}
}

// Column rewrites col with p and returns a new column the caller must
// release. col itself is not modified.
func (r *Rewriter) Column(col *arrow.Column, p *pattern.Compiled) (*arrow.Column, Stats) {
	ctx := compute.WithAllocator(context.Background(), r.mem)
	field := col.Field()
	chunks := col.Data().Chunks()

	var (
		out   []arrow.Array
		dtype arrow.DataType
		stats Stats
		err   error
	)

	switch rep := RepresentationOf(field.Type); rep {
	case DictionaryEncoded:
		stats.Representation = rep
		rewritten := make([]arrow.Array, 0, len(chunks))
		for _, chunk := range chunks {
			dict, s := RewriteDictionary(r.mem, chunk.(*array.Dictionary), p)
			stats.add(s)
			rewritten = append(rewritten, dict)
		}
		out, dtype, err = reconcileDictionaries(ctx, field.Type.(*arrow.DictionaryType), rewritten)

	case Plain:
		stats.Representation = rep
		rewritten := make([]arrow.Array, 0, len(chunks))
		for _, chunk := range chunks {
			arr, s := RewritePlain(r.mem, chunk, p)
			stats.add(s)
			rewritten = append(rewritten, arr)
		}
		out, dtype, err = Reconcile(ctx, field.Type, rewritten)
	}

	if err != nil {
		r.logger.Debug("column kept as text after rewrite",
			zap.String("column", field.Name),
			zap.String("original_type", field.Type.String()),
			zap.Error(err))
	}
	stats.Reconciled = err == nil && !IsTextual(field.Type)

	chunked := arrow.NewChunked(dtype, out)
	releaseAll(out)
	defer chunked.Release()

	newField := arrow.Field{
		Name:     field.Name,
		Type:     dtype,
		Nullable: field.Nullable,
		Metadata: field.Metadata,
	}
	return arrow.NewColumn(newField, chunked), stats
}

// IsTextual reports whether dt holds text, directly or as dictionary values.
// Such columns are rewritten without any type reconciliation.
func IsTextual(dt arrow.DataType) bool {
	return isText(valueTypeOf(dt))
}

func valueTypeOf(dt arrow.DataType) arrow.DataType {
	if d, ok := dt.(*arrow.DictionaryType); ok {
		return d.ValueType
	}
	return dt
}
