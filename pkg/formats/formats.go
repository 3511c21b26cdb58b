// Package formats reads and writes whole Arrow tables in the file formats
// colreplace accepts: Parquet, Arrow IPC and CSV.
//
// Formats are boundary adapters. They know nothing about replace steps;
// they only turn bytes into an arrow.Table and back, preserving dictionary
// encoding wherever the format can carry it.
package formats

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/ajitpratap0/colreplace/pkg/compression"
	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// Format identifies a table file format.
type Format string

const (
	// Parquet is Apache Parquet with the Arrow schema stored in metadata.
	Parquet Format = "parquet"
	// Arrow is the Arrow IPC format, file or stream on read, stream on write.
	Arrow Format = "arrow"
	// CSV is comma separated text with a header row.
	CSV Format = "csv"
)

var extensions = map[string]Format{
	".parquet": Parquet,
	".pq":      Parquet,
	".arrow":   Arrow,
	".arrows":  Arrow,
	".ipc":     Arrow,
	".feather": Arrow,
	".csv":     CSV,
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case Parquet, Arrow, CSV:
		return f, nil
	case "ipc", "feather":
		return Arrow, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "unsupported table format %q", name)
	}
}

// Detect infers the format and compression of uri from its suffixes, as in
// "table.csv.gz".
func Detect(uri string) (Format, compression.Algorithm, error) {
	algo, base := compression.Detect(uri)
	ext := strings.ToLower(path.Ext(base))
	f, ok := extensions[ext]
	if !ok {
		return "", algo, errors.Newf(errors.ErrorTypeValidation,
			"cannot infer table format of %q; use one of .parquet, .arrow, .csv", uri)
	}
	return f, algo, nil
}

// ReadOptions configures Read.
type ReadOptions struct {
	Allocator memory.Allocator
	// BatchRows bounds the rows per chunk for formats read incrementally.
	BatchRows int64
}

// WriteOptions configures Write.
type WriteOptions struct {
	Allocator memory.Allocator
	// BatchRows bounds the rows per record batch or row group.
	BatchRows int64
	// ParquetCodec is the Parquet page codec (snappy, zstd, gzip, lz4, brotli, none).
	ParquetCodec string
}

func (o ReadOptions) allocator() memory.Allocator {
	if o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

func (o ReadOptions) batchRows() int64 {
	if o.BatchRows <= 0 {
		return 64 * 1024
	}
	return o.BatchRows
}

func (o WriteOptions) allocator() memory.Allocator {
	if o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

func (o WriteOptions) batchRows() int64 {
	if o.BatchRows <= 0 {
		return 64 * 1024
	}
	return o.BatchRows
}

// Read decodes a whole table from r. The caller must release it.
func Read(ctx context.Context, r io.Reader, f Format, opts ReadOptions) (arrow.Table, error) {
	var (
		tbl arrow.Table
		err error
	)
	switch f {
	case Parquet:
		tbl, err = readParquet(ctx, r, opts)
	case Arrow:
		tbl, err = readIPC(r, opts)
	case CSV:
		tbl, err = readCSV(r, opts)
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported table format %q", f)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("failed to read %s input", f))
	}
	return tbl, nil
}

// Write encodes tbl to w. It does not close w.
func Write(ctx context.Context, w io.Writer, tbl arrow.Table, f Format, opts WriteOptions) error {
	var err error
	switch f {
	case Parquet:
		err = writeParquet(w, tbl, opts)
	case Arrow:
		err = writeIPC(w, tbl, opts)
	case CSV:
		err = writeCSV(ctx, w, tbl, opts)
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unsupported table format %q", f)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("failed to write %s output", f))
	}
	return nil
}
