package formats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

func readParquet(ctx context.Context, r io.Reader, opts ReadOptions) (arrow.Table, error) {
	// Parquet footers sit at the end of the file, so the reader needs random
	// access. Object store bodies are plain streams.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}

	fr, err := file.NewParquetReader(bytes.NewReader(data),
		file.WithReadProps(parquet.NewReaderProperties(opts.allocator())))
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer fr.Close()

	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{
		BatchSize: opts.batchRows(),
	}, opts.allocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	return arrowReader.ReadTable(ctx)
}

func writeParquet(w io.Writer, tbl arrow.Table, opts WriteOptions) error {
	codec, err := parquetCodec(opts.ParquetCodec)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(opts.allocator()),
	)
	// Storing the Arrow schema lets dictionary columns and exact types
	// survive the round trip.
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(opts.allocator()),
	)

	return pqarrow.WriteTable(tbl, w, opts.batchRows(), props, arrowProps)
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported Parquet codec %q", name)
	}
}
