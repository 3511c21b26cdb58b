package formats

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/compute"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// readCSV infers column types from the data. Empty fields are nulls.
func readCSV(r io.Reader, opts ReadOptions) (arrow.Table, error) {
	cr := csv.NewInferringReader(r,
		csv.WithHeader(true),
		csv.WithAllocator(opts.allocator()),
		csv.WithChunk(int(opts.batchRows())),
		csv.WithNullReader(true, ""),
	)
	defer cr.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for cr.Next() {
		rec := cr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := cr.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	schema := cr.Schema()
	if schema == nil {
		// Input without even a header row.
		schema = arrow.NewSchema(nil, nil)
	}
	return array.NewTableFromRecords(schema, records), nil
}

// writeCSV writes a header row then every batch. CSV has no dictionary
// encoding, so dictionary columns are written as their values.
func writeCSV(ctx context.Context, w io.Writer, tbl arrow.Table, opts WriteOptions) error {
	ctx = compute.WithAllocator(ctx, opts.allocator())
	schema := decodedSchema(tbl.Schema())

	cw := csv.NewWriter(w, schema, csv.WithHeader(true), csv.WithNullWriter(""))

	tr := array.NewTableReader(tbl, opts.batchRows())
	defer tr.Release()
	for tr.Next() {
		rec, err := decodeDictionaries(ctx, schema, tr.Record())
		if err != nil {
			return err
		}
		err = cw.Write(rec)
		rec.Release()
		if err != nil {
			return fmt.Errorf("failed to write CSV batch: %w", err)
		}
	}
	if err := tr.Err(); err != nil {
		return err
	}

	// A table without rows still gets its header.
	if tbl.NumRows() == 0 {
		empty := emptyRecord(opts.allocator(), schema)
		defer empty.Release()
		if err := cw.Write(empty); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	if err := cw.Flush(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return nil
}

func decodedSchema(schema *arrow.Schema) *arrow.Schema {
	fields := make([]arrow.Field, schema.NumFields())
	for i, f := range schema.Fields() {
		if dt, ok := f.Type.(*arrow.DictionaryType); ok {
			f.Type = dt.ValueType
		}
		fields[i] = f
	}
	md := schema.Metadata()
	return arrow.NewSchema(fields, &md)
}

func decodeDictionaries(ctx context.Context, schema *arrow.Schema, rec arrow.Record) (arrow.Record, error) {
	cols := make([]arrow.Array, rec.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, col := range rec.Columns() {
		dict, ok := col.(*array.Dictionary)
		if !ok {
			col.Retain()
			cols[i] = col
			continue
		}
		values, err := compute.TakeArray(ctx, dict.Dictionary(), dict.Indices())
		if err != nil {
			return nil, fmt.Errorf("failed to decode dictionary column %q: %w", rec.ColumnName(i), err)
		}
		cols[i] = values
	}

	return array.NewRecord(schema, cols, rec.NumRows()), nil
}

func emptyRecord(mem memory.Allocator, schema *arrow.Schema) arrow.Record {
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = array.MakeArrayOfNull(mem, f.Type, 0)
		defer cols[i].Release()
	}
	return array.NewRecord(schema, cols, 0)
}
