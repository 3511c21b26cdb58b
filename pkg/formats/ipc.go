package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// ipcFileMagic opens every Arrow IPC file (but not stream).
var ipcFileMagic = []byte("ARROW1")

func readIPC(r io.Reader, opts ReadOptions) (arrow.Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(ipcFileMagic))
	if err == nil && bytes.Equal(head, ipcFileMagic) {
		return readIPCFile(br, opts)
	}
	return readIPCStream(br, opts)
}

func readIPCFile(r io.Reader, opts ReadOptions) (arrow.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Arrow file: %w", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(opts.allocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	defer fr.Close()

	records := make([]arrow.Record, 0, fr.NumRecords())
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		rec.Retain()
		records = append(records, rec)
	}

	return array.NewTableFromRecords(fr.Schema(), records), nil
}

func readIPCStream(r io.Reader, opts ReadOptions) (arrow.Table, error) {
	sr, err := ipc.NewReader(r, ipc.WithAllocator(opts.allocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow stream reader: %w", err)
	}
	defer sr.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for sr.Next() {
		rec := sr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := sr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Arrow stream: %w", err)
	}

	return array.NewTableFromRecords(sr.Schema(), records), nil
}

// writeIPC writes the stream format. Unlike the file format it allows a
// dictionary to be replaced between batches, which rewritten dictionary
// columns need.
func writeIPC(w io.Writer, tbl arrow.Table, opts WriteOptions) error {
	iw := ipc.NewWriter(w, ipc.WithSchema(tbl.Schema()), ipc.WithAllocator(opts.allocator()))

	tr := array.NewTableReader(tbl, opts.batchRows())
	defer tr.Release()
	for tr.Next() {
		if err := iw.Write(tr.Record()); err != nil {
			iw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}
	if err := tr.Err(); err != nil {
		iw.Close()
		return err
	}
	return iw.Close()
}
