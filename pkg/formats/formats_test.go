package formats

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/colreplace/pkg/compression"
	"github.com/ajitpratap0/colreplace/pkg/errors"
	"github.com/ajitpratap0/colreplace/pkg/testutil"
)

func sampleTable() arrow.Table {
	mem := memory.DefaultAllocator
	return testutil.Table(
		testutil.Col("name", testutil.Strings(mem, "fred", nil, "alice")),
		testutil.Col("team", testutil.Dictionary(mem, "red", "blue", "red")),
		testutil.Col("score", testutil.Int64s(mem, 10, 20, nil)),
	)
}

func roundTrip(t *testing.T, f Format, tbl arrow.Table) arrow.Table {
	t.Helper()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, Write(ctx, &buf, tbl, f, WriteOptions{BatchRows: 2}))

	out, err := Read(ctx, &buf, f, ReadOptions{})
	require.NoError(t, err)
	t.Cleanup(out.Release)
	return out
}

func TestRoundTrip_Parquet(t *testing.T) {
	tbl := sampleTable()
	defer tbl.Release()

	out := roundTrip(t, Parquet, tbl)
	require.Equal(t, int64(3), out.NumRows())
	for i := 0; i < int(tbl.NumCols()); i++ {
		assert.Equal(t, testutil.Values(tbl.Column(i)), testutil.Values(out.Column(i)), tbl.Column(i).Name())
	}
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, out.Schema().Field(2).Type))
}

func TestRoundTrip_Arrow(t *testing.T) {
	tbl := sampleTable()
	defer tbl.Release()

	out := roundTrip(t, Arrow, tbl)
	assert.True(t, tbl.Schema().Equal(out.Schema()))
	for i := 0; i < int(tbl.NumCols()); i++ {
		assert.Equal(t, testutil.Values(tbl.Column(i)), testutil.Values(out.Column(i)))
	}
	assert.Len(t, out.Column(0).Data().Chunks(), 2, "one chunk per written batch")
}

func TestRoundTrip_CSV(t *testing.T) {
	tbl := sampleTable()
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, tbl, CSV, WriteOptions{}))
	assert.Equal(t, "name,team,score\nfred,red,10\n,blue,20\nalice,red,\n", buf.String())

	out, err := Read(context.Background(), &buf, CSV, ReadOptions{})
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []interface{}{"fred", nil, "alice"}, testutil.Values(out.Column(0)))
	assert.Equal(t, []interface{}{"red", "blue", "red"}, testutil.Values(out.Column(1)))
	assert.Equal(t, []interface{}{int64(10), int64(20), nil}, testutil.Values(out.Column(2)))
}

func TestWrite_CSVHeaderOnly(t *testing.T) {
	tbl := testutil.Table(testutil.Col("a", testutil.Strings(memory.DefaultAllocator)))
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, tbl, CSV, WriteOptions{}))
	assert.Equal(t, "a\n", buf.String())
}

func TestRead_ArrowFileFormat(t *testing.T) {
	tbl := testutil.Table(testutil.Col("a", testutil.Strings(memory.DefaultAllocator, "x", "y")))
	defer tbl.Release()

	var buf bytes.Buffer
	fw, err := ipc.NewFileWriter(&buf, ipc.WithSchema(tbl.Schema()))
	require.NoError(t, err)
	tr := array.NewTableReader(tbl, -1)
	for tr.Next() {
		require.NoError(t, fw.Write(tr.Record()))
	}
	tr.Release()
	require.NoError(t, fw.Close())

	out, err := Read(context.Background(), &buf, Arrow, ReadOptions{})
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []interface{}{"x", "y"}, testutil.Values(out.Column(0)))
}

func TestRead_Corrupt(t *testing.T) {
	for _, f := range []Format{Parquet, Arrow} {
		t.Run(string(f), func(t *testing.T) {
			_, err := Read(context.Background(), strings.NewReader("definitely not a table"), f, ReadOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		uri      string
		format   Format
		algo     compression.Algorithm
		wantFail bool
	}{
		{uri: "in.parquet", format: Parquet, algo: compression.None},
		{uri: "s3://b/k/in.csv.gz", format: CSV, algo: compression.Gzip},
		{uri: "gs://b/out.arrow.zst", format: Arrow, algo: compression.Zstd},
		{uri: "/tmp/t.feather", format: Arrow, algo: compression.None},
		{uri: "/tmp/t.txt", wantFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			f, algo, err := Detect(tt.uri)
			if tt.wantFail {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, f)
			assert.Equal(t, tt.algo, algo)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("IPC")
	require.NoError(t, err)
	assert.Equal(t, Arrow, f)
	_, err = ParseFormat("orc")
	assert.Error(t, err)
}

func TestParquetCodec(t *testing.T) {
	for _, name := range []string{"", "snappy", "zstd", "gzip", "lz4", "brotli", "none"} {
		_, err := parquetCodec(name)
		assert.NoError(t, err, name)
	}
	_, err := parquetCodec("lzma")
	assert.Error(t, err)
}
