package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/colreplace/pkg/compression"
	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/formats"
	"github.com/ajitpratap0/colreplace/pkg/i18n"
	"github.com/ajitpratap0/colreplace/pkg/metrics"
	"github.com/ajitpratap0/colreplace/pkg/replace"
	"github.com/ajitpratap0/colreplace/pkg/testutil"
)

func writeInput(t *testing.T, path string) {
	t.Helper()
	tbl := testutil.Table(
		testutil.Col("name", testutil.Strings(memory.DefaultAllocator, "fred", "frederick", nil)),
		testutil.Col("team", testutil.Dictionary(memory.DefaultAllocator, "red", "blue", "red")),
		testutil.Col("score", testutil.Int64s(memory.DefaultAllocator, 1234, 20, nil)),
	)
	defer tbl.Release()

	format, algo, err := formats.Detect(path)
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, algo, compression.Default)
	require.NoError(t, err)
	require.NoError(t, formats.Write(context.Background(), w, tbl, format, formats.WriteOptions{}))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func readOutput(t *testing.T, path string, format formats.Format, algo compression.Algorithm) map[string][]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, algo)
	require.NoError(t, err)
	defer r.Close()

	tbl, err := formats.Read(context.Background(), r, format, formats.ReadOptions{})
	require.NoError(t, err)
	defer tbl.Release()

	out := make(map[string][]interface{})
	for i := 0; i < int(tbl.NumCols()); i++ {
		out[tbl.Column(i).Name()] = testutil.Values(tbl.Column(i))
	}
	return out
}

func newRunner(t *testing.T, cfg *config.Config, opts ...Option) *Runner {
	t.Helper()
	r := NewRunner(cfg, testutil.TestLogger(t), opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		format formats.Format
		algo   compression.Algorithm
	}{
		{name: "parquet", input: "in.parquet", output: "out.parquet", format: formats.Parquet, algo: compression.None},
		{name: "arrow to csv", input: "in.arrow", output: "out.csv", format: formats.CSV, algo: compression.None},
		{name: "compressed", input: "in.csv.gz", output: "out/out.arrow.zst", format: formats.Arrow, algo: compression.Zstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, tt.input)
			out := filepath.Join(dir, tt.output)
			writeInput(t, in)

			ctx, cancel := testutil.TestContext(t)
			defer cancel()
			report, err := newRunner(t, config.NewConfig(), WithAllocator(memory.NewGoAllocator())).Run(ctx, Spec{
				Input:  in,
				Output: out,
				Params: replace.Params{
					ToReplace:   "fred",
					ReplaceWith: "Fred",
					Colnames:    []string{"name", "team"},
				},
			})
			require.NoError(t, err)

			assert.NotEmpty(t, report.ID)
			assert.Equal(t, int64(3), report.Rows)
			require.Len(t, report.Columns, 2)
			assert.Equal(t, 2, report.Columns[0].Stats.Changed)

			got := readOutput(t, out, tt.format, tt.algo)
			assert.Equal(t, []interface{}{"Fred", "Frederick", nil}, got["name"])
			assert.Equal(t, []interface{}{"red", "blue", "red"}, got["team"])
			assert.Equal(t, []interface{}{int64(1234), int64(20), nil}, got["score"])
		})
	}
}

func TestRunner_RenderErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.parquet")
	out := filepath.Join(dir, "out.parquet")
	writeInput(t, in)

	_, err := newRunner(t, config.NewConfig()).Run(context.Background(), Spec{
		Input:  in,
		Output: out,
		Params: replace.Params{ToReplace: "x", Colnames: []string{"nope"}},
	})
	require.Error(t, err)

	var renderErr replace.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, i18n.ColumnNotInTable, renderErr.Message.ID)
	assert.Equal(t, "No existe ninguna columna llamada «nope».", i18n.Localize(renderErr.Message, "es"))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_ConfiguredOutputEncoding(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.parquet")
	out := filepath.Join(dir, "result.data")
	writeInput(t, in)

	cfg := config.NewConfig()
	cfg.Output.Format = "csv"
	cfg.Output.Compression = "snappy"

	_, err := newRunner(t, cfg).Run(context.Background(), Spec{
		Input:  in,
		Output: out,
		Params: replace.Params{ToReplace: "3", Colnames: []string{"score"}},
	})
	require.NoError(t, err)

	got := readOutput(t, out, formats.CSV, compression.Snappy)
	assert.Equal(t, []interface{}{int64(124), int64(20), nil}, got["score"])
}

func TestRunner_Errors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.parquet")
	writeInput(t, in)
	params := replace.Params{ToReplace: "x", Colnames: []string{"name"}}

	tests := []struct {
		name   string
		spec   Spec
		mutate func(*config.Config)
	}{
		{name: "missing input", spec: Spec{Input: filepath.Join(dir, "missing.parquet"), Output: filepath.Join(dir, "o.parquet")}},
		{name: "unknown input format", spec: Spec{Input: filepath.Join(dir, "in.txt"), Output: filepath.Join(dir, "o.parquet")}},
		{name: "unknown output format", spec: Spec{Input: in, Output: filepath.Join(dir, "o.txt")}},
		{
			name:   "bad compression",
			spec:   Spec{Input: in, Output: filepath.Join(dir, "o.parquet")},
			mutate: func(c *config.Config) { c.Output.Compression = "rar" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			tt.spec.Params = params
			_, err := newRunner(t, cfg).Run(context.Background(), tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestRunner_Cancelled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.parquet")
	writeInput(t, in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(t, config.NewConfig()).Run(ctx, Spec{
		Input:  in,
		Output: filepath.Join(dir, "out.parquet"),
		Params: replace.Params{ToReplace: "x", Colnames: []string{"name"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunBatch(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	runner := newRunner(t, config.NewConfig(), WithMetrics(collector))

	var specs []Spec
	for _, name := range []string{"a", "b", "c"} {
		in := filepath.Join(dir, name+".parquet")
		writeInput(t, in)
		specs = append(specs, Spec{
			ID:     name,
			Input:  in,
			Output: filepath.Join(dir, name+"-out.csv"),
			Params: replace.Params{ToReplace: "red", ReplaceWith: "green", Colnames: []string{"team"}},
		})
	}
	specs = append(specs, Spec{
		ID:     "bad",
		Input:  filepath.Join(dir, "missing.parquet"),
		Output: filepath.Join(dir, "bad-out.csv"),
		Params: specs[0].Params,
	})

	reports, err := runner.RunBatch(context.Background(), specs, 2)
	require.Error(t, err)
	require.Len(t, reports, 4)
	for i := 0; i < 3; i++ {
		require.NotNil(t, reports[i])
		assert.Equal(t, specs[i].ID, reports[i].ID)
		got := readOutput(t, specs[i].Output, formats.CSV, compression.None)
		assert.Equal(t, []interface{}{"green", "blue", "green"}, got["team"])
	}
	assert.Nil(t, reports[3])

	expected := `
# HELP colreplace_job_rows_total Total number of rows written by jobs
# TYPE colreplace_job_rows_total counter
colreplace_job_rows_total 9
# HELP colreplace_renders_total Total number of render calls by outcome
# TYPE colreplace_renders_total counter
colreplace_renders_total{outcome="ok"} 3
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"colreplace_job_rows_total", "colreplace_renders_total"))
}
