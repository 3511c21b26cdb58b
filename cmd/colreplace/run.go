package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajitpratap0/colreplace/internal/job"
	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/json"
	"github.com/ajitpratap0/colreplace/pkg/replace"
)

// paramFlags maps replace parameter flags onto parameter keys.
var paramFlags = map[string]string{
	"to-replace":   "to_replace",
	"replace-with": "replace_with",
	"regex":        "regex",
	"match-case":   "match_case",
	"match-entire": "match_entire",
	"colnames":     "colnames",
}

func (a *app) runCmd() *cobra.Command {
	var (
		input, output, paramsFile string
		jsonReport                bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rewrite columns of one table",
		Long: `Run one replace step from --input to --output.

Parameters come from --params (YAML or JSON, any version) and are
overridden by the individual parameter flags.

Example:
  colreplace run --input in.parquet --output out.parquet \
    --colnames name,city --to-replace '(\w+)@' --regex --replace-with '\1 at '`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := loadParams(paramsFile, cmd.Flags())
			if err != nil {
				return err
			}

			env, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			report, err := env.runner.Run(cmd.Context(), job.Spec{
				Input:  input,
				Output: output,
				Params: params,
			})
			if err != nil {
				return err
			}
			return printReport(cmd, report, jsonReport)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "", "Input table URI (local path, s3://, gs://)")
	flags.StringVarP(&output, "output", "o", "", "Output table URI (local path, s3://, gs://)")
	flags.StringVarP(&paramsFile, "params", "p", "", "Replace parameters file (YAML or JSON)")
	flags.BoolVar(&jsonReport, "json", false, "Print the job report as JSON")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	flags.String("to-replace", "", "Text or regular expression to search for")
	flags.String("replace-with", "", `Replacement; with --regex, \N inserts group N`)
	flags.Bool("regex", false, "Treat --to-replace as a regular expression")
	flags.Bool("match-case", false, "Match case-sensitively")
	flags.Bool("match-entire", false, "Only replace values matched in their entirety")
	flags.String("colnames", "", "Comma-separated columns to rewrite")
	addOutputFlags(flags)
	return cmd
}

func addOutputFlags(flags *pflag.FlagSet) {
	flags.String("format", "", "Output format (parquet, arrow, csv); inferred from the output URI by default")
	flags.String("compression", "", "Output compression (gzip, zstd, snappy, s2, lz4, none); inferred by default")
	flags.Int64("batch-rows", 0, "Rows per output record batch or row group")
}

// loadParams reads the parameters file, if any, and lays explicitly set
// parameter flags over it. The comma-joined --colnames is the legacy
// parameter form, so the result always passes through migration.
func loadParams(path string, flags *pflag.FlagSet) (replace.Params, error) {
	raw := map[string]interface{}{}
	if path != "" {
		if err := config.Load(path, &raw); err != nil {
			return replace.Params{}, err
		}
	}

	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := paramFlags[f.Name]
		if !ok || err != nil {
			return
		}
		switch f.Value.Type() {
		case "bool":
			var b bool
			b, err = flags.GetBool(f.Name)
			raw[key] = b
		default:
			raw[key] = f.Value.String()
		}
	})
	if err != nil {
		return replace.Params{}, err
	}
	return replace.DecodeParams(raw)
}

func printReport(cmd *cobra.Command, report *job.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return json.EncodeIndent(out, newReportView(report))
	}

	fmt.Fprintf(out, "%s -> %s: %d rows in %s\n", report.Input, report.Output, report.Rows, report.Duration)
	for _, col := range report.Columns {
		fmt.Fprintf(out, "  %-20s %-10s %s, %d of %d changed\n",
			col.Name, col.Stats.Representation, col.Type, col.Stats.Changed, col.Stats.Values)
	}
	return nil
}

// reportView is the JSON shape of a job report.
type reportView struct {
	ID         string       `json:"id"`
	Input      string       `json:"input"`
	Output     string       `json:"output"`
	Rows       int64        `json:"rows"`
	DurationMS int64        `json:"duration_ms"`
	Columns    []columnView `json:"columns"`
}

type columnView struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Representation string `json:"representation"`
	Values         int    `json:"values"`
	Changed        int    `json:"changed"`
	Reconciled     bool   `json:"reconciled"`
}

func newReportView(r *job.Report) reportView {
	view := reportView{
		ID:         r.ID,
		Input:      r.Input,
		Output:     r.Output,
		Rows:       r.Rows,
		DurationMS: r.Duration.Milliseconds(),
		Columns:    make([]columnView, 0, len(r.Columns)),
	}
	for _, c := range r.Columns {
		view.Columns = append(view.Columns, columnView{
			Name:           c.Name,
			Type:           strings.ToLower(c.Type.String()),
			Representation: c.Stats.Representation.String(),
			Values:         c.Stats.Values,
			Changed:        c.Stats.Changed,
			Reconciled:     c.Stats.Reconciled,
		})
	}
	return view
}
