package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/colreplace/internal/job"
	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/json"
	"github.com/ajitpratap0/colreplace/pkg/replace"
)

// manifest lists the jobs of a batch run.
//
//	concurrency: 4
//	jobs:
//	  - id: customers
//	    input: s3://raw/customers.parquet
//	    output: s3://clean/customers.parquet
//	    params:
//	      to_replace: "N/A"
//	      match_entire: true
//	      colnames: [phone, email]
type manifest struct {
	Concurrency int           `yaml:"concurrency"`
	Jobs        []manifestJob `yaml:"jobs"`
}

type manifestJob struct {
	ID     string                 `yaml:"id"`
	Input  string                 `yaml:"input"`
	Output string                 `yaml:"output"`
	Params map[string]interface{} `yaml:"params"`
}

func loadManifest(path string) (*manifest, []job.Spec, error) {
	var m manifest
	if err := config.Load(path, &m); err != nil {
		return nil, nil, err
	}
	if len(m.Jobs) == 0 {
		return nil, nil, fmt.Errorf("manifest %s lists no jobs", path)
	}

	specs := make([]job.Spec, 0, len(m.Jobs))
	for i, j := range m.Jobs {
		if j.Input == "" || j.Output == "" {
			return nil, nil, fmt.Errorf("manifest job %d: input and output are required", i)
		}
		params, err := replace.DecodeParams(j.Params)
		if err != nil {
			return nil, nil, fmt.Errorf("manifest job %d: %w", i, err)
		}
		specs = append(specs, job.Spec{ID: j.ID, Input: j.Input, Output: j.Output, Params: params})
	}
	return &m, specs, nil
}

func (a *app) batchCmd() *cobra.Command {
	var (
		concurrency int
		jsonReport  bool
	)

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Run every job listed in a YAML manifest",
		Long: `Run the replace jobs listed in a YAML manifest, several at a time.

Every job runs even if another fails. The command fails if any job failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, specs, err := loadManifest(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") || m.Concurrency <= 0 {
				m.Concurrency = concurrency
			}

			env, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			reports, runErr := env.runner.RunBatch(cmd.Context(), specs, m.Concurrency)

			var enc *json.StreamingEncoder
			if jsonReport {
				enc = json.NewStreamingEncoder(cmd.OutOrStdout(), "  ")
			}
			for i, report := range reports {
				switch {
				case report == nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: failed\n", specs[i].Input)
				case enc != nil:
					if err := enc.Encode(newReportView(report)); err != nil {
						return err
					}
				default:
					if err := printReport(cmd, report, false); err != nil {
						return err
					}
				}
			}
			if enc != nil {
				if err := enc.Close(); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Maximum jobs in flight")
	cmd.Flags().BoolVar(&jsonReport, "json", false, "Print job reports as JSON")
	addOutputFlags(cmd.Flags())
	return cmd
}
