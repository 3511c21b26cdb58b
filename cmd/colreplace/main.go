// Command colreplace runs find-and-replace steps over table columns.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/colreplace/internal/job"
	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/i18n"
	"github.com/ajitpratap0/colreplace/pkg/logger"
	"github.com/ajitpratap0/colreplace/pkg/metrics"
	"github.com/ajitpratap0/colreplace/pkg/observability"
	"github.com/ajitpratap0/colreplace/pkg/replace"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := &app{}
	root := app.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var renderErr replace.RenderError
	if errors.As(err, &renderErr) {
		fmt.Fprintln(stderr, i18n.Localize(renderErr.Message, app.locale()))
	} else {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"locale":       "locale",
	"log-level":    "log.level",
	"metrics-file": "observability.metrics_file",
	"trace":        "observability.tracing",
	"format":       "output.format",
	"compression":  "output.compression",
	"batch-rows":   "output.batch_rows",
}

// app carries state shared by subcommands.
type app struct {
	configFile string
	localeFlag string
	cfg        *config.Config
}

// locale picks the message language, even when the config failed to load.
func (a *app) locale() string {
	switch {
	case a.cfg != nil:
		return a.cfg.Locale
	case a.localeFlag != "":
		return a.localeFlag
	default:
		return os.Getenv(config.EnvPrefix + "_LOCALE")
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "colreplace",
		Short: "Find and replace text in table columns",
		Long: `colreplace rewrites selected columns of Parquet, Arrow and CSV tables with a
literal or regular expression search, keeping dictionary encoding and
restoring numeric and temporal column types where the result still parses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML runtime configuration file")
	flags.StringVar(&a.localeFlag, "locale", "", "Language of user-facing messages, e.g. es (default en)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file when the command ends")
	flags.Bool("trace", false, "Export trace spans to stderr")

	root.AddCommand(
		a.runCmd(),
		a.batchCmd(),
		a.migrateCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "colreplace v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig layers the config file, environment and explicitly set flags
// over the defaults.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(a.configFile)
	if err != nil {
		return nil, err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// runtimeEnv is everything a job command needs, built from the config.
type runtimeEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	runner   *job.Runner
	shutdown observability.ShutdownFunc
}

func (a *app) setup(cmd *cobra.Command) (*runtimeEnv, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("component", "colreplace-cli"))

	env := &runtimeEnv{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	if cfg.Observability.Tracing {
		env.shutdown, err = observability.InitTracing(cmd.Context(), observability.TracingConfig{
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: version,
			SamplingRate:   cfg.Observability.TraceSampleRate,
			Output:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return nil, err
		}
	}

	env.runner = job.NewRunner(cfg, log, job.WithMetrics(metrics.NewCollector(env.registry)))
	return env, nil
}

// close flushes spans, metrics and logs. Failures are logged, not returned,
// so they never hide the job's own error.
func (e *runtimeEnv) close(ctx context.Context) {
	if err := e.runner.Close(); err != nil {
		e.logger.Warn("failed to close storage clients", zap.Error(err))
	}
	if e.shutdown != nil {
		if err := e.shutdown(ctx); err != nil {
			e.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if path := e.cfg.Observability.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(e.registry, path); err != nil {
			e.logger.Warn("failed to write metrics file", zap.String("path", path), zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}
