package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/colreplace/pkg/logger"
)

// EnvPrefix prefixes every environment variable read by Viper, so
// output.format is COLREPLACE_OUTPUT_FORMAT.
const EnvPrefix = "COLREPLACE"

// Config is the runtime configuration of a colreplace job. Replace
// parameters themselves are not part of it; they travel with each job.
type Config struct {
	// Locale selects the language of user-facing messages (BCP 47).
	Locale string `yaml:"locale" json:"locale" mapstructure:"locale"`

	// Log configures the process logger
	Log logger.Config `yaml:"log" json:"log" mapstructure:"log"`

	// Observability settings for metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Storage holds object store client settings
	Storage StorageConfig `yaml:"storage" json:"storage" mapstructure:"storage"`

	// Output controls how result tables are encoded
	Output OutputConfig `yaml:"output" json:"output" mapstructure:"output"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// MetricsFile, when set, receives the job metrics in Prometheus text format
	MetricsFile string `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
	// Tracing exports spans to stdout
	Tracing bool `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	// ServiceName is the service.name resource attribute on spans
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// TraceSampleRate is the fraction of traces kept, 0 to 1
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate" mapstructure:"trace_sample_rate"`
}

// StorageConfig contains object store settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3" json:"s3" mapstructure:"s3"`
	GCS GCSConfig `yaml:"gcs" json:"gcs" mapstructure:"gcs"`
}

// S3Config configures the S3 client.
type S3Config struct {
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the service endpoint, for S3-compatible stores
	Endpoint     string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style" mapstructure:"use_path_style"`
	// AccessKeyID and SecretAccessKey set static credentials, typically for
	// S3-compatible stores. Empty means the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-" mapstructure:"secret_access_key"`
	// PartSizeMB is the multipart upload part size
	PartSizeMB int64 `yaml:"part_size_mb" json:"part_size_mb" mapstructure:"part_size_mb"`
}

// GCSConfig configures the Cloud Storage client.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// AccessToken is a short-lived OAuth2 token used instead of a credentials file
	AccessToken string `yaml:"access_token" json:"-" mapstructure:"access_token"`
	Endpoint    string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
}

// OutputConfig controls output encoding.
type OutputConfig struct {
	// Format overrides detection from the output extension (parquet, arrow, csv)
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Compression overrides detection from the output suffix (gzip, zstd, snappy, s2, lz4, none)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// ParquetCodec is the page codec for Parquet output
	ParquetCodec string `yaml:"parquet_codec" json:"parquet_codec" mapstructure:"parquet_codec"`
	// BatchRows is the maximum number of rows per written record batch or row group
	BatchRows int64 `yaml:"batch_rows" json:"batch_rows" mapstructure:"batch_rows"`
}

// NewConfig creates a Config with defaults suitable for a batch job.
func NewConfig() *Config {
	return &Config{
		Locale: "en",
		Log:    logger.DefaultConfig(),
		Observability: ObservabilityConfig{
			ServiceName:     "colreplace",
			TraceSampleRate: 1.0,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:     "us-east-1",
				PartSizeMB: 16,
			},
		},
		Output: OutputConfig{
			ParquetCodec: "snappy",
			BatchRows:    64 * 1024,
		},
	}
}

// Validate checks value ranges. Format and codec names are checked where
// they are used.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Observability.TraceSampleRate < 0 || c.Observability.TraceSampleRate > 1 {
		return fmt.Errorf("observability.trace_sample_rate must be between 0 and 1")
	}
	if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
		return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
	}
	if c.Storage.GCS.AccessToken != "" && c.Storage.GCS.CredentialsFile != "" {
		return fmt.Errorf("storage.gcs.access_token and storage.gcs.credentials_file are mutually exclusive")
	}
	if c.Storage.S3.PartSizeMB < 5 {
		return fmt.Errorf("storage.s3.part_size_mb must be at least 5")
	}
	if c.Output.BatchRows <= 0 {
		return fmt.Errorf("output.batch_rows must be positive")
	}
	return nil
}

// NewViper returns a Viper instance preloaded with the defaults of
// NewConfig, reading COLREPLACE_* environment variables and, when file is
// not empty, that config file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := NewConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal, which only consults keys Viper already knows.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("locale", c.Locale)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.development", c.Log.Development)
	v.SetDefault("log.encoding", c.Log.Encoding)
	v.SetDefault("log.output_paths", c.Log.OutputPaths)
	v.SetDefault("observability.metrics_file", c.Observability.MetricsFile)
	v.SetDefault("observability.tracing", c.Observability.Tracing)
	v.SetDefault("observability.service_name", c.Observability.ServiceName)
	v.SetDefault("observability.trace_sample_rate", c.Observability.TraceSampleRate)
	v.SetDefault("storage.s3.region", c.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", c.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.use_path_style", c.Storage.S3.UsePathStyle)
	v.SetDefault("storage.s3.part_size_mb", c.Storage.S3.PartSizeMB)
	v.SetDefault("storage.s3.access_key_id", c.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", c.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.gcs.credentials_file", c.Storage.GCS.CredentialsFile)
	v.SetDefault("storage.gcs.access_token", c.Storage.GCS.AccessToken)
	v.SetDefault("storage.gcs.endpoint", c.Storage.GCS.Endpoint)
	v.SetDefault("output.format", c.Output.Format)
	v.SetDefault("output.compression", c.Output.Compression)
	v.SetDefault("output.parquet_codec", c.Output.ParquetCodec)
	v.SetDefault("output.batch_rows", c.Output.BatchRows)
}
