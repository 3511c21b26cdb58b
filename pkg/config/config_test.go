package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("CR_SET", "value")
	t.Setenv("CR_EMPTY", "")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "set", in: "a: ${CR_SET}", want: "a: value"},
		{name: "unset", in: "a: ${CR_UNSET_VARIABLE}", want: "a: "},
		{name: "default on unset", in: "a: ${CR_UNSET_VARIABLE:-x}", want: "a: x"},
		{name: "default on empty", in: "a: ${CR_EMPTY:-x}", want: "a: x"},
		{name: "default ignored when set", in: "a: ${CR_SET:-x}", want: "a: value"},
		{name: "several", in: "${CR_SET}-${CR_SET}", want: "value-value"},
		{name: "unterminated", in: "a: ${CR_SET", want: "a: ${CR_SET"},
		{name: "dollar alone", in: `to_replace: "\$1"`, want: `to_replace: "\$1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.in))
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	in := map[string]interface{}{"colnames": []interface{}{"A", "B"}, "regex": true}
	require.NoError(t, Save(path, in))

	var out map[string]interface{}
	require.NoError(t, Load(path, &out))
	assert.Equal(t, in, out)
}

func TestLoad_Errors(t *testing.T) {
	var out map[string]interface{}
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), &out))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("a: [unclosed"), 0o600))
	assert.Error(t, Load(bad, &out))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "chatty" }, wantErr: "log.level"},
		{name: "sample rate", mutate: func(c *Config) { c.Observability.TraceSampleRate = 2 }, wantErr: "trace_sample_rate"},
		{name: "part size", mutate: func(c *Config) { c.Storage.S3.PartSizeMB = 1 }, wantErr: "part_size_mb"},
		{name: "batch rows", mutate: func(c *Config) { c.Output.BatchRows = 0 }, wantErr: "batch_rows"},
		{name: "half s3 key", mutate: func(c *Config) { c.Storage.S3.AccessKeyID = "AKIA" }, wantErr: "secret_access_key"},
		{name: "s3 key pair", mutate: func(c *Config) {
			c.Storage.S3.AccessKeyID = "AKIA"
			c.Storage.S3.SecretAccessKey = "secret"
		}},
		{name: "gcs token and file", mutate: func(c *Config) {
			c.Storage.GCS.AccessToken = "ya29"
			c.Storage.GCS.CredentialsFile = "sa.json"
		}, wantErr: "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromViper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colreplace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
locale: es
log:
  level: debug
output:
  format: csv
storage:
  s3:
    region: eu-west-1
`), 0o600))
	t.Setenv("COLREPLACE_OUTPUT_COMPRESSION", "zstd")
	t.Setenv("COLREPLACE_STORAGE_S3_REGION", "ap-south-1")

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "es", cfg.Locale)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "zstd", cfg.Output.Compression, "environment fills unset keys")
	assert.Equal(t, "ap-south-1", cfg.Storage.S3.Region, "environment overrides the file")
	assert.Equal(t, "snappy", cfg.Output.ParquetCodec, "defaults survive")
	assert.Equal(t, int64(16), cfg.Storage.S3.PartSizeMB)
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
