package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/errors"
	"github.com/ajitpratap0/colreplace/pkg/testutil"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "in.parquet", want: Location{Scheme: Local, Key: "in.parquet"}},
		{uri: "/data/in.csv", want: Location{Scheme: Local, Key: "/data/in.csv"}},
		{uri: "file:///data/in.csv", want: Location{Scheme: Local, Key: "/data/in.csv"}},
		{uri: "s3://bucket/dir/in.parquet", want: Location{Scheme: S3, Bucket: "bucket", Key: "dir/in.parquet"}},
		{uri: "gs://bucket/out.arrow", want: Location{Scheme: GCS, Bucket: "bucket", Key: "out.arrow"}},
		{uri: "", wantErr: true},
		{uri: "s3://bucket", wantErr: true},
		{uri: "s3:///key", wantErr: true},
		{uri: "ftp://host/file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "s3://b/k/x.csv", Location{Scheme: S3, Bucket: "b", Key: "k/x.csv"}.String())
	assert.Equal(t, "/tmp/x.csv", Location{Scheme: Local, Key: "/tmp/x.csv"}.String())
}

func TestResolver_Local(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	r := NewResolver(config.NewConfig().Storage, testutil.TestLogger(t))
	defer r.Close()

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	w, err := r.Create(ctx, path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "a,b\n1,2\n")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "output appears only on Close")
	require.NoError(t, w.Close())

	rc, err := r.Open(ctx, "file://"+path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestResolver_LocalMissing(t *testing.T) {
	r := NewResolver(config.NewConfig().Storage, nil)
	_, err := r.Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

// fakeS3 serves path-style GetObject and PutObject from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(req.URL.Path, "/")
	switch req.Method {
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestResolver_S3(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	cfg := config.NewConfig().Storage
	cfg.S3.Endpoint = srv.URL
	cfg.S3.UsePathStyle = true
	cfg.S3.AccessKeyID = "test"
	cfg.S3.SecretAccessKey = "test"

	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	r := NewResolver(cfg, testutil.TestLogger(t))
	defer r.Close()

	w, err := r.Create(ctx, "s3://bucket/dir/out.csv")
	require.NoError(t, err)
	_, err = io.WriteString(w, "name\nfred\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fake.mu.Lock()
	assert.Equal(t, "name\nfred\n", string(fake.objects["bucket/dir/out.csv"]))
	fake.mu.Unlock()

	rc, err := r.Open(ctx, "s3://bucket/dir/out.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "name\nfred\n", string(data))

	_, err = r.Open(ctx, "s3://bucket/missing.csv")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
