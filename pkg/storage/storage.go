// Package storage opens table files on local disk, Amazon S3 and Google
// Cloud Storage by URI.
//
// Supported URIs:
//
//	/data/in.parquet, ./in.csv     local paths
//	file:///data/in.parquet        local paths
//	s3://bucket/key                Amazon S3 or an S3-compatible store
//	gs://bucket/object             Google Cloud Storage
//
// Cloud clients are created on first use, so jobs that only touch local
// files never load cloud credentials.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// Scheme identifies a storage backend.
type Scheme string

const (
	// Local is the local filesystem
	Local Scheme = "file"
	// S3 is Amazon S3
	S3 Scheme = "s3"
	// GCS is Google Cloud Storage
	GCS Scheme = "gs"
)

// Location is a parsed storage URI.
type Location struct {
	Scheme Scheme
	// Bucket is empty for local paths
	Bucket string
	// Key is the object key, or the filesystem path for local locations
	Key string
}

// String formats l back into a URI.
func (l Location) String() string {
	if l.Scheme == Local {
		return l.Key
	}
	return string(l.Scheme) + "://" + l.Bucket + "/" + l.Key
}

// ParseURI parses a storage URI. Strings without a scheme are local paths.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, errors.New(errors.ErrorTypeValidation, "empty storage URI")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: Local, Key: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid storage URI")
	}

	switch Scheme(u.Scheme) {
	case Local:
		return Location{Scheme: Local, Key: u.Path}, nil
	case S3, GCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, errors.Newf(errors.ErrorTypeValidation,
				"storage URI %q must name a bucket and an object", uri)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, errors.Newf(errors.ErrorTypeValidation,
			"unsupported storage scheme %q in %q", u.Scheme, uri)
	}
}

// Resolver opens and creates objects by URI. It is safe for concurrent use.
type Resolver struct {
	cfg    config.StorageConfig
	logger *zap.Logger

	mu       sync.Mutex
	s3Client *s3.Client
	uploader *manager.Uploader
	gcs      *storage.Client
}

// NewResolver creates a Resolver. A nil logger discards logs.
func NewResolver(cfg config.StorageConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Open opens uri for reading. The caller must close the reader.
func (r *Resolver) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case S3:
		return r.openS3(ctx, loc)
	case GCS:
		return r.openGCS(ctx, loc)
	default:
		return openLocal(loc.Key)
	}
}

// Create opens uri for writing, replacing any existing object. Data is
// only guaranteed to be stored once Close returns nil.
func (r *Resolver) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case S3:
		return r.createS3(ctx, loc)
	case GCS:
		return r.createGCS(ctx, loc)
	default:
		return createLocal(loc.Key)
	}
}

// Close releases cloud clients.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gcs != nil {
		err := r.gcs.Close()
		r.gcs = nil
		return err
	}
	return nil
}
