package storage

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

func (r *Resolver) gcsClient(ctx context.Context) (*storage.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gcs != nil {
		return r.gcs, nil
	}

	var opts []option.ClientOption
	switch {
	case r.cfg.GCS.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(r.cfg.GCS.CredentialsFile))
	case r.cfg.GCS.AccessToken != "":
		opts = append(opts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.cfg.GCS.AccessToken}),
		))
	}
	if r.cfg.GCS.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.cfg.GCS.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	r.gcs = client

	r.logger.Debug("GCS client initialized", zap.Bool("credentials_file", r.cfg.GCS.CredentialsFile != ""))
	return client, nil
}

func (r *Resolver) openGCS(ctx context.Context, loc Location) (io.ReadCloser, error) {
	client, err := r.gcsClient(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open GCS object").
			WithDetail("uri", loc.String())
	}
	return rc, nil
}

func (r *Resolver) createGCS(ctx context.Context, loc Location) (io.WriteCloser, error) {
	client, err := r.gcsClient(ctx)
	if err != nil {
		return nil, err
	}
	return &gcsWriter{w: client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx), uri: loc.String()}, nil
}

// gcsWriter attaches the object URI to upload failures, which surface on
// Close.
type gcsWriter struct {
	w   *storage.Writer
	uri string
}

func (g *gcsWriter) Write(p []byte) (int, error) {
	return g.w.Write(p)
}

func (g *gcsWriter) Close() error {
	if err := g.w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload GCS object").
			WithDetail("uri", g.uri)
	}
	return nil
}
