package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is the user's input file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input file").
			WithDetail("path", path)
	}
	return f, nil
}

// createLocal writes to a temporary file beside path and renames it into
// place on Close, so a failed job never leaves a truncated output.
func createLocal(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	return &atomicFile{File: tmp, path: path}, nil
}

type atomicFile struct {
	*os.File
	path string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file")
	}
	if err := os.Rename(f.File.Name(), f.path); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move output file into place").
			WithDetail("path", f.path)
	}
	return nil
}
