package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationSuite is a base for suites that run whole jobs against files.
// Embed it and call suite.Run; every test in the suite shares one temp
// directory and a context bounded by the suite timeout.
type IntegrationSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
	start   time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.start = time.Now()

	dir, err := os.MkdirTemp("", "colreplace-test-*")
	require.NoError(s.T(), err)
	s.tempDir = dir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("integration suite finished in %v", time.Since(s.start))
}

// Context returns the suite context.
func (s *IntegrationSuite) Context() context.Context {
	return s.ctx
}

// Path joins name onto the suite's temp directory.
func (s *IntegrationSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// CreateTempFile writes content to name inside the suite's temp directory
// and returns its path.
func (s *IntegrationSuite) CreateTempFile(name string, content []byte) string {
	path := s.Path(name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}

// IntegrationTest skips t in -short mode.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
