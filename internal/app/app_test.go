package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/reelstore/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName:            "reelstore",
		AppEnv:             "development",
		DBDriver:           "sqlite",
		DBConnection:       filepath.Join(dir, "test.db"),
		JWTSecret:          "test-secret-test-secret-test-secret",
		JWTExpiry:          time.Hour,
		UploadDir:          filepath.Join(dir, "uploads"),
		DerivedDir:         filepath.Join(dir, "uploads", "derived"),
		MaxUploadSize:      1 << 20,
		ConverterAddr:      "localhost:1",
		ConverterTimeout:   time.Second,
		ConverterChunkSize: 1024,
	}
}

func TestNewWiresServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.ConverterConn)
	assert.NotNil(t, a.AuthService)
	assert.NotNil(t, a.UserService)
	assert.NotNil(t, a.FilmService)
	assert.NotNil(t, a.ImageService)
}

func TestCloseReleasesResources(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.Close())

	select {
	case <-a.Done():
	default:
		t.Fatal("done channel still open after Close")
	}
	assert.NotPanics(t, func() { a.Close() })
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "oracle"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
