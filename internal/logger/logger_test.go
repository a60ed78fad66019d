package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	flush := Init("reelstore-test", true, "")
	require.NotNil(t, flush)
	flush()

	require.NotNil(t, Log)
	assert.Same(t, Log, slog.Default())
	assert.True(t, Log.Enabled(context.Background(), slog.LevelDebug))

	Init("reelstore-test", false, "")
	assert.False(t, Log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, Log.Enabled(context.Background(), slog.LevelInfo))
}
