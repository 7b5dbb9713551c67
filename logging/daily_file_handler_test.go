package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyFileHandler_WritesFileAndStdout(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	handler, err := NewDailyFileHandler(dir, "kb", &stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	require.NoError(t, err)
	defer handler.Close()

	logger := slog.New(handler).With(slog.String("component", "test"))
	logger.Info("document ingested", slog.Int("chunks", 3))

	fileName := "kb-" + time.Now().Format("2006-01-02") + ".log"
	content, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)

	assert.Contains(t, string(content), "INFO  document ingested")
	assert.Contains(t, string(content), "component=test")
	assert.Contains(t, string(content), "chunks=3")
	assert.Contains(t, stdout.String(), "document ingested")
}

func TestDailyFileHandler_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	handler, err := NewDailyFileHandler(dir, "kb", &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defer handler.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	handler.file.now = func() time.Time { return day }
	logger := slog.New(handler)
	logger.Info("first")

	day = day.Add(2 * time.Minute)
	logger.Info("second")

	_, err = os.Stat(filepath.Join(dir, "kb-2026-03-01.log"))
	assert.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "kb-2026-03-02.log"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "second")
	assert.NotContains(t, string(second), "first")
}

func TestDailyFileHandler_RespectsLevel(t *testing.T) {
	dir := t.TempDir()
	handler, err := NewDailyFileHandler(dir, "kb", &bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	require.NoError(t, err)
	defer handler.Close()

	logger := slog.New(handler)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}
