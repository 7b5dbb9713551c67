package cmd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/serisow/lesocle-kb/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServe_ReturnsOnCancel(t *testing.T) {
	embeddings := fixedEmbeddingServer(t)
	defer embeddings.Close()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())

	cfg = testConfig(t, embeddings.URL)
	cfg.Environment = "development"
	cfg.HTTPPort = port
	cfg.RequestTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/knowledge_base/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
	}
}

func TestWriteTimeout(t *testing.T) {
	c := config.Config{RequestTimeout: time.Minute, IngestTimeout: 10 * time.Minute}
	assert.Equal(t, 10*time.Minute+30*time.Second, writeTimeout(c))

	c.IngestTimeout = time.Minute
	assert.Equal(t, 2*time.Minute+30*time.Second, writeTimeout(c))
}
