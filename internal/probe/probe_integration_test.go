//go:build integration

package probe_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solutionqa/solqa/internal/probe"
)

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `
			<html>
			<head><title>probe target</title></head>
			<body>
				<h1>Hello World</h1>
				<img src="/logo.png" alt="logo">
			</body>
			</html>
		`)
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not really a png"))
	})
	mux.HandleFunc("/noisy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `
			<html>
			<body>
				<script>
					console.error("checkout total is NaN");
					console.warn("deprecated API call");
					console.log("just info");
				</script>
			</body>
			</html>
		`)
	})
	return httptest.NewServer(mux)
}

func newTestManager(t *testing.T) *probe.Manager {
	t.Helper()
	cfg := probe.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000

	m := probe.NewManager(cfg)
	t.Cleanup(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	})
	return m
}

func TestMeasureLoadTime_Integration(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	metrics, err := m.MeasureLoadTime(ctx, ts.URL)
	require.NoError(t, err, "MeasureLoadTime failed")

	require.Equal(t, ts.URL, metrics.URL)
	require.Greater(t, metrics.LoadEventMs, 0.0, "load event timing missing")
	require.GreaterOrEqual(t, metrics.LoadEventMs, metrics.FirstByteMs)
	// page plus image
	require.GreaterOrEqual(t, metrics.Requests, 2)
}

func TestConsoleErrors_Integration(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	messages, err := m.ConsoleErrors(ctx, ts.URL+"/noisy")
	require.NoError(t, err, "ConsoleErrors failed")

	var foundError, foundWarning, foundInfo bool
	for _, msg := range messages {
		if strings.Contains(msg.Text, "checkout total is NaN") {
			foundError = true
			require.Equal(t, "error", msg.Type)
		}
		if strings.Contains(msg.Text, "deprecated API call") {
			foundWarning = true
		}
		if strings.Contains(msg.Text, "just info") {
			foundInfo = true
		}
	}
	require.True(t, foundError, "console.error not captured: %v", messages)
	require.True(t, foundWarning, "console.warn not captured: %v", messages)
	require.False(t, foundInfo, "console.log should be filtered out")
}

func TestScreenshot_Integration(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	shotDir := t.TempDir()
	cfg := probe.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000
	cfg.ScreenshotDir = shotDir

	m := probe.NewManager(cfg)
	defer func() { _ = m.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	path, err := m.Screenshot(ctx, ts.URL, "home.png")
	require.NoError(t, err, "Screenshot failed")
	require.Equal(t, filepath.Join(shotDir, "home.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0), "screenshot file is empty")

	require.True(t, m.Started(), "manager should report started after a probe")
}
