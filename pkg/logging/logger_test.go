package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"echopaths/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run's log gets rotated.
	if err := os.WriteFile(serverLog, []byte("old run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	prev := slog.Default()
	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		cleanup()
		slog.SetDefault(prev)
	}()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	if _, err := os.Stat(serverLog + ".old"); err != nil {
		t.Error("previous log was not rotated to .old")
	}

	slog.Info("capture me")
	if got := GlobalLogCapture.GetLastLine(); !strings.Contains(got, "capture me") {
		t.Errorf("capture handler missed the line, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("component", "test")

	logger.Debug("quiet")
	logger.Warn("loud")

	if !strings.Contains(debugBuf.String(), "quiet") || !strings.Contains(debugBuf.String(), "loud") {
		t.Errorf("debug handler should see both records: %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "quiet") {
		t.Error("warn handler should not see debug records")
	}
	if !strings.Contains(warnBuf.String(), "component=test") {
		t.Error("attrs should propagate to every handler")
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multi handler should be enabled if any child is")
	}
}

func TestEvent(t *testing.T) {
	Event("segment", "Segment 2 ready")
	if got := GlobalEventCapture.GetLastLine(); !strings.Contains(got, "[segment] Segment 2 ready") {
		t.Errorf("unexpected event line %q", got)
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	prev := EnableTrace
	defer func() { EnableTrace = prev }()

	EnableTrace = false
	Trace(logger, "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output with trace disabled, got %q", buf.String())
	}

	EnableTrace = true
	Trace(logger, "shown", "k", 1)
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "k=1") {
		t.Errorf("expected trace line, got %q", buf.String())
	}
}
