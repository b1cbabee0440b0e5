package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// TestParseLevel tests level name mapping
func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", in, want, got)
		}
	}
}

// TestNewWritesJSONToFile tests file output with component and level filtering
func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, closer := New(&Config{Level: "info", Output: path, Component: "api", JSONFormat: true})

	l.Debug().Msg("hidden")
	l.Info().Str("symbol", "BTCUSDT").Msg("visible")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %s", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("Expected JSON line, got %s", lines[0])
	}
	if entry["component"] != "api" || entry["symbol"] != "BTCUSDT" || entry["message"] != "visible" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

// TestTraceContextRoundTrip tests trace id and logger propagation through a context
func TestTraceContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx, _ := WithTraceContext(context.Background(), base, "trace-123")
	if got := TraceID(ctx); got != "trace-123" {
		t.Errorf("Expected trace-123, got %q", got)
	}

	l := FromContext(ctx)
	l.Info().Msg("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"trace_id":"trace-123"`)) {
		t.Errorf("Expected trace id in output, got %s", buf.String())
	}

	ctx, _ = WithTraceContext(context.Background(), base, "")
	if TraceID(ctx) == "" {
		t.Error("Expected a generated trace id")
	}
}
