package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestHeatmapCommand tests the heatmap command against the simulated venues
func TestHeatmapCommand(t *testing.T) {
	out, err := run(t, "heatmap", "btc/usdt", "--mock", "--config", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var heatmap struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal([]byte(out), &heatmap); err != nil {
		t.Fatalf("Expected JSON output, got %q", out)
	}
	if heatmap.Symbol != "BTCUSDT" {
		t.Errorf("Expected BTCUSDT, got %s", heatmap.Symbol)
	}
}

// TestHeatmapLevelsCommand tests that --levels prints a level list
func TestHeatmapLevelsCommand(t *testing.T) {
	out, err := run(t, "heatmap", "ETHUSDT", "--levels", "5", "--mock", "--config", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var levels []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &levels); err != nil {
		t.Fatalf("Expected a JSON array, got %q", out)
	}
	if len(levels) == 0 || len(levels) > 10 {
		t.Errorf("Expected between 1 and 10 levels, got %d", len(levels))
	}
}

// TestArbitrageScanCommand tests the scan subcommand
func TestArbitrageScanCommand(t *testing.T) {
	out, err := run(t, "arbitrage", "scan", "BTCUSDT", "--mock", "--config", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out, `"symbols_scanned": 1`) {
		t.Errorf("Expected one symbol scanned, got %s", out)
	}
}

// TestICTCommandRejectsTimeframe tests that an unsupported timeframe is an error
func TestICTCommandRejectsTimeframe(t *testing.T) {
	if _, err := run(t, "ict", "BTCUSDT", "--timeframe", "3m", "--mock", "--config", ""); err == nil {
		t.Error("Expected an error for 3m")
	}
}

// TestCommandArgs tests argument validation
func TestCommandArgs(t *testing.T) {
	if _, err := run(t, "sniper"); err == nil {
		t.Error("Expected an error without a symbol")
	}
}

// TestConfigSample tests the sample config writer
func TestConfigSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := run(t, "config", "sample", path); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected %s to exist, got %v", path, err)
	}
}

// TestSymbolArg tests symbol normalization
func TestSymbolArg(t *testing.T) {
	if got := symbolArg(" eth/usdt "); got != "ETHUSDT" {
		t.Errorf("Expected ETHUSDT, got %s", got)
	}
}
