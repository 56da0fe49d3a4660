package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "receiver")).Info("cell found", Int("nid1", 7), Float("corr", 127), Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "cell found" || entry["component"] != "receiver" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["nid1"] != float64(7) || entry["error"] != "boom" {
		t.Errorf("fields missing from %v", entry)
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("dropped")
	log.Debug("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	log.Warn("kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	log := NewFromEnv(Config{Level: "debug", Output: &buf})
	log.Warn("dropped")
	log.Error("kept")
	if !strings.HasPrefix(buf.String(), "{") || strings.Contains(buf.String(), "dropped") {
		t.Errorf("environment should override config, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNoop(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Info("nothing")
	log.Error("nothing")
}
