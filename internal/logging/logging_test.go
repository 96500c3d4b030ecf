package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewWritesJSONToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "decoder")).Debug(context.Background(), "hello",
		Int("pair", 3),
		Float64("mu", 398600.4418),
		Err(errors.New("bad column")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["component"] != "decoder" || rec["error"] != "bad column" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["pair"] != float64(3) {
		t.Fatalf("pair = %v, want 3", rec["pair"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "quiet")
	log.Warn(context.Background(), "loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestErrFieldNil(t *testing.T) {
	f := Err(nil)
	if f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}

func TestRunIDHelpers(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" || RunIDFromContext(ctx) != id {
		t.Fatalf("EnsureRunID did not attach an id")
	}
	if _, again := EnsureRunID(ctx); again != id {
		t.Fatalf("EnsureRunID replaced existing id %q with %q", id, again)
	}

	ctx = ContextWithRunID(context.Background(), "fixed")
	var buf bytes.Buffer
	ctx, log := WithRunLogger(ctx, New(Config{Output: &buf}))
	log.Info(ctx, "tagged")
	if !strings.Contains(buf.String(), "run_id=fixed") {
		t.Fatalf("run_id missing from output:\n%s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	fallback := Noop()
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("nil fallback should yield a noop logger")
	}
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}

	var buf bytes.Buffer
	stored := New(Config{Output: &buf})
	ctx := ContextWithLogger(context.Background(), stored)
	FromContext(ctx, fallback).Info(ctx, "from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("stored logger not used")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Fatalf("ConfigFromEnv = %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestDurationAndBoolFields(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Info(context.Background(), "tick",
		Duration("elapsed", 1500*time.Millisecond),
		Bool("strict", true),
	)
	out := buf.String()
	if !strings.Contains(out, "elapsed=1.5s") || !strings.Contains(out, "strict=true") {
		t.Fatalf("unexpected output: %s", out)
	}
}
