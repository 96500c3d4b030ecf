package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	mu, err := cfg.GravitationalParameter()
	if err != nil {
		t.Fatalf("GravitationalParameter: %v", err)
	}
	if mu != 398600.4418 {
		t.Fatalf("default mu = %v, want Earth", mu)
	}
}

func TestParsePartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
body: mars
samples: 360
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Samples != 360 || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.Log.Format != "text" || cfg.Catalog.Driver != "memory" || cfg.GRPC.Address != ":50061" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	mu, err := cfg.GravitationalParameter()
	if err != nil {
		t.Fatalf("GravitationalParameter: %v", err)
	}
	if mu != 42828.37 {
		t.Fatalf("mars mu = %v", mu)
	}
}

func TestExplicitMuWinsOverBody(t *testing.T) {
	cfg, err := Parse([]byte("body: moon\nmu: 1.5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if mu, _ := cfg.GravitationalParameter(); mu != 1.5 {
		t.Fatalf("mu = %v, want 1.5", mu)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("samples: [1, 2")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFromEnvPathAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orbits.yaml")
	if err := os.WriteFile(path, []byte("samples: 50\ntracing:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvConfigPath, path)
	t.Setenv("ORBITS_SAMPLES", "75")
	t.Setenv("ORBITS_MU", "4902.8")
	t.Setenv("ORBITS_DB", filepath.Join(dir, "catalog.db"))
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("ORBITS_TLE_FEED", "/srv/tle/active.txt")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Samples != 75 || cfg.Mu != 4902.8 || cfg.Log.Format != "json" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Feed.Path != "/srv/tle/active.txt" {
		t.Fatalf("feed path = %q", cfg.Feed.Path)
	}
	if cfg.Catalog.Driver != "sqlite" || !strings.HasSuffix(cfg.Catalog.DSN, "catalog.db") {
		t.Fatalf("catalog = %+v, want sqlite", cfg.Catalog)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadBadEnvNumber(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("ORBITS_SAMPLES", "many")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric ORBITS_SAMPLES")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Body = "vulcan"
	cfg.Samples = 0
	cfg.Catalog = CatalogConfig{Driver: "sqlite"}
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"vulcan", "samples", "catalog.dsn", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestNegativeMuRejected(t *testing.T) {
	cfg := Default()
	cfg.Mu = -3
	if _, err := cfg.GravitationalParameter(); err == nil {
		t.Fatalf("expected error for negative mu")
	}
}
