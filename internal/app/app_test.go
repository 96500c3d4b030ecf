package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/catalog/sqlite"
	"github.com/signalsfoundry/orbit-tracer/internal/config"
	"github.com/signalsfoundry/orbit-tracer/model"
)

func TestNewWiresComponents(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Body = "moon"
	cfg.Samples = 24

	a, err := New(ctx, cfg, nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(ctx)

	if a.Decoder.Mu() != model.Moon.Mu {
		t.Fatalf("decoder mu = %v, want Moon", a.Decoder.Mu())
	}
	if a.Projector.DefaultSamples() != 24 {
		t.Fatalf("projector samples = %d, want 24", a.Projector.DefaultSamples())
	}
	if _, ok := a.Catalog.(*catalog.MemoryStore); !ok {
		t.Fatalf("catalog = %T, want *catalog.MemoryStore", a.Catalog)
	}

	el, _ := model.NewOrbitalElement("x", 0, 2000, 0, 0, 0)
	if _, err := a.Catalog.Put(ctx, el); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := testutil.ToFloat64(a.Metrics.CatalogElements); got != 1 {
		t.Fatalf("orbit_catalog_elements = %v, want 1", got)
	}
}

func TestCatalogEventsDriveChangeCounter(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, config.Default(), nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	el, _ := model.NewOrbitalElement("x", 0.1, 7000, 0, 0, 0)
	entries, err := a.Catalog.Put(ctx, el, el)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := a.Catalog.Delete(ctx, entries[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if got := testutil.ToFloat64(a.Metrics.CatalogChanges.WithLabelValues("added")); got != 2 {
		t.Fatalf("added = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.Metrics.CatalogChanges.WithLabelValues("deleted")); got != 1 {
		t.Fatalf("deleted = %v, want 1", got)
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.Catalog.Put(ctx, el); err != nil {
		t.Fatalf("Put after Close: %v", err)
	}
	if got := testutil.ToFloat64(a.Metrics.CatalogChanges.WithLabelValues("added")); got != 2 {
		t.Fatalf("added after Close = %v, want 2 (unsubscribed)", got)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Samples = -1
	if _, err := New(context.Background(), cfg, nil, prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected error for negative samples")
	}
}

func TestOpenCatalogSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenCatalog(ctx, config.CatalogConfig{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "c.db")}, nil)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("store = %T, want *sqlite.Store", store)
	}

	if _, err := OpenCatalog(ctx, config.CatalogConfig{Driver: "redis"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
