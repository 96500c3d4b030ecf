// Package app wires configuration into the components shared by the orbits
// CLI and orbit-server.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/catalog/sqlite"
	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/internal/config"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/observability"
)

// App holds the components built from one Config.
type App struct {
	Config    *config.Config
	Log       logging.Logger
	Metrics   *observability.OrbitCollector
	Decoder   *core.Decoder
	Projector *core.Projector
	Catalog   catalog.Store

	shutdownTracing observability.ShutdownFunc
	unsubscribe     func()
}

// New validates cfg and builds the components. reg may be nil to use the
// global Prometheus registry. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logging.Noop()
	}
	mu, err := cfg.GravitationalParameter()
	if err != nil {
		return nil, err
	}

	collector, err := observability.NewOrbitCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	decoder, err := core.NewDecoder(mu, core.WithLogger(log), core.WithDecodeMetrics(collector))
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil, err
	}

	store, err := OpenCatalog(ctx, cfg.Catalog, collector)
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil, err
	}

	unsubscribe := func() {}
	if n, ok := store.(catalog.Notifier); ok {
		unsubscribe = n.Subscribe(catalogChanges(ctx, log, collector))
	}

	log.Debug(ctx, "components ready",
		logging.Float64("mu", mu),
		logging.Int("samples", cfg.Samples),
		logging.String("catalog", cfg.Catalog.Driver),
	)

	return &App{
		Config:          cfg,
		Log:             log,
		Metrics:         collector,
		Decoder:         decoder,
		Projector:       core.NewProjector(core.WithDefaultSamples(cfg.Samples), core.WithProjectionMetrics(collector)),
		Catalog:         store,
		shutdownTracing: shutdown,
		unsubscribe:     unsubscribe,
	}, nil
}

// catalogChanges logs catalog events at debug level and counts them.
func catalogChanges(ctx context.Context, log logging.Logger, collector *observability.OrbitCollector) func(catalog.Event) {
	return func(ev catalog.Event) {
		collector.ObserveCatalogChange(ev.Type.String())
		log.Debug(ctx, "catalog changed",
			logging.String("event", ev.Type.String()),
			logging.Any("id", ev.Entry.ID),
			logging.String("name", ev.Entry.Element.Name()),
		)
	}
}

// OpenCatalog opens the store selected by cfg.
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig, sizes catalog.SizeRecorder) (catalog.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return catalog.NewMemoryStore(catalog.WithSizeRecorder(sizes)), nil
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DSN, sqlite.WithSizeRecorder(sizes))
		if err != nil {
			return nil, fmt.Errorf("open catalog %q: %w", cfg.DSN, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}

// Close flushes traces and closes the catalog.
func (a *App) Close(ctx context.Context) error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	observability.ShutdownWithTimeout(ctx, a.shutdownTracing, a.Log)
	var errs []error
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}
