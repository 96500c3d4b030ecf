package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	projectionBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}
	rpcBuckets        = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
)

// OrbitCollector bundles Prometheus metrics for TLE decoding, orbit
// projection, the element catalog and the RPC surface.
type OrbitCollector struct {
	gatherer prometheus.Gatherer

	Decoded          prometheus.Counter
	Skipped          *prometheus.CounterVec
	ProjectionPoints prometheus.Counter
	ProjectionTime   prometheus.Histogram
	CatalogElements  prometheus.Gauge
	CatalogChanges   *prometheus.CounterVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewOrbitCollector registers metrics against reg, or the global registry
// when reg is nil. Collectors already present in reg are shared.
func NewOrbitCollector(reg prometheus.Registerer) (*OrbitCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := registrar{reg: reg}
	c := &OrbitCollector{gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	c.Decoded = register(&r, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tle_records_decoded_total",
		Help: "TLE records decoded into orbital elements.",
	}))
	c.Skipped = register(&r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tle_records_skipped_total",
		Help: "TLE records skipped, by reason.",
	}, []string{"reason"}))
	c.ProjectionPoints = register(&r, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_projection_points_total",
		Help: "Cartesian points produced by orbit projection.",
	}))
	c.ProjectionTime = register(&r, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbit_projection_duration_seconds",
		Help:    "Time spent projecting one orbital element.",
		Buckets: projectionBuckets,
	}))
	c.CatalogElements = register(&r, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbit_catalog_elements",
		Help: "Orbital elements currently held in the catalog.",
	}))
	c.CatalogChanges = register(&r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_catalog_changes_total",
		Help: "Catalog entries added or deleted, by event.",
	}, []string{"event"}))
	c.RPCRequests = register(&r, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_rpc_requests_total",
		Help: "Handled orbit RPCs by service, method and gRPC status code.",
	}, []string{"service", "method", "code"}))
	c.RPCDurations = register(&r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orbit_rpc_request_duration_seconds",
		Help:    "Orbit RPC latency in seconds.",
		Buckets: rpcBuckets,
	}, []string{"service", "method"}))

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// ObserveDecoded counts one decoded record.
func (c *OrbitCollector) ObserveDecoded() {
	if c == nil || c.Decoded == nil {
		return
	}
	c.Decoded.Inc()
}

// ObserveSkipped counts one skipped record.
func (c *OrbitCollector) ObserveSkipped(reason string) {
	if c == nil || c.Skipped == nil {
		return
	}
	c.Skipped.WithLabelValues(reason).Inc()
}

// ObserveProjection records one projection run.
func (c *OrbitCollector) ObserveProjection(elapsed time.Duration, points int) {
	if c == nil {
		return
	}
	if c.ProjectionTime != nil {
		c.ProjectionTime.Observe(elapsed.Seconds())
	}
	if c.ProjectionPoints != nil {
		c.ProjectionPoints.Add(float64(points))
	}
}

// SetCatalogSize lets catalog stores drive the element gauge.
func (c *OrbitCollector) SetCatalogSize(n int) {
	if c == nil || c.CatalogElements == nil {
		return
	}
	c.CatalogElements.Set(float64(n))
}

// ObserveCatalogChange counts one catalog event ("added", "deleted").
func (c *OrbitCollector) ObserveCatalogChange(event string) {
	if c == nil || c.CatalogChanges == nil {
		return
	}
	c.CatalogChanges.WithLabelValues(event).Inc()
}

// UnaryServerInterceptor counts unary RPCs by status code and times them.
func (c *OrbitCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil {
			return resp, err
		}

		var service, method string
		if info != nil {
			service, method = SplitMethod(info.FullMethod)
		} else {
			service, method = SplitMethod("")
		}
		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *OrbitCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.source(), promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for node_exporter's textfile collector,
// for one-shot CLI runs that exit before any scrape.
func (c *OrbitCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.source()); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func (c *OrbitCollector) source() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method"). Input
// without both parts yields "unknown" for each.
func SplitMethod(fullMethod string) (string, string) {
	path := strings.TrimPrefix(fullMethod, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "unknown", "unknown"
	}
	service, method := path[:i], path[i+1:]
	if j := strings.LastIndex(service, "/"); j >= 0 {
		service = service[j+1:]
	}
	if dot := strings.LastIndex(service, "."); dot >= 0 {
		service = service[dot+1:]
	}
	return orUnknown(service), orUnknown(method)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// registrar keeps the first registration error so NewOrbitCollector can
// check once at the end.
type registrar struct {
	reg prometheus.Registerer
	err error
}

// register adds c to r, returning the already registered collector when
// one with the same descriptor exists.
func register[T prometheus.Collector](r *registrar, c T) T {
	if r.err != nil {
		return c
	}
	err := r.reg.Register(c)
	if err == nil {
		return c
	}
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
		r.err = fmt.Errorf("metric collector registered with an incompatible type: %w", err)
		return c
	}
	r.err = err
	return c
}
