package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestCollector(t *testing.T) (*OrbitCollector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector, err := NewOrbitCollector(reg)
	if err != nil {
		t.Fatalf("NewOrbitCollector: %v", err)
	}
	return collector, reg
}

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	collector, reg := newTestCollector(t)

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/orbits.v1.OrbitService/Decode"}

	_, err := interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(2 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("OrbitService", "Decode", "OK")); got != 1 {
		t.Fatalf("orbit_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "orbit_rpc_request_duration_seconds", map[string]string{
		"service": "OrbitService",
		"method":  "Decode",
	}); count != 1 {
		t.Fatalf("orbit_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	collector, _ := newTestCollector(t)

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/orbits.v1.OrbitService/Project"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("OrbitService", "Project", "InvalidArgument")); got != 1 {
		t.Fatalf("orbit_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestDecodeAndProjectionRecorders(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.ObserveDecoded()
	collector.ObserveDecoded()
	collector.ObserveSkipped("format")
	collector.ObserveProjection(250*time.Microsecond, 100)
	collector.SetCatalogSize(7)
	collector.ObserveCatalogChange("added")
	collector.ObserveCatalogChange("added")
	collector.ObserveCatalogChange("deleted")

	if got := testutil.ToFloat64(collector.Decoded); got != 2 {
		t.Fatalf("tle_records_decoded_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Skipped.WithLabelValues("format")); got != 1 {
		t.Fatalf("tle_records_skipped_total{reason=format} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ProjectionPoints); got != 100 {
		t.Fatalf("orbit_projection_points_total = %v, want 100", got)
	}
	if got := testutil.ToFloat64(collector.CatalogElements); got != 7 {
		t.Fatalf("orbit_catalog_elements = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.CatalogChanges.WithLabelValues("added")); got != 2 {
		t.Fatalf("orbit_catalog_changes_total{event=added} = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "orbit_projection_duration_seconds", nil); count != 1 {
		t.Fatalf("orbit_projection_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *OrbitCollector
	c.ObserveDecoded()
	c.ObserveSkipped("numeric")
	c.ObserveProjection(time.Millisecond, 10)
	c.SetCatalogSize(1)
	c.ObserveCatalogChange("added")
}

func TestNewOrbitCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewOrbitCollector(reg)
	if err != nil {
		t.Fatalf("first NewOrbitCollector: %v", err)
	}
	second, err := NewOrbitCollector(reg)
	if err != nil {
		t.Fatalf("second NewOrbitCollector: %v", err)
	}
	second.ObserveDecoded()
	if got := testutil.ToFloat64(first.Decoded); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesOrbitMetrics(t *testing.T) {
	collector, _ := newTestCollector(t)
	collector.ObserveDecoded()
	collector.ObserveSkipped("numeric")
	collector.ObserveProjection(time.Millisecond, 3)
	collector.SetCatalogSize(4)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"tle_records_decoded_total",
		`tle_records_skipped_total{reason="numeric"}`,
		"orbit_projection_points_total",
		"orbit_projection_duration_seconds",
		"orbit_catalog_elements 4",
		"orbit_rpc_requests_total",
		"orbit_rpc_request_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	collector, _ := newTestCollector(t)
	collector.ObserveDecoded()

	path := filepath.Join(t.TempDir(), "orbits.prom")
	if err := collector.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "tle_records_decoded_total 1") {
		t.Fatalf("textfile missing decoded counter:\n%s", data)
	}
}

func TestSplitMethod(t *testing.T) {
	cases := []struct {
		in, service, method string
	}{
		{"/orbits.v1.OrbitService/Decode", "OrbitService", "Decode"},
		{"OrbitService/Project", "OrbitService", "Project"},
		{"", "unknown", "unknown"},
		{"/justone", "unknown", "unknown"},
	}
	for _, tc := range cases {
		s, m := SplitMethod(tc.in)
		if s != tc.service || m != tc.method {
			t.Errorf("SplitMethod(%q) = %q, %q; want %q, %q", tc.in, s, m, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
