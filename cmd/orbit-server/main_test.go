package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/orbit-tracer/internal/app"
	"github.com/signalsfoundry/orbit-tracer/internal/config"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/orbitrpc"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestServeRoundTripAndGracefulStop(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, config.Default(), logging.Noop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	lis := bufconn.Listen(1 << 20)
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- serve(serveCtx, newGRPCServer(a), lis, logging.Noop()) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: orbitrpc.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v", hc.GetStatus())
	}

	callCtx := metadata.AppendToOutgoingContext(ctx, orbitrpc.RunIDMetadataKey, "test-run")
	client := orbitrpc.NewClient(conn)
	dec, err := client.Decode(callCtx, &orbitrpc.DecodeRequest{Lines: []string{issLine1, issLine2}, Store: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dec.Elements) != 1 || dec.Elements[0].ID == 0 {
		t.Fatalf("unexpected decode response: %+v", dec)
	}
	proj, err := client.Project(callCtx, &orbitrpc.ProjectRequest{ID: dec.Elements[0].ID})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(proj.Points) != config.Default().Samples {
		t.Fatalf("points = %d, want config default", len(proj.Points))
	}

	rr := httptest.NewRecorder()
	a.Metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `orbit_rpc_requests_total{code="OK",method="Project",service="OrbitService"} 1`) {
		t.Fatalf("metrics missing Project request:\n%s", rr.Body.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}

func TestServeMetricsDisabled(t *testing.T) {
	if srv := serveMetrics("", nil, logging.Noop()); srv != nil {
		t.Fatalf("expected no metrics server")
	}
}

func TestStartFeedLoadsCatalog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "feed.tle")
	if err := os.WriteFile(path, []byte(issLine1+"\n"+issLine2+"\n"), 0o600); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	cfg := config.Default()
	cfg.Feed.Path = path

	a, err := app.New(ctx, cfg, logging.Noop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	startFeed(ctx, a, logging.Noop())
	if n, _ := a.Catalog.Count(ctx); n != 1 {
		t.Fatalf("catalog count = %d after startFeed, want 1", n)
	}
}
