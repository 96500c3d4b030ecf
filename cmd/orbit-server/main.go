// Command orbit-server serves orbits.v1.OrbitService over gRPC with
// Prometheus metrics on a separate HTTP listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/orbit-tracer/internal/app"
	"github.com/signalsfoundry/orbit-tracer/internal/config"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/observability"
	"github.com/signalsfoundry/orbit-tracer/internal/orbitrpc"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the gRPC server; overrides grpc.address")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; overrides metrics.address")
	feedPath := flag.String("tle-feed", "", "TLE file to load into the catalog and reload on change; overrides feed.path")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(ctx, "failed to load config", logging.Err(err))
		os.Exit(2)
	}
	if *grpcAddr != "" {
		cfg.GRPC.Address = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.Metrics.Address = *metricsAddr
	}
	if *feedPath != "" {
		cfg.Feed.Path = *feedPath
	}

	log := logging.New(cfg.Logging())

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		log.Error(ctx, "failed to initialise", logging.Err(err))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(cfg.Metrics.Address, a.Metrics, log)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPC.Address), logging.Err(err))
		_ = a.Close(ctx)
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startFeed(stopCtx, a, log)

	log.Info(ctx, "starting orbit gRPC server", logging.String("addr", lis.Addr().String()))
	if err := serve(stopCtx, newGRPCServer(a), lis, log); err != nil {
		log.Error(ctx, "gRPC server exited", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Warn(ctx, "shutdown failed", logging.Err(err))
	}
}

// startFeed loads the configured TLE feed and keeps watching it.
func startFeed(ctx context.Context, a *app.App, log logging.Logger) {
	path := a.Config.Feed.Path
	if path == "" {
		return
	}
	feed := a.NewFeed(path)
	if _, err := feed.Reload(ctx); err != nil {
		log.Warn(ctx, "initial feed load failed", logging.String("feed", path), logging.Err(err))
	}
	go func() {
		if err := feed.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(ctx, "feed watcher stopped", logging.String("feed", path), logging.Err(err))
		}
	}()
}

// newGRPCServer registers the orbit and health services with otelgrpc
// server spans and the orbitrpc interceptor chain.
func newGRPCServer(a *app.App) *grpc.Server {
	opts := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
	opts = append(opts, orbitrpc.ServerOptions(a.Log, a.Metrics)...)
	server := grpc.NewServer(opts...)

	orbitrpc.RegisterOrbitServiceServer(server, orbitrpc.NewOrbitService(a.Decoder, a.Projector, a.Catalog, a.Log))

	hs := health.NewServer()
	hs.SetServingStatus(orbitrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server
}

// serve runs server on lis until ctx is done, then stops it gracefully.
func serve(ctx context.Context, server *grpc.Server, lis net.Listener, log logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down orbit server")
		server.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func serveMetrics(addr string, collector *observability.OrbitCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
