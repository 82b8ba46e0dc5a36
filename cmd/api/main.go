package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"cuehall.org/internal/audit"
	"cuehall.org/internal/authz"
	"cuehall.org/internal/httpapi"
	"cuehall.org/internal/idp"
	"cuehall.org/internal/obs"
	"cuehall.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("CUEHALL_PG_DSN")
	if dsn == "" {
		log.Fatal("missing CUEHALL_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	opts := []authz.ServiceOption{
		authz.WithAuditSink(audit.LogEvent),
	}
	if idpURL := os.Getenv("CUEHALL_IDP_URL"); idpURL != "" {
		pusher, err := idp.New(idpURL, os.Getenv("CUEHALL_IDP_TOKEN"))
		if err != nil {
			log.Fatalf("idp client: %v", err)
		}
		opts = append(opts, authz.WithClaimsPusher(pusher))
	}
	svc, err := authz.NewService(store, opts...)
	if err != nil {
		log.Fatalf("authz service: %v", err)
	}

	api := httpapi.New(
		httpapi.ReadyProbe{DB: store.DB()},
		version,
		svc,
		httpapi.WithAuthSecret(os.Getenv("CUEHALL_AUTH_SECRET")),
	)

	httpAddr := envOr("CUEHALL_HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv, healthSrv := newGRPCHealth()
	grpcAddr := envOr("CUEHALL_GRPC_ADDR", ":9090")

	log.Printf("Starting cuehall-authz %s on %s (grpc %s)", version, httpAddr, grpcAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	// Keep the gRPC health status in sync with DB reachability.
	probe := httpapi.ReadyProbe{DB: store.DB()}
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			status := healthpb.HealthCheckResponse_SERVING
			if err := probe.Check(ctx); err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			cancel()
			healthSrv.SetServingStatus("", status)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	log.Println("Stopped")
}

func newGRPCHealth() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return srv, healthSrv
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
