package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"unilink.org/internal/account"
	"unilink.org/internal/authz"
	"unilink.org/internal/directory"
	"unilink.org/internal/httpapi"
	"unilink.org/internal/obs"
	"unilink.org/internal/store/mem"
	"unilink.org/internal/store/pg"
	"unilink.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

type stores interface {
	Directory() directory.Store
	Accounts() account.Store
	Principals() authz.PrincipalStore
	Nodes() authz.NodeStore
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		db  *sql.DB
		st  stores
		dsn = os.Getenv("UNILINK_PG_DSN")
	)
	if dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgStore.DB()
		st = pgStore
	} else {
		log.Printf("UNILINK_PG_DSN not set, using in-memory store")
		st = mem.New()
	}

	dir, err := directory.NewService(st.Directory())
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}
	accounts, err := account.NewService(st.Accounts(), st.Nodes())
	if err != nil {
		log.Fatalf("account service: %v", err)
	}
	evaluator, err := authz.NewEvaluator(st.Principals(), st.Nodes())
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := accounts.EnsureBuiltins(seedCtx); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}
	cancelSeed()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, dir, accounts, evaluator, stream.New())

	httpAddr := envOr("UNILINK_HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting unilink-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	grpcSrv := grpc.NewServer()
	httpapi.NewGRPCServer(httpapi.ReadyProbe{DB: db}, version).Register(grpcSrv)
	grpcAddr := envOr("UNILINK_GRPC_ADDR", ":9090")
	go func() {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		log.Printf("gRPC health on %s", grpcAddr)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
