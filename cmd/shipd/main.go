package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/buildqueue"
	"github.com/portfolify/shipd/internal/callback"
	"github.com/portfolify/shipd/internal/config"
	"github.com/portfolify/shipd/internal/connectivity"
	"github.com/portfolify/shipd/internal/deploy"
	"github.com/portfolify/shipd/internal/guard"
	"github.com/portfolify/shipd/internal/janitor"
	"github.com/portfolify/shipd/internal/job"
	"github.com/portfolify/shipd/internal/logging"
	"github.com/portfolify/shipd/internal/logstream"
	"github.com/portfolify/shipd/internal/server"
	"github.com/portfolify/shipd/internal/version"
)

func main() {
	// Handle subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "version" {
		printVersion()
		return
	}

	var (
		dev        = flag.Bool("dev", false, "run in dev mode")
		token      = flag.String("token", "", "API auth token")
		listen     = flag.String("listen", "", "override listen address")
		configPath = flag.String("config", "", "path to config.toml")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		printVersion()
		os.Exit(0)
	}

	logger, err := logging.New(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	cfg, err := config.Load(*configPath, *dev)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *token != "" {
		cfg.Auth.Token = *token
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("dirs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, closeLock, err := newGuard(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	defer closeLock()

	store := job.NewStore(cfg.Paths.StateFile)
	hub := logstream.NewHub()
	queue := buildqueue.New(cfg.Deploy.Workers, cfg.Deploy.QueueSize)
	orch := deploy.NewOrchestrator(&deploy.SimulatedExecutor{Scale: cfg.Deploy.TimeScale})
	svc := job.NewService(orch, lock, store, hub, queue, callback.NewClient())
	srv := server.New(cfg, svc, store, hub, connectivity.New(cfg.Deploy))

	jan, err := janitor.New(store, cfg.Retention.Schedule, cfg.Retention.MaxAge.Duration)
	if err != nil {
		log.Fatal(err)
	}

	queue.Start(ctx)
	jan.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	log.Infof("shipd %s started (pid=%d, workers=%d)", version.Version, os.Getpid(), cfg.Deploy.Workers)

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}

	jan.Stop()
	queue.Stop()
	log.Info("shipd stopped")
}

// newGuard picks the Redis lock when an address is configured, otherwise the
// in-process lock.
func newGuard(ctx context.Context, cfg config.RedisConfig) (guard.Guard, func(), error) {
	if cfg.Addr == "" {
		zap.S().Infof("guard: using in-process deployment lock")
		return guard.NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	zap.S().Infof("guard: using redis deployment lock at %s", cfg.Addr)
	return guard.NewRedis(client, cfg.LockTTL.Duration), func() { client.Close() }, nil
}

func printVersion() {
	fmt.Println(version.String())
}
