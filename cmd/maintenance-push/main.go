package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chemtech/maintenance-push/internal/config"
	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/metrics"
	"github.com/chemtech/maintenance-push/internal/push"
	"github.com/chemtech/maintenance-push/internal/push/fcm"
	"github.com/chemtech/maintenance-push/internal/server"
	"github.com/chemtech/maintenance-push/internal/service"
	"github.com/chemtech/maintenance-push/internal/storage/bolt"
	"github.com/chemtech/maintenance-push/internal/storage/sqlstore"
	"github.com/chemtech/maintenance-push/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	db, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		lg.Fatal("open database", "driver", cfg.Database.Driver, "error", err)
	}
	if cfg.Database.AutoMigrate {
		if err := sqlstore.Migrate(db); err != nil {
			lg.Fatal("migrate database", "error", err)
		}
	}
	store := sqlstore.New(db)
	defer store.Close()

	logStore, err := bolt.New(cfg.Storage.LogPath)
	if err != nil {
		lg.Fatal("open dispatch log", "path", cfg.Storage.LogPath, "error", err)
	}
	defer logStore.Close()

	provider, pinger := buildProvider(cfg, lg)
	var deps server.Deps

	tokenSvc := service.NewTokenService(store, lg)
	logSvc := service.NewDispatchLogService(logStore, lg)
	dispatcher := service.NewDispatcher(store, provider, store, logSvc, lg, service.DispatcherConfig{
		SendTimeout:    cfg.FCM.SendTimeout,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
	})
	if cfg.Metrics.Enabled {
		m := metrics.New()
		dispatcher.SetObserver(m)
		tokenSvc.SetObserver(m)
		deps.Metrics = m.Handler()
	}
	authSvc, err := service.NewAuthService(cfg, store, tokenSvc, lg)
	if err != nil {
		lg.Fatal("init auth", "error", err)
	}

	deps.Auth = authSvc
	deps.Tokens = tokenSvc
	deps.Catalog = service.NewCatalog(dispatcher)
	deps.Logs = logSvc
	deps.Database = store
	// a nil interface, not a typed nil, marks push as not configured
	if pinger != nil {
		deps.Push = pinger
	}
	srv := server.New(cfg, deps, lg)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if spec := strings.TrimSpace(cfg.Dispatch.PurgeSchedule); spec != "" {
		purger, err := worker.NewPurgeWorker(spec, tokenSvc, lg)
		if err != nil {
			lg.Fatal("init purge worker", "error", err)
		}
		workers.Add(1)
		go purger.Run(workerCtx, workers.Done)
	}

	go func() {
		lg.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil {
			lg.Fatal("server stopped", "error", err)
		}
	}()

	// graceful shutdown
	waitForSignal()
	lg.Info("shutting down")
	timeout := cfg.HTTP.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("shutdown error", "error", err)
	}
	stopWorkers()
	workers.Wait()
}

// buildProvider resolves FCM credentials. Without them the service still
// accepts tokens and events but every send fails.
func buildProvider(cfg *config.Config, lg *logger.Logger) (push.Provider, *fcm.Client) {
	// the token source refreshes for the life of the process
	creds, err := fcm.Credentials(context.Background(), cfg.FCM.CredentialsBase64, cfg.FCM.CredentialsFile)
	if err != nil {
		lg.Warn("fcm credentials unavailable, push disabled", "error", err)
		return push.Disabled{}, nil
	}
	projectID := cfg.FCM.ProjectID
	if projectID == "" {
		projectID = creds.ProjectID
	}
	client, err := fcm.New(fcm.Config{
		Endpoint:    cfg.FCM.Endpoint,
		ProjectID:   projectID,
		TokenSource: creds.TokenSource,
		Timeout:     cfg.FCM.SendTimeout,
	})
	if err != nil {
		lg.Warn("fcm client not configured, push disabled", "error", err)
		return push.Disabled{}, nil
	}
	lg.Info("fcm client ready", "projectId", projectID)
	return client, client
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
