// Package main runs the Protube client engine as a small agent: it
// keeps persisted client state reconciled with the backend on a timer
// and exposes health, sync, and state endpoints over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"

	"protube-client/agent"
	"protube-client/api"
	"protube-client/bus"
	"protube-client/meta"
	"protube-client/reconcile"
	"protube-client/resolve"
	"protube-client/session"
	"protube-client/store"
	"protube-client/toast"
	"protube-client/upload"
)

const defaultSyncInterval = 10 * time.Minute

func main() {
	ctx := context.Background()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiBase := os.Getenv("PROTUBE_API_BASE")
	if apiBase == "" {
		apiBase = "http://localhost:8080/api"
		logger.Info("No PROTUBE_API_BASE set, defaulting to local backend", "api_base", apiBase)
	}
	mediaBase := os.Getenv("PROTUBE_MEDIA_BASE")
	if mediaBase == "" {
		mediaBase = "http://localhost:8080/media"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	backend, err := selectBackend(ctx, logger)
	if err != nil {
		logger.Error("Failed to initialize state backend", "error", err)
		os.Exit(1)
	}
	st := store.NewShared(backend).Open(logger)

	b := bus.New(logger)
	toasts := toast.New(logger)
	detach := toasts.Attach(b)
	defer detach()

	registry := session.New(nil, logger)
	defer registry.Close()

	watchBase := os.Getenv("PROTUBE_WATCH_BASE")
	if watchBase == "" {
		watchBase = strings.TrimSuffix(mediaBase, "/media") + "/watch"
	}

	client := api.New(apiBase, nil, logger)
	resolver := resolve.New(client, logger)
	manager := reconcile.New(client, st, b, resolver, mediaBase, logger)
	manager.SetProber(meta.NewProber(mediaBase, watchBase, nil, logger))
	submitter := upload.New(client, st, b, registry, resolver, mediaBase, logger)

	go syncLoop(ctx, manager, logger)

	server := agent.New(&agent.Config{
		Syncer:    manager,
		Identity:  manager,
		Submitter: submitter,
		Store:     st,
		Toasts:    toasts,
		Logger:    logger,
	})
	if err := server.Serve(port); err != nil {
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

// selectBackend picks the state backend from the environment: Redis
// when REDIS_ADDR is set, a GCS bucket when STATE_BUCKET is set, and a
// local directory otherwise.
func selectBackend(ctx context.Context, logger *slog.Logger) (store.Backend, error) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		logger.Info("Using Redis state backend", "addr", addr)
		return store.NewRedisBackend(redis.NewClient(&redis.Options{Addr: addr})), nil
	}
	if bucket := os.Getenv("STATE_BUCKET"); bucket != "" {
		logger.Info("Using bucket state backend", "bucket", bucket)
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewBucketBackend(client, bucket, logger), nil
	}

	path := os.Getenv("LOCAL_STATE")
	if path == "" {
		path = "./state"
		logger.Info("No state backend configured, defaulting to local directory", "state_path", path)
	}
	return store.NewDirBackend(path)
}

// syncLoop reconciles immediately, then on every tick.
func syncLoop(ctx context.Context, manager *reconcile.Manager, logger *slog.Logger) {
	interval := defaultSyncInterval
	if raw := os.Getenv("SYNC_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn("Invalid SYNC_INTERVAL, using default", "value", raw, "error", err)
		} else {
			interval = parsed
		}
	}
	logger.Info("Starting sync loop", "interval", interval.String())

	if err := manager.SyncAll(ctx); err != nil {
		logger.Warn("Initial sync finished with failures", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := manager.SyncAll(ctx); err != nil {
				logger.Warn("Scheduled sync finished with failures", "error", err)
			}
		}
	}
}
