// Package main implements the lens dataset-inspection server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	"github.com/visionset/lens/engine/capability/visionhttp"
	"github.com/visionset/lens/engine/ingest"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/plugin"
	"github.com/visionset/lens/engine/store"
	"github.com/visionset/lens/engine/tasks"
	"github.com/visionset/lens/engine/vectorindex"
	"github.com/visionset/lens/httpapi"
	"github.com/visionset/lens/pkg/metrics"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	DBPath       string
	CacheDir     string
	PluginDir    string
	VecIndexAddr string
	EmbedURL     string
	EmbedModel   string
	EmbedDim     string
	GCSBucket    string
	CORSOrigin   string
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		DBPath:       envOr("LENS_DB_PATH", "/tmp/lens-data/lens.db"),
		CacheDir:     envOr("LENS_CACHE_DIR", "/tmp/lens-data/thumbnails"),
		PluginDir:    envOr("LENS_PLUGIN_DIR", "/tmp/lens-data/plugins"),
		VecIndexAddr: envOr("LENS_VECTOR_INDEX_ADDR", "localhost:6334"),
		EmbedURL:     envOr("LENS_EMBED_URL", "http://localhost:11434"),
		EmbedModel:   envOr("LENS_EMBED_MODEL", "clip-vit-base"),
		EmbedDim:     envOr("LENS_EMBED_DIM", "512"),
		GCSBucket:    envOr("LENS_GCS_BUCKET", ""),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Column store (C1) ---
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// --- Object storage (C2): local always available, GCS wired in when a
	// bucket is configured ---
	var gcsFS *objstore.GCSFS
	if cfg.GCSBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		gcsFS = objstore.NewGCSFS(gcsClient)
	}
	fsRegistry := objstore.NewRegistry(gcsFS)

	// --- Plugin registry (C15): best-effort discovery, never fatal ---
	plugins := plugin.NewRegistry(logger)
	if err := plugins.Discover(cfg.PluginDir); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}

	// --- Vision embedding model (capability.Embedder); the reducer,
	// tagger, and thumbnail codec have no concrete adapter in this repo
	// (§1 out of scope) and are left nil: the task engine and HTTP layer
	// both degrade those specific operations to CapabilityUnavailable. ---
	embedDim := 512
	fmt.Sscanf(cfg.EmbedDim, "%d", &embedDim)
	embedder := visionhttp.New(cfg.EmbedURL, cfg.EmbedModel, embedDim)

	// --- Vector index (C12) ---
	vecClient, err := vectorindex.New(cfg.VecIndexAddr)
	if err != nil {
		return fmt.Errorf("vector index connect: %w", err)
	}
	vecIndex := vectorindex.NewIndex(vecClient, st, cfg.EmbedModel)

	// --- Metrics registry (ambient stack) ---
	metricsReg := metrics.New()

	// --- Ingest orchestrator (C5) ---
	ingestor := ingest.New(ingest.Deps{
		Store:    st,
		FS:       fsRegistry,
		Plugins:  plugins,
		Codec:    nil,
		CacheDir: cfg.CacheDir,
		Metrics:  metricsReg,
		Logger:   logger,
	})

	// --- Task engine (C11) ---
	taskEngine := tasks.New(tasks.Deps{
		Store:     st,
		FS:        fsRegistry,
		VecIndex:  vecIndex,
		Embedder:  embedder,
		Reducer:   nil,
		Tagger:    nil,
		ModelName: cfg.EmbedModel,
		Metrics:   metricsReg,
		Logger:    logger,
	})
	defer taskEngine.Shutdown()

	// --- HTTP surface (C14) ---
	handler := httpapi.New(httpapi.Deps{
		Store:    st,
		FS:       fsRegistry,
		Ingest:   ingestor,
		Plugins:  plugins,
		Tasks:    taskEngine,
		VecIndex: vecIndex,
		Codec:    nil,
		Metrics:  metricsReg,
		CacheDir: cfg.CacheDir,
		Model:    cfg.EmbedModel,
		Logger:   logger,
	}, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lens server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	return st.Flush(shutCtx)
}
