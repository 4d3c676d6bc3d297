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

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/api"
	"github.com/JakeFAU/patent-collector/internal/artifact"
	"github.com/JakeFAU/patent-collector/internal/config"
	"github.com/JakeFAU/patent-collector/internal/control"
	"github.com/JakeFAU/patent-collector/internal/extract"
	collyfetcher "github.com/JakeFAU/patent-collector/internal/fetcher/colly"
	"github.com/JakeFAU/patent-collector/internal/fetcher/download"
	"github.com/JakeFAU/patent-collector/internal/logging"
	"github.com/JakeFAU/patent-collector/internal/logsink"
	"github.com/JakeFAU/patent-collector/internal/metrics"
	"github.com/JakeFAU/patent-collector/internal/patent"
	"github.com/JakeFAU/patent-collector/internal/platform"
	memorypublisher "github.com/JakeFAU/patent-collector/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/patent-collector/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/patent-collector/internal/queue/memory"
	"github.com/JakeFAU/patent-collector/internal/registry"
	"github.com/JakeFAU/patent-collector/internal/storage/gcs"
	"github.com/JakeFAU/patent-collector/internal/storage/postgres"
	"github.com/JakeFAU/patent-collector/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	if err := run(cfg, logger); err != nil {
		logger.Error("patentd exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Scraper.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	clock := platform.SystemClock{}
	journal := logsink.New(cfg.Logs.Capacity, logger.Named("core"))
	skipped := registry.Load(cfg.RegistryPath(), logger.Named("registry"))
	queue := queueMemory.NewQueue()

	var mirror artifact.Mirror
	if cfg.Storage.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("gcs client close failed", zap.Error(closeErr))
			}
		}()
		gcsMirror, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("create gcs mirror: %w", err)
		}
		mirror = gcsMirror
		logger.Info("gcs mirror enabled", zap.String("bucket", cfg.Storage.GCSBucket))
	}

	var indexer patent.Indexer
	if cfg.DB.DSN != "" {
		index, err := postgres.NewPatentIndex(ctx, postgres.IndexConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec // Validate bounds db.max_conns to int32
		})
		if err != nil {
			return fmt.Errorf("create patent index: %w", err)
		}
		defer index.Close()
		if err := index.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare patent index: %w", err)
		}
		indexer = index
		logger.Info("postgres patent index enabled", zap.String("table", cfg.DB.Table))
	}

	events := memorypublisher.New(memorypublisher.DefaultLimit)
	var publisher patent.Publisher = events
	var eventSource control.EventSource = events
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		pub := pubsubpublisher.New(client)
		defer pub.Stop()
		publisher = pub
		eventSource = nil
		logger.Info("pubsub publisher enabled", zap.String("topic", cfg.PubSub.TopicName))
	}

	downloader := download.New(download.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Timeout:        cfg.DownloadTimeout(),
	})
	store := artifact.New(artifact.Config{
		BaseDir:      cfg.Scraper.BaseDir,
		SiteRoot:     cfg.Scraper.SiteRoot,
		MirrorPrefix: cfg.Storage.Prefix,
	}, downloader, clock, journal, mirror, logger.Named("artifact"))

	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		RespectRobots:  cfg.Scraper.RespectRobots,
		Timeout:        cfg.PageTimeout(),
	})

	w := worker.New(worker.Deps{
		Queue:     queue,
		Fetcher:   pageFetcher,
		Extractor: extract.New(cfg.Scraper.SiteRoot),
		Store:     store,
		Registry:  skipped,
		Journal:   journal,
		Clock:     clock,
		Publisher: publisher,
		Indexer:   indexer,
		Hasher:    platform.PageHasher{},
		IDs:       platform.RunIDs{},
	}, worker.Config{
		PausePoll:   cfg.PausePoll(),
		DequeueWait: cfg.DequeueWait(),
		Topic:       cfg.PubSub.TopicName,
	}, logger.Named("worker"))

	svc := control.New(w, queue, store, skipped, journal, eventSource, clock, logger.Named("control"))
	apiServer := api.NewServer(svc, cfg.Server.AllowedOrigins, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		logger.Info("worker started")
		w.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-workerDone
	logger.Info("shutdown complete")
	return nil
}
