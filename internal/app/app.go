package app

import (
	"context"
	"fmt"

	"github.com/blakestevenson/nimbus-acquire/internal/activity"
	"github.com/blakestevenson/nimbus-acquire/internal/blacklist"
	"github.com/blakestevenson/nimbus-acquire/internal/config"
	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/db"
	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/downloader"
	"github.com/blakestevenson/nimbus-acquire/internal/importer"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/matching"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/blakestevenson/nimbus-acquire/internal/mediainfo"
	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
	"github.com/blakestevenson/nimbus-acquire/internal/naming"
	"github.com/blakestevenson/nimbus-acquire/internal/quality"
	"github.com/blakestevenson/nimbus-acquire/internal/secrets"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App is the wired service graph shared by the server and the CLI
type App struct {
	DB        *pgxpool.Pool
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Config    *configstore.Store
	Indexers  *indexer.PGStore
	Search    *indexer.Service
	Clients   *downloadclient.Manager
	Blacklist *blacklist.Service
	Activity  *activity.Sink
	Downloads *downloader.Service
	Scheduler *downloader.Scheduler
}

// New connects to the database, applies migrations and builds every service
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	sealer, err := secrets.NewSealer(cfg.SecretKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create credential sealer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	configStore := configstore.New(pool)
	mediaStore := media.NewStore(pool, logger)
	qualityService := quality.NewService(pool, logger)

	indexerStore := indexer.NewPGStore(pool, sealer)
	searchService := indexer.NewService(indexerStore, indexer.Options{
		GlobalInterval:     cfg.IndexerGlobalInterval,
		PerIndexerInterval: cfg.IndexerPerIndexerInterval,
		SearchInterval:     cfg.SearchInterval,
		FailureBackoff:     cfg.IndexerFailureBackoff,
		Timeout:            cfg.IndexerTimeout,
	}, m, logger)

	clientManager := downloadclient.NewManager(downloadclient.NewPGStore(pool, sealer), cfg.ClientTimeout, logger)
	blacklistService := blacklist.NewService(blacklist.NewPGStore(pool), logger)

	var notifier activity.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = activity.NewWebhook(cfg.NotifyWebhookURL, cfg.ClientTimeout)
	}
	sink := activity.NewSink(activity.NewPGStore(pool), notifier, logger)

	var importOpts []importer.Option
	prober := mediainfo.NewProber(cfg.FFprobePath, logger)
	if prober.Available() {
		importOpts = append(importOpts, importer.WithProber(prober))
	} else {
		logger.Warn("ffprobe not found, imports rely on release names for quality")
	}
	importService := importer.NewService(
		configStore,
		naming.NewService(configStore, logger),
		qualityService,
		mediaStore,
		logger,
		importOpts...,
	)

	downloads := downloader.NewService(downloader.Deps{
		Store:     downloader.NewPGStore(pool),
		Clients:   clientManager,
		Searcher:  searchService,
		Matcher:   matching.NewMatcher(logger),
		Blacklist: blacklistService,
		Importer:  importService,
		Targets:   mediaStore,
		Activity:  sink,
		Config:    configStore,
		Metrics:   m,
	}, logger)

	return &App{
		DB:        pool,
		Registry:  reg,
		Metrics:   m,
		Config:    configStore,
		Indexers:  indexerStore,
		Search:    searchService,
		Clients:   clientManager,
		Blacklist: blacklistService,
		Activity:  sink,
		Downloads: downloads,
		Scheduler: downloader.NewScheduler(downloads, cfg.PollInterval, m, logger),
	}, nil
}

// Close waits for pending notifications and releases the database pool
func (a *App) Close() {
	a.Activity.Wait()
	a.DB.Close()
}
