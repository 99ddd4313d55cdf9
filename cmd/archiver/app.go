package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/capture"
	"github.com/user/book-archiver/internal/config"
	"github.com/user/book-archiver/internal/export"
	"github.com/user/book-archiver/internal/monitoring"
	"github.com/user/book-archiver/internal/notify"
	"github.com/user/book-archiver/internal/repository"
	"github.com/user/book-archiver/internal/storage"
	"github.com/user/book-archiver/internal/store"
	"github.com/user/book-archiver/internal/usecase"
	"github.com/user/book-archiver/pkg/logger"
)

// app holds what every command needs: configuration, logging, metrics and
// the storage backend.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	repo     repository.KeyValueRepository
	console  *notify.Console
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("could not create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, err := storage.Open(cmd.Context(), cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("could not open %s storage: %w", cfg.StorageBackend, err)
	}
	log.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	return &app{
		cfg:      cfg,
		logger:   log,
		registry: reg,
		metrics:  monitoring.NewMetrics(reg),
		repo:     repo,
		console:  notify.NewConsole(cmd.OutOrStdout()),
	}, nil
}

func (a *app) close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("closing storage", zap.Error(err))
	}
	a.logger.Sync()
}

// openStore loads the page store for the document at address.
func (a *app) openStore(ctx context.Context, address string) *store.ImageStore {
	key := store.StorageKey(a.cfg.StorageKeyPrefix, address)
	st := store.Load(ctx, a.repo, key, a.logger)
	a.metrics.SetStorePages(st.Len())
	return st
}

func (a *app) newArchive(st *store.ImageStore, reporters []capture.StatusReporter, notifiers []usecase.Notifier) (usecase.Archive, error) {
	format, err := export.LookupFormat(a.cfg.PageFormat)
	if err != nil {
		return nil, err
	}
	orientation, err := export.ParseOrientation(a.cfg.Orientation)
	if err != nil {
		return nil, err
	}
	return usecase.NewArchiveUseCase(usecase.Config{
		Store:      st,
		Exporter:   export.NewExporter(export.PDFFactory(format, orientation), a.logger),
		Reporters:  reporters,
		Notifiers:  notifiers,
		Metrics:    a.metrics,
		Logger:     a.logger,
		OutputPath: a.cfg.OutputPath(),
	}), nil
}

func requireURL(cfg *config.Config) error {
	if cfg.ReaderURL == "" {
		return fmt.Errorf("a document address is required (--url or READER_URL)")
	}
	return nil
}
