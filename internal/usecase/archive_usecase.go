package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/capture"
	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/export"
	"github.com/user/book-archiver/internal/monitoring"
	"github.com/user/book-archiver/internal/store"
)

// User-facing notices.
const (
	MsgNoPages  = "No pages saved!"
	MsgExported = "PDF Exported!"
	MsgCleared  = "Storage cleared!"
)

var (
	ErrNoPages          = export.ErrNoPages
	ErrExportInProgress = errors.New("an export is already running")
	ErrUnknownAction    = errors.New("unknown control action")
)

// Notifier shows a notice to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Archive defines the user actions on the page archive.
type Archive interface {
	Export(ctx context.Context, w io.Writer) (int, error)
	ExportToFile(ctx context.Context, path string) (int, error)
	Reset(ctx context.Context) error
	Status() domain.StatusResponse
	HandleControl(ctx context.Context, action domain.ControlAction) error
}

type archiveUseCase struct {
	store      *store.ImageStore
	exporter   *export.Exporter
	reporters  []capture.StatusReporter
	notifiers  []Notifier
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	outputPath string

	exporting atomic.Bool
}

// Config for creating the archive use case.
type Config struct {
	Store      *store.ImageStore
	Exporter   *export.Exporter
	Reporters  []capture.StatusReporter
	Notifiers  []Notifier
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	OutputPath string // target of exports triggered from the page
}

// NewArchiveUseCase creates the export/reset controller.
func NewArchiveUseCase(cfg Config) Archive {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &archiveUseCase{
		store:      cfg.Store,
		exporter:   cfg.Exporter,
		reporters:  cfg.Reporters,
		notifiers:  cfg.Notifiers,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		outputPath: cfg.OutputPath,
	}
}

// Export renders every stored page into a PDF written to w and returns the
// page count. Only one export runs at a time.
func (uc *archiveUseCase) Export(ctx context.Context, w io.Writer) (int, error) {
	return uc.export(ctx, func(pages []domain.CapturedPage) error {
		return uc.exporter.Export(ctx, pages, w)
	})
}

// ExportToFile exports to path, replacing it atomically, and checks the
// written page count.
func (uc *archiveUseCase) ExportToFile(ctx context.Context, path string) (int, error) {
	return uc.export(ctx, func(pages []domain.CapturedPage) error {
		return uc.writeFile(ctx, path, pages)
	})
}

func (uc *archiveUseCase) export(ctx context.Context, write func([]domain.CapturedPage) error) (int, error) {
	if !uc.exporting.CompareAndSwap(false, true) {
		uc.metrics.IncExports("busy")
		return 0, ErrExportInProgress
	}
	defer uc.exporting.Store(false)

	pages := uc.store.Pages()
	if len(pages) == 0 {
		uc.metrics.IncExports("empty")
		uc.notify(ctx, MsgNoPages)
		return 0, ErrNoPages
	}

	start := time.Now()
	if err := write(pages); err != nil {
		uc.metrics.IncExports("failure")
		uc.logger.Error("export failed", zap.Int("pages", len(pages)), zap.Error(err))
		return 0, fmt.Errorf("export: %w", err)
	}
	duration := time.Since(start)

	uc.metrics.IncExports("success")
	uc.metrics.ExportDuration.Observe(duration.Seconds())
	uc.logger.Info("export complete", zap.Int("pages", len(pages)), zap.Int64("duration_ms", duration.Milliseconds()))
	uc.notify(ctx, MsgExported)
	return len(pages), nil
}

func (uc *archiveUseCase) writeFile(ctx context.Context, path string, pages []domain.CapturedPage) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	var buf bytes.Buffer
	if err := uc.exporter.Export(ctx, pages, &buf); err != nil {
		return err
	}

	n, err := export.CountPages(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	if n != len(pages) {
		return fmt.Errorf("written document has %d pages, expected %d", n, len(pages))
	}

	tmp, err := os.CreateTemp(dir, ".archiver-*.pdf")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving export into place: %w", err)
	}
	uc.logger.Info("export written", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return nil
}

// Reset clears the store and the status readout. The user is always told
// the storage was cleared; a backend failure is logged and returned.
func (uc *archiveUseCase) Reset(ctx context.Context) error {
	err := uc.store.Clear(ctx)

	uc.metrics.SetStorePages(0)
	for _, r := range uc.reporters {
		r.ReportCount(ctx, 0)
	}
	uc.notify(ctx, MsgCleared)

	if err != nil {
		uc.logger.Error("failed to remove stored pages", zap.String("key", uc.store.Key()), zap.Error(err))
		return err
	}
	uc.logger.Info("storage cleared", zap.String("key", uc.store.Key()))
	return nil
}

// Status returns the current page count readout.
func (uc *archiveUseCase) Status() domain.StatusResponse {
	return domain.NewStatus(uc.store.Len())
}

// HandleControl runs the action behind an in-page control.
func (uc *archiveUseCase) HandleControl(ctx context.Context, action domain.ControlAction) error {
	switch action {
	case domain.ActionExport:
		_, err := uc.ExportToFile(ctx, uc.outputPath)
		return err
	case domain.ActionClear:
		return uc.Reset(ctx)
	case domain.ActionStatus:
		n := uc.store.Len()
		for _, r := range uc.reporters {
			r.ReportCount(ctx, n)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (uc *archiveUseCase) notify(ctx context.Context, message string) {
	for _, n := range uc.notifiers {
		n.Notify(ctx, message)
	}
}
