package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/api"
	"github.com/user/book-archiver/internal/browser"
	"github.com/user/book-archiver/internal/capture"
	"github.com/user/book-archiver/internal/proxy"
	"github.com/user/book-archiver/internal/usecase"
)

// captureGrace is how long shutdown waits for in-flight captures.
const captureGrace = 5 * time.Second

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the reader and archive every page it renders",
		Long: "Launches a browser on the reader URL, captures each page image as it appears, " +
			"and serves the export/clear API until interrupted or the browser window is closed.",
		RunE: runWatch,
	}
	cmd.Flags().String("port", "", "HTTP API port")
	cmd.Flags().Bool("headless", false, "Run the browser without a window")
	cmd.Flags().String("output-dir", "", "Directory for exports triggered from the page")
	cmd.Flags().String("format", "", "Page format: A3, A4, A5, Letter, Legal")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	if err := requireURL(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Captures outlive the signal so in-flight ones can finish during shutdown.
	captureCtx, cancelCaptures := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelCaptures()

	session, err := browser.NewSession(browser.Options{
		Headless:     cfg.Headless,
		NoSandbox:    cfg.NoSandbox,
		ChromePath:   cfg.ChromePath,
		UserDataDir:  cfg.UserDataDir,
		AutoDownload: cfg.AutoDownloadBrowser,
		Stealth:      cfg.Stealth,
		JPEGQuality:  cfg.JPEGQuality,
		Identity:     proxy.NewManager(cfg.Proxies, cfg.UserAgents),
		Logger:       logger.Named("browser"),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	location, err := session.Open(ctx, cfg.ReaderURL)
	if err != nil {
		return err
	}

	// The key is fixed for the session: later in-tab navigation keeps
	// archiving into the store of the document that was opened.
	st := a.openStore(ctx, location)
	a.console.Successf("Watching %s", location)
	a.console.ReportCount(ctx, st.Len())

	reporters := []capture.StatusReporter{session, a.console}
	pipeline := capture.NewPipeline(capture.Config{
		Store:      st,
		Rasterizer: session,
		Reporters:  reporters,
		Metrics:    a.metrics,
		Logger:     logger.Named("capture"),
		Timeout:    cfg.CaptureTimeout,
	})

	archive, err := a.newArchive(st, reporters, []usecase.Notifier{session, a.console})
	if err != nil {
		return err
	}

	if cfg.ShowControls {
		if err := session.InstallControls(captureCtx, archive.HandleControl); err != nil {
			return err
		}
	}
	if err := session.Observe(captureCtx, pipeline.Notify); err != nil {
		return err
	}

	// Pages rendered before the observer was attached.
	html, err := session.Snapshot(ctx)
	if err != nil {
		return err
	}
	existing, err := capture.ScanHTML(html)
	if err != nil {
		return err
	}
	logger.Info("initial scan", zap.Int("images", len(existing)))
	pipeline.Notify(captureCtx, existing)

	server := api.NewServer(api.Config{
		Port:        cfg.ServerPort,
		PDFFilename: cfg.PDFFilename,
		Archive:     archive,
		Repo:        a.repo,
		Gatherer:    a.registry,
		Metrics:     a.metrics,
		Logger:      logger.Named("api"),
	})
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-session.Done():
		logger.Info("browser window closed, shutting down")
	case runErr = <-serverErr:
		logger.Error("could not start server", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	waitForCaptures(pipeline, cancelCaptures, logger)
	a.console.ReportCount(context.Background(), st.Len())
	logger.Info("watcher exiting", zap.Int("pages", st.Len()))
	return runErr
}

// waitForCaptures stops the pipeline taking new notifications, gives
// in-flight captures captureGrace to finish, then cancels them.
func waitForCaptures(p *capture.Pipeline, cancel context.CancelFunc, logger *zap.Logger) {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(captureGrace):
		logger.Warn("cancelling in-flight captures")
		cancel()
		<-done
	}
}
