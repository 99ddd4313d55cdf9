// Package browser drives the reader tab over the Chrome DevTools Protocol:
// it opens the reader, watches the document for page images, rasterizes
// them and hosts the in-page controls.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/capture"
	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/proxy"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("browser: session closed")

// Sink receives batches of image elements inserted into the document.
type Sink func(ctx context.Context, elements []domain.ImageElement)

// ControlHandler runs an action triggered from the in-page controls.
type ControlHandler func(ctx context.Context, action domain.ControlAction) error

// Options configure a Session.
type Options struct {
	Headless     bool
	NoSandbox    bool
	ChromePath   string
	UserDataDir  string
	AutoDownload bool
	Stealth      bool
	JPEGQuality  float64
	Identity     *proxy.Manager // user agent and proxy server; optional
	Logger       *zap.Logger
}

// Session is one browser process with a single reader tab.
type Session struct {
	opts   Options
	logger *zap.Logger

	allocCancel   context.CancelFunc
	tabCtx        context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sink     Sink
	sinkCtx  context.Context
	control  ControlHandler
	ctrlCtx  context.Context
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession launches the browser and opens its tab. The caller must call
// Close when finished.
func NewSession(opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 1 {
		opts.JPEGQuality = 0.92
	}
	logger := opts.Logger

	execPath, err := resolveBrowser(opts.ChromePath, opts.AutoDownload, logger)
	if err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(1280, 960),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.Identity != nil {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.Identity.GetUserAgent()))
		if p := opts.Identity.GetProxy(); p != "" {
			allocOpts = append(allocOpts, chromedp.ProxyServer(p))
			logger.Info("using proxy server", zap.String("proxy", p))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	s := &Session{
		opts:          opts,
		logger:        logger,
		allocCancel:   allocCancel,
		tabCtx:        tabCtx,
		browserCancel: browserCancel,
		done:          make(chan struct{}),
	}
	chromedp.ListenTarget(tabCtx, s.onTargetEvent)

	// Start the browser eagerly so errors surface at creation time.
	startup := []chromedp.Action{}
	if opts.Stealth {
		startup = append(startup, addScriptOnNewDocument(stealth.JS))
	}
	if err := chromedp.Run(tabCtx, startup...); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: starting browser: %w", err)
	}
	logger.Info("browser started", zap.Bool("headless", opts.Headless), zap.String("exec_path", execPath))
	return s, nil
}

// Open navigates the tab to url, waits for the body and returns the final
// document address.
func (s *Session) Open(ctx context.Context, url string) (string, error) {
	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return "", fmt.Errorf("browser: open %s: %w", url, err)
	}
	s.logger.Info("reader opened", zap.String("url", url), zap.String("location", location))
	return location, nil
}

// Observe starts reporting image elements inserted into the current and every
// later document of the tab to sink. Images already present in the current
// document are only tagged; use Snapshot and capture.ScanHTML for them.
func (s *Session) Observe(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	s.sink, s.sinkCtx = sink, ctx
	s.mu.Unlock()

	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(runCtx,
		runtime.AddBinding(NotifyBinding),
		addScriptOnNewDocument(observerScript(true)),
		chromedp.Evaluate(observerScript(false), nil),
	); err != nil {
		return fmt.Errorf("browser: install observer: %w", err)
	}
	s.logger.Debug("observer installed")
	return nil
}

// InstallControls inserts the export/clear controls into the current and
// every later document of the tab.
func (s *Session) InstallControls(ctx context.Context, handler ControlHandler) error {
	s.mu.Lock()
	s.control, s.ctrlCtx = handler, ctx
	s.mu.Unlock()

	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	script := controlsScript()
	if err := chromedp.Run(runCtx,
		runtime.AddBinding(ControlBinding),
		addScriptOnNewDocument(script),
		chromedp.Evaluate(script, nil),
	); err != nil {
		return fmt.Errorf("browser: install controls: %w", err)
	}
	s.logger.Debug("controls installed")
	return nil
}

// Snapshot returns the current document's outer HTML.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: snapshot: %w", err)
	}
	return html, nil
}

// Rasterize implements capture.Rasterizer. It draws a loaded element at
// natural size and encodes it as JPEG, or returns capture.ErrNotLoaded.
func (s *Session) Rasterize(ctx context.Context, el domain.ImageElement) (domain.CapturedPage, error) {
	return s.rasterize(ctx, el, false)
}

// RasterizeOnLoad implements capture.Rasterizer. It waits for the element's
// load event before drawing.
func (s *Session) RasterizeOnLoad(ctx context.Context, el domain.ImageElement) (domain.CapturedPage, error) {
	return s.rasterize(ctx, el, true)
}

func (s *Session) rasterize(ctx context.Context, el domain.ImageElement, wait bool) (domain.CapturedPage, error) {
	script, err := rasterizeScript(el.ID, s.opts.JPEGQuality, wait)
	if err != nil {
		return domain.CapturedPage{}, err
	}
	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return domain.CapturedPage{}, err
	}
	defer cancel()

	var res rasterResult
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &res, awaitPromise)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.CapturedPage{}, ctxErr
		}
		return domain.CapturedPage{}, fmt.Errorf("%w: %s: %v", capture.ErrRasterize, el.ID, err)
	}
	if res.Pending {
		return domain.CapturedPage{}, capture.ErrNotLoaded
	}
	if res.DataURL == "" || res.Width <= 0 || res.Height <= 0 {
		return domain.CapturedPage{}, fmt.Errorf("%w: %s: empty result", capture.ErrRasterize, el.ID)
	}
	return domain.CapturedPage{EncodedImage: res.DataURL, Width: res.Width, Height: res.Height}, nil
}

// ReportCount implements capture.StatusReporter by updating the in-page
// status readout.
func (s *Session) ReportCount(ctx context.Context, n int) {
	script, err := statusScript(domain.StatusText(n))
	if err != nil {
		return
	}
	s.evaluate(ctx, script, "status update")
}

// Notify implements usecase.Notifier with a page alert.
func (s *Session) Notify(ctx context.Context, message string) {
	script, err := alertScript(message)
	if err != nil {
		return
	}
	s.evaluate(ctx, script, "alert")
}

// Done is closed when the tab goes away, e.g. the user closed the window.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close shuts the browser down. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.browserCancel()
	s.allocCancel()
	s.markDone()
	s.logger.Info("browser closed")
	return nil
}

func (s *Session) evaluate(ctx context.Context, script, what string) {
	runCtx, cancel, err := s.runCtx(ctx)
	if err != nil {
		return
	}
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, nil)); err != nil {
		// The page may be between documents; the next document re-requests status.
		s.logger.Debug("page evaluation failed", zap.String("what", what), zap.Error(err))
	}
}

// runCtx returns a context bound to the tab that is also cancelled with ctx.
func (s *Session) runCtx(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}

	runCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

// onTargetEvent runs on the CDP event goroutine and must not block.
func (s *Session) onTargetEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		go s.handleBinding(ev.Name, ev.Payload)
	case *page.EventJavascriptDialogOpening:
		if s.opts.Headless {
			// Nobody can click a dialog away in headless mode.
			go s.dismissDialog(ev.Message)
		}
	case *inspector.EventDetached:
		s.logger.Warn("browser tab detached", zap.String("reason", string(ev.Reason)))
		s.markDone()
	}
}

func (s *Session) handleBinding(name, payload string) {
	s.mu.Lock()
	sink, sinkCtx := s.sink, s.sinkCtx
	control, ctrlCtx := s.control, s.ctrlCtx
	s.mu.Unlock()

	switch name {
	case NotifyBinding:
		if sink == nil {
			return
		}
		elements, err := decodeNotifyPayload(payload)
		if err != nil {
			s.logger.Warn("ignoring malformed image notification", zap.Error(err))
			return
		}
		s.logger.Debug("images inserted", zap.Int("count", len(elements)))
		sink(sinkCtx, elements)

	case ControlBinding:
		if control == nil {
			return
		}
		action := domain.ControlAction(payload)
		if err := control(ctrlCtx, action); err != nil {
			s.logger.Warn("control action failed", zap.String("action", payload), zap.Error(err))
		}
	}
}

func (s *Session) dismissDialog(message string) {
	runCtx, cancel, err := s.runCtx(context.Background())
	if err != nil {
		return
	}
	defer cancel()
	if err := chromedp.Run(runCtx, page.HandleJavaScriptDialog(true)); err != nil {
		s.logger.Debug("dismiss dialog failed", zap.Error(err))
		return
	}
	s.logger.Info("page notice", zap.String("message", message))
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func addScriptOnNewDocument(source string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	})
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
