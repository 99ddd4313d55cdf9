// Package capture turns observed image elements into stored page images.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/monitoring"
	"github.com/user/book-archiver/internal/store"
	"github.com/user/book-archiver/pkg/utils"
)

// ErrRasterize is the base error for failed rasterizations.
var ErrRasterize = errors.New("capture: rasterize failed")

// ErrNotLoaded is returned by Rasterizer.Rasterize for an image that has not
// finished loading.
var ErrNotLoaded = errors.New("capture: image not loaded")

// Rasterizer draws an image element onto an off-screen surface at its natural
// size and encodes it as a still image.
type Rasterizer interface {
	// Rasterize draws el now, or returns ErrNotLoaded if it is still loading.
	Rasterize(ctx context.Context, el domain.ImageElement) (domain.CapturedPage, error)
	// RasterizeOnLoad waits for el to finish loading, then draws it.
	RasterizeOnLoad(ctx context.Context, el domain.ImageElement) (domain.CapturedPage, error)
}

// StatusReporter receives the store size after every insertion.
type StatusReporter interface {
	ReportCount(ctx context.Context, n int)
}

// Pipeline feeds the image store from element notifications.
type Pipeline struct {
	store      *store.ImageStore
	rasterizer Rasterizer
	reporters  []StatusReporter
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	timeout    time.Duration

	mu     sync.Mutex
	closed bool
	last   chan struct{} // closed when the latest batch has been drawn
	wg     sync.WaitGroup
}

// Config for creating a Pipeline.
type Config struct {
	Store      *store.ImageStore
	Rasterizer Rasterizer
	Reporters  []StatusReporter
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	// Timeout bounds a single rasterization, including the wait for the
	// image to load. Zero waits until the context is cancelled.
	Timeout time.Duration
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		store:      cfg.Store,
		rasterizer: cfg.Rasterizer,
		reporters:  cfg.Reporters,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		timeout:    cfg.Timeout,
	}
}

// AddReporter registers another status reporter. Call before Notify.
func (p *Pipeline) AddReporter(r StatusReporter) {
	p.reporters = append(p.reporters, r)
}

// Notify handles a batch of newly observed image elements without waiting.
// Loaded images are stored in notification order, batch by batch; an image
// still loading is stored when its load completes. Notify is a no-op after
// Close.
func (p *Pipeline) Notify(ctx context.Context, elements []domain.ImageElement) {
	var batch []domain.ImageElement
	for _, el := range elements {
		if el.IsEphemeral() {
			batch = append(batch, el)
		}
	}
	if len(batch) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Debug("pipeline closed, dropping notification", zap.Int("elements", len(batch)))
		return
	}
	prev, done := p.last, make(chan struct{})
	p.last = done
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		for _, el := range batch {
			p.captureLoaded(ctx, el)
		}
	}()
}

// Close stops accepting notifications. Captures already started keep running;
// use Wait to drain them.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every capture started by Notify has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) captureLoaded(ctx context.Context, el domain.ImageElement) {
	rctx, cancel := p.withTimeout(ctx)
	page, err := p.rasterizer.Rasterize(rctx, el)
	cancel()
	if errors.Is(err, ErrNotLoaded) {
		// The batch worker is still counted, so this Add never races Wait.
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.captureOnLoad(ctx, el)
		}()
		return
	}
	p.record(ctx, el, page, err)
}

func (p *Pipeline) captureOnLoad(ctx context.Context, el domain.ImageElement) {
	rctx, cancel := p.withTimeout(ctx)
	defer cancel()
	page, err := p.rasterizer.RasterizeOnLoad(rctx, el)
	p.record(ctx, el, page, err)
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) record(ctx context.Context, el domain.ImageElement, page domain.CapturedPage, err error) {
	if err != nil {
		// Not retried; the next notification is unaffected.
		p.logger.Warn("error processing image", zap.String("id", el.ID), zap.String("src", el.Src), zap.Error(err))
		p.metrics.IncCaptureErrors("rasterize")
		return
	}

	inserted, err := p.store.Append(ctx, page)
	if err != nil {
		p.logger.Error("failed to persist pages", zap.String("key", p.store.Key()), zap.Error(err))
		p.metrics.IncCaptureErrors("persist")
	}
	if !inserted {
		p.logger.Debug("skipping duplicate page", zap.String("id", el.ID), zap.String("hash", utils.ShortHash(page.EncodedImage)))
		p.metrics.IncDuplicates()
		return
	}

	n := p.store.Len()
	p.metrics.IncCaptured()
	p.metrics.SetStorePages(n)
	p.logger.Info("page captured",
		zap.String("id", el.ID),
		zap.Int("width", page.Width),
		zap.Int("height", page.Height),
		zap.Int("pages", n),
	)
	for _, r := range p.reporters {
		r.ReportCount(ctx, n)
	}
}
