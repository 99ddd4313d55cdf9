// Package export lays captured page images out on fixed-size pages and
// writes them as one multi-page document.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/domain"
)

// ErrNoPages is returned when there is nothing to export.
var ErrNoPages = errors.New("export: no pages saved")

// Exporter renders page sequences into documents.
type Exporter struct {
	newDocument DocumentFactory
	logger      *zap.Logger
}

func NewExporter(factory DocumentFactory, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{newDocument: factory, logger: logger}
}

// Export renders pages, one per document page in order, and writes the
// document to w. An empty sequence returns ErrNoPages without creating a
// document.
func (e *Exporter) Export(ctx context.Context, pages []domain.CapturedPage, w io.Writer) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	doc := e.newDocument()
	if err := Render(ctx, doc, pages); err != nil {
		return err
	}
	if err := doc.Output(w); err != nil {
		return err
	}
	e.logger.Info("document exported", zap.Int("pages", len(pages)))
	return nil
}

// Render draws each page image centered and scaled to fit onto its own page
// of doc. The first image uses the document's initial page.
func Render(ctx context.Context, doc Document, pages []domain.CapturedPage) error {
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, imageType, err := DecodeDataURL(p.EncodedImage)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}

		if i > 0 {
			doc.AddPage()
		}
		pageW, pageH := doc.PageSize()
		pl, err := Fit(pageW, pageH, p.Width, p.Height)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		if err := doc.AddImage(name, data, imageType, pl.X, pl.Y, pl.Width, pl.Height); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return nil
}
