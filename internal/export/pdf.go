package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is the page-oriented drawing surface the exporter renders onto.
// A new Document already holds one empty page.
type Document interface {
	// PageSize returns the current page size in millimeters.
	PageSize() (width, height float64)
	// AddPage starts a new page.
	AddPage()
	// AddImage draws encoded image data at (x, y) with size (w, h) on the current page.
	AddImage(name string, data []byte, imageType string, x, y, w, h float64) error
	// Output writes the finished document to w.
	Output(w io.Writer) error
}

// DocumentFactory creates an empty Document.
type DocumentFactory func() Document

// pdfDocument adapts a gofpdf document to Document.
type pdfDocument struct {
	pdf *gofpdf.Fpdf
}

// NewPDF returns a PDF Document in millimeters with one empty page.
func NewPDF(format PageFormat, orientation Orientation) Document {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: string(orientation),
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: format.Width, Ht: format.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("book-archiver", true)
	pdf.AddPage()
	return &pdfDocument{pdf: pdf}
}

// PDFFactory returns a DocumentFactory producing NewPDF documents.
func PDFFactory(format PageFormat, orientation Orientation) DocumentFactory {
	return func() Document { return NewPDF(format, orientation) }
}

func (d *pdfDocument) PageSize() (float64, float64) {
	return d.pdf.GetPageSize()
}

func (d *pdfDocument) AddPage() {
	d.pdf.AddPage()
}

func (d *pdfDocument) AddImage(name string, data []byte, imageType string, x, y, w, h float64) error {
	opts := gofpdf.ImageOptions{ImageType: imageType}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if d.pdf.Err() {
		return fmt.Errorf("pdf: add image %s: %w", name, d.pdf.Error())
	}
	return nil
}

func (d *pdfDocument) Output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: output: %w", err)
	}
	return nil
}

// CountPages reads a PDF and returns its page count.
func CountPages(rs io.ReadSeeker) (int, error) {
	n, err := api.PageCount(rs, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdf: count pages: %w", err)
	}
	return n, nil
}
