package capture

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/book-archiver/internal/domain"
)

// ElementIDAttr is the attribute the page script stamps on every observed image.
const ElementIDAttr = "data-archiver-id"

// ScanHTML finds the tagged ephemeral-source images already present in a
// document, in document order.
func ScanHTML(htmlContent string) ([]domain.ImageElement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var elements []domain.ImageElement
	doc.Find(`img[src^="` + domain.EphemeralScheme + `"]`).Each(func(i int, s *goquery.Selection) {
		id, ok := s.Attr(ElementIDAttr)
		if !ok || id == "" {
			return
		}
		src, _ := s.Attr("src")
		elements = append(elements, domain.ImageElement{ID: id, Src: src})
	})
	return elements, nil
}
