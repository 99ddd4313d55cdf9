package export

import (
	"fmt"
	"strings"
)

// PageFormat represents paper dimensions in millimeters, portrait.
type PageFormat struct {
	Name   string
	Width  float64
	Height float64
}

// Standard paper sizes.
var (
	A3     = PageFormat{Name: "A3", Width: 297, Height: 420}
	A4     = PageFormat{Name: "A4", Width: 210, Height: 297}
	A5     = PageFormat{Name: "A5", Width: 148, Height: 210}
	Letter = PageFormat{Name: "Letter", Width: 215.9, Height: 279.4}
	Legal  = PageFormat{Name: "Legal", Width: 215.9, Height: 355.6}
)

var formats = map[string]PageFormat{
	"a3":     A3,
	"a4":     A4,
	"a5":     A5,
	"letter": Letter,
	"legal":  Legal,
}

// LookupFormat returns the paper size named name, case-insensitively.
func LookupFormat(name string) (PageFormat, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PageFormat{}, fmt.Errorf("export: unknown page format %q", name)
	}
	return f, nil
}

// Orientation represents the page orientation.
type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// ParseOrientation accepts P/L or portrait/landscape.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "portrait", "":
		return Portrait, nil
	case "l", "landscape":
		return Landscape, nil
	}
	return "", fmt.Errorf("export: unknown orientation %q", s)
}

// Dimensions returns width and height in millimeters for orientation o.
func (f PageFormat) Dimensions(o Orientation) (width, height float64) {
	if o == Landscape {
		return f.Height, f.Width
	}
	return f.Width, f.Height
}
