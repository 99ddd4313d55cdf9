package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/book-archiver/internal/domain"
)

// Names of the CDP bindings the page scripts call into.
const (
	NotifyBinding  = "__archiverNotify"
	ControlBinding = "__archiverControl"
)

//go:embed js/observer.js
var observerJS string

//go:embed js/rasterize.js
var rasterizeJS string

//go:embed js/controls.js
var controlsJS string

// call renders a JS function expression applied to JSON-encoded arguments.
func call(fn string, args ...any) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("browser: encode script argument: %w", err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s);", fn, strings.Join(encoded, ", ")), nil
}

type observerOptions struct {
	ReportExisting bool `json:"reportExisting"`
}

func observerScript(reportExisting bool) string {
	s, _ := call(observerJS, observerOptions{ReportExisting: reportExisting})
	return s
}

func rasterizeScript(id string, quality float64, wait bool) (string, error) {
	return call(rasterizeJS, id, quality, wait)
}

func controlsScript() string {
	s, _ := call(controlsJS)
	return s
}

func statusScript(text string) (string, error) {
	return call(`function (t) {
  var el = document.getElementById('archive-status');
  if (el) { el.textContent = t; }
}`, text)
}

// alertScript shows message without blocking the evaluation.
func alertScript(message string) (string, error) {
	return call(`function (m) { setTimeout(function () { alert(m); }, 0); }`, message)
}

// decodeNotifyPayload parses a __archiverNotify payload. Entries without an
// ID are dropped.
func decodeNotifyPayload(payload string) ([]domain.ImageElement, error) {
	var raw []domain.ImageElement
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("browser: decode notify payload: %w", err)
	}
	elements := raw[:0]
	for _, el := range raw {
		if el.ID != "" {
			elements = append(elements, el)
		}
	}
	return elements, nil
}

// rasterResult is what rasterize.js resolves with.
type rasterResult struct {
	DataURL string `json:"dataUrl"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Pending bool   `json:"pending"`
}
