package browser

import (
	"strings"
	"testing"
)

func TestDecodeNotifyPayload(t *testing.T) {
	got, err := decodeNotifyPayload(`[{"id":"img-1","src":"blob:https://r.example/a"},{"id":"","src":"blob:x"},{"id":"img-2","src":"https://r.example/cover.jpg"}]`)
	if err != nil {
		t.Fatalf("decodeNotifyPayload: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d elements, want 2: %+v", len(got), got)
	}
	if got[0].ID != "img-1" || !got[0].IsEphemeral() {
		t.Errorf("first element = %+v", got[0])
	}
	// Filtering by source is the pipeline's job.
	if got[1].ID != "img-2" || got[1].IsEphemeral() {
		t.Errorf("second element = %+v", got[1])
	}

	if _, err := decodeNotifyPayload(`{"id":"img-1"}`); err == nil {
		t.Error("expected error for non-array payload")
	}
}

func TestScriptsQuoteArguments(t *testing.T) {
	s, err := rasterizeScript(`img-"1"`, 0.92, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(s, `)("img-\"1\"", 0.92, false);`) {
		t.Errorf("rasterize call = %q", s[len(s)-40:])
	}
	s, err = rasterizeScript("img-2", 0.5, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(s, `)("img-2", 0.5, true);`) {
		t.Errorf("rasterize call = %q", s[len(s)-40:])
	}

	s, err = statusScript("Pages saved: 3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "archive-status") || !strings.HasSuffix(s, `)("Pages saved: 3");`) {
		t.Errorf("status script = %q", s)
	}

	s, err = alertScript("PDF Exported!")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "setTimeout") {
		t.Error("alert must not block the evaluation")
	}
}

func TestObserverScriptOptions(t *testing.T) {
	if s := observerScript(true); !strings.HasSuffix(s, `)({"reportExisting":true});`) {
		t.Errorf("observerScript(true) ends with %q", s[len(s)-30:])
	}
	if s := observerScript(false); !strings.HasSuffix(s, `)({"reportExisting":false});`) {
		t.Errorf("observerScript(false) ends with %q", s[len(s)-30:])
	}
	for _, want := range []string{NotifyBinding, "data-archiver-id", "MutationObserver", "subtree: true"} {
		if !strings.Contains(observerJS, want) {
			t.Errorf("observer.js does not mention %q", want)
		}
	}
	for _, want := range []string{ControlBinding, "export-pdf-button", "clear-storage-button", "archive-status", "3000"} {
		if !strings.Contains(controlsJS, want) {
			t.Errorf("controls.js does not mention %q", want)
		}
	}
}
