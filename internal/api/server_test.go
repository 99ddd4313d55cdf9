package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/export"
	"github.com/user/book-archiver/internal/monitoring"
	"github.com/user/book-archiver/internal/storage"
	"github.com/user/book-archiver/internal/store"
	"github.com/user/book-archiver/internal/usecase"
)

type testServer struct {
	*httptest.Server
	store   *store.ImageStore
	repo    *storage.MemoryStore
	metrics *monitoring.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	repo := storage.NewMemoryStore()
	st := store.Load(context.Background(), repo, store.StorageKey(store.DefaultKeyPrefix, "https://reader.example/book/1"), logger)

	archive := usecase.NewArchiveUseCase(usecase.Config{
		Store:    st,
		Exporter: export.NewExporter(export.PDFFactory(export.A4, export.Portrait), logger),
		Metrics:  metrics,
		Logger:   logger,
	})
	srv := NewServer(Config{
		PDFFilename: "book.pdf",
		Archive:     archive,
		Repo:        repo,
		Gatherer:    reg,
		Metrics:     metrics,
		Logger:      logger,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: st, repo: repo, metrics: metrics}
}

func (ts *testServer) addPages(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 16, 24))
		for y := 0; y < 24; y++ {
			for x := 0; x < 16; x++ {
				img.Set(x, y, color.RGBA{R: uint8(i * 60), G: uint8(x * 10), B: uint8(y * 10), A: 255})
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatal(err)
		}
		page := domain.CapturedPage{
			EncodedImage: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
			Width:        800,
			Height:       1200,
		}
		if _, err := ts.store.Append(context.Background(), page); err != nil {
			t.Fatal(err)
		}
	}
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeJSON(t, resp.Body); body["storage"] != "healthy" {
		t.Errorf("body = %v", body)
	}

	ts.repo.Close()
	resp2, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", resp2.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.addPages(t, 2)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body := decodeJSON(t, resp.Body)
	if body["pages_saved"] != float64(2) || body["status"] != "Pages saved: 2" {
		t.Errorf("body = %v", body)
	}
}

func TestExport_Empty(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/export", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decodeJSON(t, resp.Body); body["error"] != "No pages saved!" {
		t.Errorf("body = %v", body)
	}
}

func TestExport_PDF(t *testing.T) {
	ts := newTestServer(t)
	ts.addPages(t, 3)

	resp, err := http.Post(ts.URL+"/api/export", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="book.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if pc := resp.Header.Get("X-Page-Count"); pc != "3" {
		t.Errorf("X-Page-Count = %q", pc)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	n, err := export.CountPages(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if n != 3 {
		t.Errorf("PDF has %d pages, want 3", n)
	}
}

func TestClear(t *testing.T) {
	ts := newTestServer(t)
	ts.addPages(t, 2)

	resp, err := http.Post(ts.URL+"/api/clear", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeJSON(t, resp.Body); body["message"] != "Storage cleared!" {
		t.Errorf("body = %v", body)
	}
	if ts.store.Len() != 0 {
		t.Errorf("store has %d pages after clear", ts.store.Len())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if v := testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/status", "200")); v != 1 {
		t.Errorf("requests for /api/status = %v, want 1", v)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "archiver_http_requests_total") {
		t.Error("/metrics does not expose archiver_http_requests_total")
	}
}
