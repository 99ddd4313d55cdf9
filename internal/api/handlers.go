package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/usecase"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.archive.Status())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.archive.Export(r.Context(), &buf)
	switch {
	case errors.Is(err, usecase.ErrNoPages):
		s.respondWithError(w, http.StatusBadRequest, usecase.MsgNoPages)
		return
	case errors.Is(err, usecase.ErrExportInProgress):
		s.respondWithError(w, http.StatusConflict, "An export is already running")
		return
	case err != nil:
		s.logger.Error("export request failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not export pages")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Page-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	// The store is empty even when the backend removal failed; Reset logs it.
	_ = s.archive.Reset(r.Context())
	s.respondWithJSON(w, http.StatusOK, map[string]string{"message": usecase.MsgCleared})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Error("health check failed for storage", zap.Error(err))
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"storage": "unhealthy"})
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"storage": "healthy"})
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
