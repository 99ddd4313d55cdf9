package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/book-archiver/internal/monitoring"
	"github.com/user/book-archiver/internal/repository"
	"github.com/user/book-archiver/internal/usecase"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	port       string
	filename   string
	router     http.Handler
	httpServer *http.Server
	archive    usecase.Archive
	repo       repository.KeyValueRepository
	gatherer   prometheus.Gatherer
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// Config for creating a Server.
type Config struct {
	Port        string
	PDFFilename string // attachment name of exported documents
	Archive     usecase.Archive
	Repo        repository.KeyValueRepository
	Gatherer    prometheus.Gatherer // served on /metrics
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.PDFFilename == "" {
		cfg.PDFFilename = "book.pdf"
	}
	s := &Server{
		port:     cfg.Port,
		filename: cfg.PDFFilename,
		archive:  cfg.Archive,
		repo:     cfg.Repo,
		gatherer: cfg.Gatherer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // exports of long books take a while
	}
	s.logger.Info("starting HTTP server", zap.String("port", s.port))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
