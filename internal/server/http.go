package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewRouter registers the note API on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	router.GET("/healthz", h.HealthCheck)

	api := router.Group("/v1")
	{
		api.POST("/notes", h.CreateNote)
		api.GET("/notes", h.ListNotes)
		api.GET("/notes/export.xlsx", h.ExportNotes)
	}
	return router
}

func New(addr string, h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
			// extraction can take a while; the pipeline has its own timeouts
			WriteTimeout:   3 * time.Minute,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger,
	}
}

func (s *Server) Addr() string { return s.httpServer.Addr }

// Run blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("http.server.listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http.server.shutdown")
	return s.httpServer.Shutdown(ctx)
}
