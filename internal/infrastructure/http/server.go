package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"egress-worker/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the status HTTP server
type Server struct {
	server *http.Server
	router *gin.Engine
}

// NewServer creates a new HTTP server
func NewServer(addr string, handler *Handler) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		router: router,
	}
}

// Start serves until Stop is called
func (s *Server) Start() error {
	log.L().Info("Starting HTTP server", zap.String("event", "server_start"), zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.L().Info("Stopping HTTP server", zap.String("event", "server_stop"))
	return s.server.Shutdown(ctx)
}
