// Package server exposes the task store as a read-only JSON API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/hierarchy"
	"github.com/ldi/agrasandhani/internal/stats"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"go.uber.org/zap"
)

// TaskReader is the part of the store the API reads from.
type TaskReader interface {
	List(ctx context.Context, f filter.Filter, order filter.Order) ([]models.Task, error)
	Details(ctx context.Context, id string) (store.Details, error)
	Tree(ctx context.Context) []hierarchy.Entry
	Stats(ctx context.Context) (stats.Snapshot, error)
	Now() time.Time
}

type Server struct {
	tasks  TaskReader
	logger *zap.Logger
	server *http.Server
}

func NewServer(tasks TaskReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{tasks: tasks, logger: logger}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), ginZapMiddleware(s.logger))

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	{
		api.GET("/tasks", s.handleTasks)
		api.GET("/tasks/:id", s.handleTask)
		api.GET("/tree", s.handleTree)
		api.GET("/stats", s.handleStats)
	}
	return r
}

// Serve accepts connections on ln until Shutdown. A server that was shut
// down before Serve returns nil immediately.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http api listening", zap.String("addr", ln.Addr().String()))
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
