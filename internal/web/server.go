// Package web serves the catalog as htmx-driven HTML pages and fragments.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lepinkainen/ook/internal/catalog"
)

//go:embed templates/*.html
var templateFS embed.FS

const shutdownTimeout = 5 * time.Second

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	// PageSize is the number of rows per listing page
	PageSize int
	// MetadataTimeout bounds metadata lookups made while handling a request
	MetadataTimeout time.Duration
}

// Server renders the catalog over HTTP.
type Server struct {
	cat    *catalog.Catalog
	opts   Options
	engine *gin.Engine
}

// New builds the router for cat.
func New(cat *catalog.Catalog, opts Options) (*Server, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = catalog.DefaultPageSize
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 20 * time.Second
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(requestLogger(), gin.Recovery())
	engine.SetHTMLTemplate(tmpl)

	s := &Server{cat: cat, opts: opts, engine: engine}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.GET("/", s.index)
	r.GET("/healthz", s.healthz)

	collections := r.Group("/collections")
	collections.GET("", s.listCollections)
	collections.GET("/new", s.newCollectionForm)
	collections.POST("/new", s.createCollection)
	collections.GET("/:id", s.viewCollection)
	collections.POST("/:id/rename", s.renameCollection)
	collections.POST("/:id/add-book", s.addBookByISBN)

	books := r.Group("/books")
	books.GET("", s.listBooks)
	books.GET("/search", s.searchBooks)
	books.GET("/:id", s.viewBook)
	books.PUT("/:id", s.putBook)
	books.DELETE("/:id", s.deleteBook)
	books.POST("/:id/rename", s.renameBook)
	books.POST("/:id/lend", s.lendBook)
	books.POST("/:id/return", s.returnBook)
	books.POST("/:id/fetch", s.fetchBook)
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving catalog", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.cat.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
