// Package restapi is a read-only HTTP inspection surface over the
// knowledge graph, semantic memory, and nudge engine: every mutation
// still goes through internal/dispatcher's bridges, this package only
// exposes GET views for operators and UIs. Grounded on the teacher's
// internal/api.Server (gin.Engine, CORS, rate-limit middleware, graceful
// shutdown), trimmed to a handful of read endpoints.
package restapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/logging"
	"github.com/openclaw/kgraph/internal/nudge"
	"github.com/openclaw/kgraph/internal/ratelimit"
	"github.com/openclaw/kgraph/internal/semanticmemory"
	"github.com/openclaw/kgraph/pkg/config"
)

// Server is the REST inspection surface.
type Server struct {
	router *gin.Engine

	reader  *kg.Reader
	memory  *semanticmemory.Store
	nudge   *nudge.Engine
	cfg     *config.Config
	limiter *ratelimit.Limiter
	log     *logging.Logger

	httpServer *http.Server
}

// NewServer builds a Server wired to the same services the dispatcher
// drives.
func NewServer(reader *kg.Reader, memory *semanticmemory.Store, engine *nudge.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("restapi")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		router.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:   []string{"Content-Length", "Retry-After"},
			MaxAge:          12 * time.Hour,
		}))
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	router.Use(RateLimitMiddleware(limiter))
	router.Use(MaxBodySizeMiddleware(MaxBodySize))

	s := &Server{
		router:  router,
		reader:  reader,
		memory:  memory,
		nudge:   engine,
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	s.router.GET("/entities", s.listEntities)
	s.router.GET("/entities/:ref", s.getEntity)
	s.router.GET("/entities/:ref/neighbors", s.getNeighbors)
	s.router.GET("/stale", s.listStale)
	s.router.GET("/stats", s.getStats)
	s.router.GET("/memories/search", s.searchMemories)
	s.router.GET("/nudges", s.getNudges)
}

func (s *Server) health(c *gin.Context) {
	success(c, gin.H{"status": "ok"})
}

// Router exposes the underlying engine for testing.
func (s *Server) Router() *gin.Engine { return s.router }

// StartWithContext serves HTTP until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout. Ported from the teacher's
// Server.StartWithContext.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.RestAPI.Host, s.cfg.RestAPI.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting REST inspection server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("restapi server error: %w", err)
	}
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("stopping REST inspection server")
	return s.httpServer.Shutdown(ctx)
}
