package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"OreChat/internal/backend"
	"OreChat/internal/journal"
	"OreChat/internal/prompt"
	"OreChat/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Upstream is the credentialed completion provider behind the relay
type Upstream interface {
	Complete(ctx context.Context, req *prompt.Request) (*provider.Completion, error)
	Stream(ctx context.Context, req *prompt.Request) (backend.Stream, error)
}

// Recorder stores completion metadata
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options configures a relay Server
type Options struct {
	Addr           string
	Model          string
	DefaultPersona prompt.Persona
	RatePerMinute  int
	RateBurst      int
	AllowedOrigins []string
	Journal        Recorder
	Logger         *slog.Logger
}

// Server is the HTTP relay that holds the provider credential on behalf of
// chat clients
type Server struct {
	upstream Upstream
	opts     Options
	logger   *slog.Logger
	journal  Recorder
	metrics  *metrics
	limiter  *clientLimiter
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New builds the relay and its routes
func New(upstream Upstream, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.DefaultPersona == "" {
		opts.DefaultPersona = prompt.PersonaWarm
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		upstream: upstream,
		opts:     opts,
		logger:   opts.Logger,
		journal:  opts.Journal,
		metrics:  newMetrics(),
		limiter:  newClientLimiter(opts.RatePerMinute, opts.RateBurst),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("orechat-relay"))
	r.Use(s.metrics.middleware())
	r.Use(s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	r.GET("/api/completions/recent", s.handleRecent)

	limited := r.Group("/", s.rateLimit())
	limited.POST("/api/chat", s.handleChatStream)
	limited.GET("/api/chat/ws", s.handleChatWebSocket)
	limited.POST("/v1/chat/completions", s.handleCompletions)

	return r
}

// Handler exposes the relay as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", s.opts.Addr, "default_persona", s.opts.DefaultPersona)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("relay shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
