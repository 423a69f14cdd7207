// Package server exposes the story collection, the per-client ledger and a
// websocket-hosted viewer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/orgball2608/insta-stories-viewer/internal/catalog"
	"github.com/orgball2608/insta-stories-viewer/internal/ledger"
	"github.com/orgball2608/insta-stories-viewer/internal/ratelimit"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config  *config.Config
	Logger  logger.Logger
	Catalog catalog.Client
	Ledgers *ledger.Registry
	Viewers *viewer.Factory
	Limiter ratelimit.Limiter
}

type Server struct {
	config   *config.Config
	logger   logger.Logger
	catalog  catalog.Client
	ledgers  *ledger.Registry
	viewers  *viewer.Factory
	limiter  ratelimit.Limiter
	upgrader websocket.Upgrader
}

func New(opts Opts) *Server {
	s := &Server{
		config:  opts.Config,
		logger:  opts.Logger.WithComponent("Server"),
		catalog: opts.Catalog,
		ledgers: opts.Ledgers,
		viewers: opts.Viewers,
		limiter: opts.Limiter,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routed mux wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/stories", s.handleStories)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("POST /api/stories/{id}/viewed", s.handleMarkViewed)
	mux.HandleFunc("GET /ws/viewer", s.handleViewer)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return RequestLogMiddleware(s.logger)(corsHandler.Handler(mux))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.config.AllowedOrigins()
	return lo.Contains(allowed, "*") || lo.Contains(allowed, origin)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(fmt.Sprintf("Starting server on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}
