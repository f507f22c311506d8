package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// Webhook paths accepted by the server.
const (
	WebhookPath    = "/webhook"
	APIWebhookPath = "/api/webhook"
)

type Server struct {
	port    int
	logger  *zerolog.Logger
	webhook http.Handler
}

// NewServer creates the HTTP server. webhook may be nil, in which case only
// liveness and metrics are served.
func NewServer(port int, webhook http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		port:    port,
		logger:  logger,
		webhook: webhook,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", liveness)
	mux.HandleFunc("GET /healthz", liveness)
	mux.HandleFunc("GET /{$}", liveness)

	mux.Handle("GET /metrics", promhttp.Handler())

	if s.webhook != nil {
		mux.Handle("POST "+WebhookPath, s.webhook)
		mux.Handle("POST "+APIWebhookPath, s.webhook)
	}

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("HTTP server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
