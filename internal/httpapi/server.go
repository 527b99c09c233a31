// Package httpapi exposes the read surface named in spec.md §4.10:
// price/ohlcv/providers/health, a futures-family pass-through group,
// and Binance/Polygon webhook receivers. Grounded on
// internal/interfaces/http/server.go's middleware chain and route
// registration shape, with log.Printf replaced by the teacher's
// zerolog idiom elsewhere in the repo.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type requestIDKey struct{}

// Config holds server configuration, grounded on the teacher's
// ServerConfig (host/port/timeouts), extended with RequestTimeout
// (the teacher hardcodes 5s in timeoutMiddleware).
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	// RateLimitRPS/RateLimitBurst throttle inbound requests per client
	// IP; RateLimitRPS<=0 disables throttling entirely.
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultConfig matches the teacher's DefaultServerConfig. It reads no
// environment variables; callers overwrite Host and Port as needed.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Server wraps a gorilla/mux router and the http.Server it serves.
type Server struct {
	router    *mux.Router
	server    *http.Server
	config    Config
	rateLimit *ipLimiter
	log       zerolog.Logger
}

// NewServer builds a Server with all spec.md §4.10 routes registered
// against the given Handlers.
func NewServer(config Config, h *Handlers, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, config: config, log: log.With().Str("component", "httpapi").Logger()}
	if config.RateLimitRPS > 0 {
		burst := config.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.rateLimit = newIPLimiter(config.RateLimitRPS, burst)
	}

	router.Use(s.requestIDMiddleware)
	router.Use(s.loggingMiddleware)
	router.Use(s.rateLimitMiddleware)
	router.Use(s.timeoutMiddleware)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/price", h.Price).Methods(http.MethodGet)
	router.HandleFunc("/ohlcv", h.OHLCV).Methods(http.MethodGet)
	router.HandleFunc("/providers", h.Providers).Methods(http.MethodGet)

	futures := router.PathPrefix("/futures").Subrouter()
	for _, endpoint := range futuresEndpoints {
		futures.HandleFunc("/"+endpoint, h.Futures(endpoint)).Methods(http.MethodGet)
	}

	router.HandleFunc("/webhooks/binance", h.BinanceWebhook).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/polygon", h.PolygonWebhook).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "the requested endpoint does not exist")
	})

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Mount registers an additional handler on the server's router, for
// collaborators assembled outside this package (the streaming hub,
// the Prometheus metrics endpoint).
func (s *Server) Mount(path string, h http.Handler) {
	s.router.Handle(path, h)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		s.log.Info().
			Str("request_id", requestIDFrom(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Start serves until the process is killed or ListenAndServe errors.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}
