// Package backend is the reference message service used for development and
// end-to-end tests of the pitchline client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tOgg1/pitchline/internal/db"
	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/models"
)

const maxBodyBytes = 64 << 10

// Config contains server settings.
type Config struct {
	Addr string

	// RateLimitRPS is the sustained per-client rate. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server serves the message API over HTTP.
type Server struct {
	cfg      Config
	router   *chi.Mux
	messages *db.MessageRepository
	limiter  *limiterPool
	registry *prometheus.Registry
	metrics  *serverMetrics
	logger   zerolog.Logger
}

type serverMetrics struct {
	requests *prometheus.CounterVec
	stored   prometheus.Counter
	limited  prometheus.Counter
}

// NewServer wires the router. Pass a nil registry to get a private one.
func NewServer(cfg Config, messages *db.MessageRepository, registry *prometheus.Registry) *Server {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		messages: messages,
		registry: registry,
		logger:   logging.Component("backend"),
		metrics: &serverMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pitchd",
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			}, []string{"route", "code"}),
			stored: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pitchd",
				Name:      "messages_stored_total",
				Help:      "Messages persisted.",
			}),
			limited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "pitchd",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter.",
			}),
		},
	}
	registry.MustRegister(s.metrics.requests, s.metrics.stored, s.metrics.limited)
	if cfg.RateLimitRPS > 0 {
		s.limiter = newLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/msg", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/conversation", s.conversation)
		r.Post("/send", s.send)
	})

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("API server starting")
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info().Msg("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
			s.metrics.limited.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// wireMessage is the response shape of a stored message.
type wireMessage struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toWire(msg models.Message) wireMessage {
	return wireMessage{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(r.URL.Query().Get("sender"))
	receiver := strings.TrimSpace(r.URL.Query().Get("receiver"))
	if sender == "" || receiver == "" {
		writeError(w, http.StatusBadRequest, "sender and receiver are required")
		return
	}

	msgs, err := s.messages.Conversation(r.Context(), sender, receiver)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("conversation query failed")
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	out := make([]wireMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toWire(msg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

type sendRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Msg      string `json:"msg"`
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg := models.Message{Sender: req.Sender, Receiver: req.Receiver, Content: req.Msg}
	if err := s.messages.Create(r.Context(), &msg); err != nil {
		if errors.Is(err, db.ErrInvalidMessage) {
			var verrs *models.ValidationErrors
			if errors.As(err, &verrs) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": verrs.Error(), "fields": verrs.Errors})
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("message insert failed")
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	s.metrics.stored.Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"message": toWire(msg)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
