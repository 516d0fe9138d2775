package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReservedPrefix is the path prefix owned by the host. Everything else is routed to the script.
const ReservedPrefix = "/_glacier"

// Processor runs one invocation and always yields a response to send.
type Processor interface {
	Process(ctx context.Context, req domain.Request) domain.Response
}

// Server routes inbound HTTP requests into script invocations.
type Server struct {
	Processor Processor
	Logger    *slog.Logger
	Version   string
	Metrics   http.Handler
	MaxBody   int64
	CORS      bool
}

// Option configures the Server built by NewHandler.
type Option func(*Server)

// WithLogger sets the logger for rejected requests and write failures. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.Logger = l
		}
	}
}

// WithVersion sets the version reported by the info route.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// WithMetrics mounts h under ReservedPrefix + "/metrics".
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.Metrics = h }
}

// WithMaxBody limits inbound request bodies. Larger bodies are answered with 413.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.MaxBody = n }
}

// WithCORS allows cross-origin requests on every route.
func WithCORS(enabled bool) Option {
	return func(s *Server) { s.CORS = enabled }
}

// NewHandler creates a new HTTP handler for the processor.
func NewHandler(p Processor, opts ...Option) http.Handler {
	s := &Server{
		Processor: p,
		Logger:    slog.Default(),
		Version:   "dev",
		MaxBody:   10 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.CORS {
		r.Use(enableCORS)
	}

	r.Route(ReservedPrefix, func(r chi.Router) {
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		if s.Metrics != nil {
			r.Handle("/metrics", s.Metrics)
		}
	})
	r.HandleFunc("/*", s.Invoke)
	r.HandleFunc("/", s.Invoke)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		next.ServeHTTP(w, r)
	})
}

// Invoke hands the request to the script and writes back whatever it committed.
func (s *Server) Invoke(w http.ResponseWriter, r *http.Request) {
	req, err := s.toDomain(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, errUnsupportedMethod):
			http.Error(w, err.Error(), http.StatusMethodNotAllowed)
		case errors.As(err, &tooLarge):
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "invalid request", http.StatusBadRequest)
		}
		s.Logger.Warn("Invoke: request rejected", "error", err, "method", r.Method, "path", r.URL.Path)
		return
	}

	resp := s.Processor.Process(r.Context(), req)
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(resp.Status)
	if resp.HasBody && r.Method != http.MethodHead {
		if _, err := w.Write(resp.Body); err != nil {
			s.Logger.Debug("Invoke: response write failed", "error", err)
		}
	}
}

var errUnsupportedMethod = errors.New("unsupported method")

func (s *Server) toDomain(w http.ResponseWriter, r *http.Request) (domain.Request, error) {
	method := domain.ParseMethod(r.Method)
	if method == domain.MethodUnknown {
		return domain.Request{}, errUnsupportedMethod
	}

	req := domain.NewRequest(method, absoluteURL(r), flatten(r)...)

	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.MaxBody))
	if err != nil {
		return domain.Request{}, err
	}
	if len(body) == 0 && r.ContentLength <= 0 {
		return req, nil
	}
	return req.WithBody(body), nil
}

func absoluteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// flatten lower-cases header names and orders them so scripts see a stable list.
// The Host header is restored since net/http moves it out of the map.
func flatten(r *http.Request) []domain.Header {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := []domain.Header{{Name: "host", Value: r.Host}}
	for _, name := range names {
		for _, v := range r.Header[name] {
			headers = append(headers, domain.Header{Name: strings.ToLower(name), Value: v})
		}
	}
	return headers
}

// GetHealth handles the GET /_glacier/health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Logger, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /_glacier/info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Logger, map[string]string{
		"app":     "glacier-http",
		"version": s.Version,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
