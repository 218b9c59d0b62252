package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const maxFormBytes = 64 << 10

// NewRouter serves the handler over plain HTTP. Requests are converted to
// API Gateway proxy events so both entrypoints share one code path.
func NewRouter(h *Handler, allowedOrigin string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", correlationHeader},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         300,
	}))

	serve := h.ServeHTTP
	r.Get(healthPath, serve)
	r.Get("/*", serve)
	r.Post("/pages/{pageID}/start", serve)
	r.Post("/pages/{pageID}/messages", serve)
	r.NotFound(serve)
	r.MethodNotAllowed(serve)
	return r
}

// ServeHTTP adapts an http.Request to Handle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	if cookies := r.Header.Values("Cookie"); len(cookies) > 0 {
		headers["Cookie"] = strings.Join(cookies, "; ")
	}

	resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	if err != nil {
		slog.Error("handler failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, resp.Body)
	}
}
