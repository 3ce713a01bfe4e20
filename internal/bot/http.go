package bot

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shopbot/internal/metrics"
)

// maxUpdateBytes bounds one webhook body; Telegram updates are far smaller
const maxUpdateBytes = 1 << 20

// HTTPServer exposes the webhook and the liveness routes
type HTTPServer struct {
	bot   *Bot
	token string
}

// NewHTTPServer creates the HTTP surface. Updates are accepted only on /<token>.
func NewHTTPServer(bot *Bot, token string) *HTTPServer {
	return &HTTPServer{bot: bot, token: token}
}

// Handler returns the chi router serving all routes
func (hs *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", hs.handleIndex)
	r.Get("/health", hs.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/"+hs.token, hs.handleWebhook)

	// Wrong methods on known paths look the same as unknown paths
	r.NotFound(http.NotFound)
	r.MethodNotAllowed(http.NotFound)
	return r
}

func (hs *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Bot is running!")
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "OK")
}

// handleWebhook acks every delivery it could not act on with 200 so Telegram
// does not redeliver it. Only a failed handler answers 500.
func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := hs.bot.loggerFor(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		metrics.IncUpdate("", metrics.ResultMalformed)
		logger.Warn("Failed to read webhook body", zap.Error(err))
		ack(w)
		return
	}

	update, err := Decode(body)
	if err != nil {
		result := metrics.ResultMalformed
		if errors.Is(err, ErrUnsupportedUpdate) {
			result = metrics.ResultUnsupported
		}
		metrics.IncUpdate("", result)
		logger.Warn("Ignoring webhook update", zap.Error(err), zap.Int("body_bytes", len(body)))
		ack(w)
		return
	}

	if err := hs.bot.Process(r.Context(), update); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ack(w)
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}
