package transport

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

// Paths reachable without an API key.
var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/ready":   true,
	"/app":     true,
	"/metrics": true,
}

func isPublic(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}

func (t *HTTPTransport) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.New().String()
		}

		logEvent := t.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent())

		if t.logBodies {
			headers := make(map[string]string)
			for k, v := range r.Header {
				if k != "Authorization" && k != "X-Api-Key" { // Don't log sensitive headers
					headers[k] = strings.Join(v, ", ")
				}
			}
			logEvent.Interface("request_headers", headers)
		}

		if t.logBodies && r.Body != nil {
			// Only the logged prefix is buffered; the rest streams through.
			prefix, err := io.ReadAll(io.LimitReader(r.Body, t.maxBodyLogSize))
			if err != nil {
				t.logger.Debug().Err(err).Msg("Failed to read request body")
			}
			r.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(prefix), r.Body), r.Body}

			if len(prefix) > 0 {
				logBody(logEvent, "request_body", prefix)
			}
		}

		logEvent.Msg("HTTP request received")

		wrapped := &loggingResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			logBodies:      t.logBodies,
			maxSize:        t.maxBodyLogSize,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		t.metrics.RecordRequest(r.Method, route, wrapped.statusCode, duration)

		responseLog := t.logger.Info()
		if wrapped.statusCode >= 500 {
			responseLog = t.logger.Error()
		} else if wrapped.statusCode >= 400 {
			responseLog = t.logger.Warn()
		}
		responseLog = responseLog.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("route", route).
			Int("status", wrapped.statusCode).
			Dur("duration", duration).
			Int("response_size", wrapped.bytesWritten)

		if t.logBodies && len(wrapped.body) > 0 {
			logBody(responseLog, "response_body", wrapped.body)
		}

		responseLog.Msg("HTTP response sent")
	})
}

func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.apiKey == "" || isPublic(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		providedKey := r.Header.Get("X-API-Key")
		if providedKey == "" {
			providedKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if providedKey == "" {
			providedKey = r.URL.Query().Get("api_key")
		}

		if providedKey != t.apiKey {
			t.sendError(w, errors.New(errors.CodeUnauthorized, "transport", "Invalid or missing API key", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.limiter == nil || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if !t.limiter.allow(clientIP(r)) {
			t.metrics.RecordRateLimited()
			w.Header().Set("Retry-After", "60")
			t.sendError(w, errors.New(errors.CodeRateLimited, "transport", "Rate limit exceeded", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. With TrustProxy set, RealIP has
// already replaced it with the forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimiter allows limit requests per client within a sliding window.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	clients   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (rl *rateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	if now.Sub(rl.lastSweep) > rl.window {
		for ip, reqs := range rl.clients {
			if len(reqs) == 0 || !reqs[len(reqs)-1].After(windowStart) {
				delete(rl.clients, ip)
			}
		}
		rl.lastSweep = now
	}

	reqs := rl.clients[client]
	valid := reqs[:0]
	for _, at := range reqs {
		if at.After(windowStart) {
			valid = append(valid, at)
		}
	}

	if len(valid) >= rl.limit {
		rl.clients[client] = valid
		return false
	}
	rl.clients[client] = append(valid, now)
	return true
}

// loggingResponseWriter captures response data for logging
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	body         []byte
	bytesWritten int
	logBodies    bool
	maxSize      int64
	wroteHeader  bool
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(data []byte) (int, error) {
	w.wroteHeader = true
	if w.logBodies && int64(len(w.body)) < w.maxSize {
		remaining := w.maxSize - int64(len(w.body))
		toCopy := int64(len(data))
		if toCopy > remaining {
			toCopy = remaining
		}
		w.body = append(w.body, data[:toCopy]...)
	}

	n, err := w.ResponseWriter.Write(data)
	w.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// logBody logs JSON bodies inline and anything else, including truncated
// JSON, as a string.
func logBody(e *zerolog.Event, key string, body []byte) {
	if json.Valid(body) {
		e.RawJSON(key, body)
		return
	}
	e.Str(key, string(body))
}
