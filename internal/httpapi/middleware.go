package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/logger"
)

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// requestID propagates or generates X-Request-ID and logs every request with it.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		log := s.logger.With(zap.String(logger.FieldRequestID, id))
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, log))

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// metricsMiddleware records request count and latency under endpoint.
func (s *Server) metricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(wrapped.statusCode), time.Since(start))
	}
}

// requestLogger returns the request-scoped logger set by requestID.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if log, ok := r.Context().Value(ctxKey{}).(*zap.Logger); ok {
		return log
	}
	return s.logger
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
