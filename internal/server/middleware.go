package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.uber.org/zap"
)

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// newRequestLogger assigns a request id, recovers panics and logs one line
// per request.
func newRequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					respondStatusError(wrapped, newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil))
				}
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", wrapped.statusCode),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", requestID),
				}
				fields = append(fields, userAgentFields(r.UserAgent())...)
				log.Info("http request", fields...)
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}

func userAgentFields(raw string) []zap.Field {
	if raw == "" {
		return nil
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	platform := "desktop"
	switch {
	case ua.Bot():
		platform = "bot"
	case ua.Mobile():
		platform = "mobile"
	}
	return []zap.Field{
		zap.String("browser", browser),
		zap.String("browser_version", version),
		zap.String("os", ua.OS()),
		zap.String("platform", platform),
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
