package function

import (
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"

	headerContentType = "Content-Type"
	headerRetryAfter  = "Retry-After"
	contentTypeJSON   = "application/json"

	errInternalServerError = `{"error":"internal server error"}`
	errRateLimitExceeded   = `{"error":"rate limit exceeded"}`
)

// RequestID returns a middleware that adds a request ID to each request.
// An inbound X-Request-ID is kept.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string { return uuid.New().String() })
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = generator()
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging returns a middleware that logs each invocation.
func Logging(logger observability.Logger, function func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := observability.NewStatusRecorder(w)
			next.ServeHTTP(rw, r)

			//nolint:contextcheck // request context carries the request id
			logger.WithContext(r.Context()).Info("function invocation",
				observability.String("function", function(r)),
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", rw.Status()),
				observability.Int("size", rw.Size()),
				observability.Duration("duration", time.Since(start)),
				observability.String("remote_addr", r.RemoteAddr),
				observability.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// Recovery returns a middleware that turns a panic anywhere below it,
// including inside an authorization filter, into a 500 response.
func Recovery(logger observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.WithContext(r.Context()).Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(debug.Stack())),
					)
					if metrics != nil {
						metrics.RecordPanic()
					}

					w.Header().Set(headerContentType, contentTypeJSON)
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, errInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
