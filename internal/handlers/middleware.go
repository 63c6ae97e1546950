package handlers

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"mathquest/internal/security"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	limiter security.Limiter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(limiter security.Limiter) *Middleware {
	return &Middleware{limiter: limiter}
}

// RateLimit limits requests per client IP.
// A limiter failure lets the request through rather than locking everyone out.
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.limiter == nil {
			next(w, r)
			return
		}

		allowed, err := m.limiter.Allow(r.Context(), security.GetClientIP(r))
		if err != nil {
			log.Printf("Rate limiter unavailable: %v", err)
			next(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, http.StatusTooManyRequests, CodeRateLimited, "", nil)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Truncate(time.Millisecond))
	})
}

// CORS allows browser clients served from origin
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id")
			w.Header().Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a panic in a handler into a 500 response
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
				respondWithError(w, http.StatusInternalServerError, CodeServerError, "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// StoreTimeout bounds how long a request may wait on the account store
func StoreTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
