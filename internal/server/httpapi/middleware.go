package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/dmitrijs2005/wbcms/internal/server/ratelimit"
	"github.com/dmitrijs2005/wbcms/internal/server/services"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

// RequestIDFromContext returns the id assigned by the request-id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID honours a sane inbound X-Request-ID or assigns a fresh uuid, and
// echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// instrument logs every request and feeds the request metrics.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		elapsed := time.Since(start)
		h.metrics.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		h.logger.Info(r.Context(), "http request",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

// recoverer turns a handler panic into a generic 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				h.logger.Error(r.Context(), "handler panic", "panic", p,
					"request_id", RequestIDFromContext(r.Context()))
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error.", Code: "INTERNAL_ERROR"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientThrottle caps requests per client address in fixed windows.
type clientThrottle struct {
	limiter ratelimit.Limiter
	limit   int
	window  time.Duration
	prefix  string
}

// clientAddr is the host part of RemoteAddr. Forwarded headers are not
// trusted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// throttle rejects a client's requests past the limit with 429 until its
// window ends. Without a throttle configured it passes everything through.
func (h *Handler) throttle(t *clientThrottle, next http.HandlerFunc) http.HandlerFunc {
	if t == nil || t.limit <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := t.limiter.Incr(r.Context(), t.prefix+clientAddr(r), t.window)
		if err != nil {
			h.fail(w, r, fmt.Errorf("client throttle: %w", err))
			return
		}
		if n > int64(t.limit) {
			h.logger.Info(r.Context(), "client throttled",
				"request_id", RequestIDFromContext(r.Context()), "route", routeTemplate(r))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: msgThrottled, Code: string(services.KindRateLimited)})
			return
		}
		next(w, r)
	}
}
