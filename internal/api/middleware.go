package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/realty-ai/internal/metrics"
	"github.com/sells-group/realty-ai/internal/observability"
)

type ctxKey int

const tenantKey ctxKey = iota

func tenantFrom(ctx context.Context) string {
	t, _ := ctx.Value(tenantKey).(string)
	return t
}

// requestLogger opens the request span, then logs and counts each request
// under its route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := otel.Tracer("github.com/sells-group/realty-ai/internal/api").Start(r.Context(), "http.request")
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if id := observability.TraceID(ctx); id != "" {
			fields = append(fields, zap.String("trace_id", id))
		}
		if status >= http.StatusInternalServerError {
			zap.L().Warn("http request", fields...)
			return
		}
		zap.L().Info("http request", fields...)
	})
}

func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get(TenantHeader))
		if tenant == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: TenantHeader + " header is required"})
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// maxTrackedTenants caps the buckets held at once.
const maxTrackedTenants = 10000

// tenantLimiter hands out one token bucket per tenant. A bucket left idle
// until it has refilled is indistinguishable from a new one and is dropped.
type tenantLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*tenantBucket
	limit     rate.Limit
	burst     int
	refill    time.Duration
	max       int
	lastSweep time.Time
	now       func() time.Time
}

type tenantBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newTenantLimiter(perMinute, burst int) *tenantLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &tenantLimiter{
		limiters: make(map[string]*tenantBucket),
		limit:    rate.Inf,
		burst:    burst,
		max:      maxTrackedTenants,
		now:      time.Now,
	}
	if perMinute > 0 {
		interval := time.Minute / time.Duration(perMinute)
		l.limit = rate.Every(interval)
		l.refill = interval * time.Duration(burst)
	}
	return l
}

func (l *tenantLimiter) allow(tenant string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.limiters[tenant]
	if !ok {
		if now.Sub(l.lastSweep) >= l.refill || len(l.limiters) >= l.max {
			l.sweep(now)
		}
		b = &tenantBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenant] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops refilled buckets, then the least recently used ones until
// there is room for one more. Callers hold mu.
func (l *tenantLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for k, b := range l.limiters {
		if now.Sub(b.seen) >= l.refill {
			delete(l.limiters, k)
		}
	}
	for len(l.limiters) >= l.max {
		var (
			oldest string
			seen   time.Time
			found  bool
		)
		for k, b := range l.limiters {
			if !found || b.seen.Before(seen) {
				oldest, seen, found = k, b.seen, true
			}
		}
		delete(l.limiters, oldest)
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(tenantFrom(r.Context())) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
