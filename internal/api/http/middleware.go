package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"rentalshop-trusted/internal/config"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/metrics"
	"rentalshop-trusted/internal/security"
	"rentalshop-trusted/internal/service"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

func actorFrom(ctx context.Context) service.Actor {
	a, _ := ctx.Value(actorKey).(service.Actor)
	return a
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// observe tags the request with an id and records latency per route.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		route := routeTemplate(r)
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(rec.code)).Observe(elapsed.Seconds())
		logger.Debug("HTTP request", "request_id", id, "method", r.Method, "route", route, "code", rec.code, "duration_ms", elapsed.Milliseconds())
	})
}

// AuthMiddleware checks the bearer token against the level configured for
// the matched route and puts the caller's Actor on the context.
type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.GetSecurityLevel(r.Method, routeTemplate(r))
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "authorization token is not provided")
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}
		if claims.Type != security.TokenTypeAccess {
			writeMessage(w, http.StatusUnauthorized, security.ErrWrongTokenType.Error())
			return
		}

		actor := service.Actor{UserID: claims.UserID, Role: claims.NormalizedRole(), BranchID: claims.BranchID}
		if level == config.SecurityManager && !actor.Role.CanViewReports() {
			writeMessage(w, http.StatusForbidden, service.ErrForbidden.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// loginLimiter keeps one token bucket per client address.
type loginLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return &loginLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, 10*time.Minute),
	}
}

func (l *loginLimiter) allow(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	lim, ok := l.limiters.Get(host)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(host, lim)
	}
	return lim.Allow()
}

func (l *loginLimiter) Handler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r) {
			w.Header().Set("Retry-After", "60")
			writeMessage(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		next(w, r)
	}
}
