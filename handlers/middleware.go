package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"bitslow/logger"
	"bitslow/service"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type identityKey struct{}

const RequestIDHeader = "X-Request-ID"

func IdentityFromContext(ctx context.Context) (service.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(service.Identity)
	return id, ok
}

func (h Handler) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		const bearerPrefix = "Bearer "
		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			respondWithError(w, http.StatusUnauthorized, "invalid token format")
			return
		}

		id, err := h.auth.Verify(authHeader[len(bearerPrefix):])
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := contextWithIdentity(r.Context(), id)
		log := logger.FromContext(ctx, h.log).With(zap.Int("user_id", id.UserID))
		next(w, r.WithContext(logger.WithContext(ctx, log)))
	}
}

// RequestID tags every request with an id, echoed in the response header and
// attached to the request-scoped logger.
func (h Handler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		log := h.log.With(zap.String("request_id", id), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), log)))
	})
}

const (
	limiterCapacity = 10000
	limiterIdleTTL  = 10 * time.Minute
)

// RateLimiter throttles mutating requests per authenticated user. Limiters of
// idle users expire, and at most limiterCapacity users are tracked at once.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[int, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return newRateLimiter(rps, burst, limiterCapacity, limiterIdleTTL)
}

func newRateLimiter(rps float64, burst, capacity int, idle time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: expirable.NewLRU[int, *rate.Limiter](capacity, nil, idle),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(userID int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters.Get(userID)
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(userID, l)
	}
	return l
}

// Limit must wrap a handler that already runs behind JWTMiddleware.
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl == nil {
			next(w, r)
			return
		}
		id, ok := IdentityFromContext(r.Context())
		if ok && !rl.limiter(id.UserID).Allow() {
			respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func contextWithIdentity(ctx context.Context, id service.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}
