package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type fakeLimiter struct {
	allowed bool
	err     error
	scopes  []string
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, _ int64, _ time.Duration) (bool, int64, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return false, 0, f.err
	}
	return f.allowed, 1, nil
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitAllows(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	var calls int
	handler := RateLimit(limiter, 10, time.Minute, testLogger())(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestRateLimitBlocksWhenExceeded(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	var calls int
	handler := RateLimit(limiter, 10, time.Minute, testLogger())(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, calls)
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	var calls int
	handler := RateLimit(limiter, 10, time.Minute, testLogger())(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestRateLimitScopesPerActorThenIP(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	var calls int
	handler := RateLimit(limiter, 10, time.Minute, testLogger())(okHandler(&calls))

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), types.Actor{UserID: userID}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "203.0.113.9:4411"
	handler.ServeHTTP(httptest.NewRecorder(), anon)

	assert.Equal(t, []string{"user:" + userID.String(), "ip:203.0.113.9"}, limiter.scopes)
}

func TestRateLimitDisabledWithoutLimiter(t *testing.T) {
	var calls int
	handler := RateLimit(nil, 10, time.Minute, testLogger())(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, calls)
}
