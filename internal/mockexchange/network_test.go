package mockexchange

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNetworkConditions_NoFaultsPassesThrough(t *testing.T) {
	n := NewNetworkConditions()
	handler := n.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNetworkConditions_FullPacketLossAlways408(t *testing.T) {
	n := NewNetworkConditions()
	n.Set(0, 1, 0)
	handler := n.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestNetworkConditions_FullErrorRateAlways500(t *testing.T) {
	n := NewNetworkConditions()
	n.Set(0, 0, 1)
	handler := n.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNetworkConditions_Reset(t *testing.T) {
	n := NewNetworkConditions()
	n.Set(100, 1, 1)
	n.Reset()
	latency, packetLoss, errorRate := n.snapshot()
	assert.Zero(t, latency)
	assert.Zero(t, packetLoss)
	assert.Zero(t, errorRate)
}

func TestSlidingWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(3, time.Minute)
	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestSlidingWindowLimiter_IsolatesKeys(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestSlidingWindowLimiter_EvictsExpiredHits(t *testing.T) {
	l := NewSlidingWindowLimiter(1, 20*time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("a"))
}

func TestSlidingWindowLimiter_MiddlewareRejectsOverLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}
