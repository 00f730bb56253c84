package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 2)
	h := rl.Limit(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "7.7.7.7:1000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "8.8.8.8:1000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_SpoofedForwardingHeaderSharesBucket(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1)
	h := RealIP(nil)(rl.Limit(http.HandlerFunc(okHandler)))

	codes := make([]int, 0, 2)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "7.7.7.7:1000"
		req.Header.Set("X-Forwarded-For", spoofed)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
