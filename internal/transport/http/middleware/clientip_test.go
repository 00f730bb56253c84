package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

var proxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

func requestFrom(remoteAddr string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestResolveIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	req := requestFrom("203.0.113.9:4000", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
		"X-Real-Ip":       "5.6.7.8",
	})
	assert.Equal(t, "203.0.113.9", resolveIP(req, proxies))
	assert.Equal(t, "203.0.113.9", resolveIP(req, nil))
}

func TestResolveIP_TrustedPeerUsesForwardedFor(t *testing.T) {
	req := requestFrom("10.0.0.5:4000", map[string]string{"X-Forwarded-For": "1.2.3.4"})
	assert.Equal(t, "1.2.3.4", resolveIP(req, proxies))
}

func TestResolveIP_SkipsTrustedHopsFromTheRight(t *testing.T) {
	// The client prepended a forged hop; the proxy chain appended the real one.
	req := requestFrom("10.0.0.5:4000", map[string]string{"X-Forwarded-For": "6.6.6.6, 1.2.3.4, 10.0.0.7"})
	assert.Equal(t, "1.2.3.4", resolveIP(req, proxies))
}

func TestResolveIP_TrustedPeerFallsBackToXRealIP(t *testing.T) {
	req := requestFrom("10.0.0.5:4000", map[string]string{"X-Real-Ip": "9.10.11.12"})
	assert.Equal(t, "9.10.11.12", resolveIP(req, proxies))
}

func TestResolveIP_TrustedPeerWithoutHeaders(t *testing.T) {
	req := requestFrom("10.0.0.5:4000", nil)
	assert.Equal(t, "10.0.0.5", resolveIP(req, proxies))
}

func TestPeerIP_WithoutPort(t *testing.T) {
	req := requestFrom("10.0.0.1", nil)
	assert.Equal(t, "10.0.0.1", peerIP(req))
}

func TestClientIP_StoredByRealIP(t *testing.T) {
	var got string
	h := RealIP(proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), requestFrom("10.1.2.3:80", map[string]string{"X-Forwarded-For": "1.2.3.4"}))
	assert.Equal(t, "1.2.3.4", got)
}

func TestClientIP_WithoutMiddlewareIsPeer(t *testing.T) {
	req := requestFrom("198.51.100.4:80", map[string]string{"X-Forwarded-For": "1.2.3.4"})
	assert.Equal(t, "198.51.100.4", ClientIP(req))
}
