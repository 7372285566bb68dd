package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	assert.True(t, proxies.Trusts("10.1.2.3"))
	assert.True(t, proxies.Trusts("192.0.2.10"))
	assert.False(t, proxies.Trusts("192.0.2.11"))
	assert.True(t, proxies.Trusts("::1"))
	assert.False(t, proxies.Trusts("not-an-ip"))

	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.ErrorContains(t, err, "invalid trusted proxy")
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.ErrorContains(t, err, "invalid trusted proxy")
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{name: "direct peer", remoteAddr: "198.51.100.7:4000", want: "198.51.100.7"},
		{name: "untrusted peer ignores XFF", remoteAddr: "198.51.100.7:4000", forwarded: "1.1.1.1", want: "198.51.100.7"},
		{name: "untrusted peer ignores X-Real-IP", remoteAddr: "198.51.100.7:4000", realIP: "1.1.1.1", want: "198.51.100.7"},
		{name: "trusted proxy", remoteAddr: "10.0.0.2:4000", forwarded: "203.0.113.5", want: "203.0.113.5"},
		{name: "proxy chain skips trusted hops", remoteAddr: "10.0.0.2:4000", forwarded: "6.6.6.6, 203.0.113.5, 10.0.0.9", want: "203.0.113.5"},
		{name: "all hops trusted", remoteAddr: "10.0.0.2:4000", forwarded: "10.0.0.8, 10.0.0.9", want: "10.0.0.8"},
		{name: "trusted proxy with X-Real-IP", remoteAddr: "10.0.0.2:4000", realIP: "203.0.113.6", want: "203.0.113.6"},
		{name: "trusted proxy without headers", remoteAddr: "10.0.0.2:4000", want: "10.0.0.2"},
		{name: "unparseable remote addr", remoteAddr: "pipe", want: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(req))
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.1"})
	require.NoError(t, err)

	var seen string
	handler := ClientIPMiddleware(proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.5", seen)

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = "192.0.2.4:1234"
	bare.Header.Set("X-Forwarded-For", "203.0.113.5")
	assert.Equal(t, "192.0.2.4", ClientIP(bare), "falls back to the peer without the middleware")
}
