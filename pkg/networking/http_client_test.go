package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalhost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:9443", true},
		{"[::1]:9443", true},
		{"example.com", false},
		{"example.com:443", false},
		{"192.168.1.50", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsLocalhost(tt.host))
		})
	}
}

func TestValidatingTransportRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	transport := &ValidatingTransport{Transport: http.DefaultTransport}
	req := httptest.NewRequest(http.MethodGet, "http://example.com/token", nil)

	resp, err := transport.RoundTrip(req) //nolint:bodyclose
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "not HTTPS")
}

func TestValidatingTransportAllowsLoopback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: &ValidatingTransport{Transport: http.DefaultTransport}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSetDefaultHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	SetDefaultHeaders(req)

	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, AppHeaderValue, req.Header.Get(AppHeader))

	// An explicit app header is preserved.
	req.Header.Set(AppHeader, "custom-app")
	SetDefaultHeaders(req)
	assert.Equal(t, "custom-app", req.Header.Get(AppHeader))
}

func TestParseContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/json", ParseContentType("application/json"))
	assert.Equal(t, "application/json", ParseContentType("application/json; charset=utf-8"))
	assert.Equal(t, "application/json", ParseContentType("  Application/JSON ; charset=utf-8"))
	assert.Equal(t, "text/html", ParseContentType("text/html;charset=ISO-8859-1"))
	assert.Empty(t, ParseContentType(""))
}

func TestHttpClientBuilderDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, HTTPTimeout, client.Timeout)

	_, ok := client.Transport.(*ValidatingTransport)
	assert.True(t, ok, "default transport should enforce HTTPS")
}

func TestHttpClientBuilderInsecureSkipsValidation(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().WithInsecureAllowHTTP(true).Build()
	require.NoError(t, err)

	_, ok := client.Transport.(*ValidatingTransport)
	assert.False(t, ok)
}

func TestHttpClientBuilderBadCABundle(t *testing.T) {
	t.Parallel()

	_, err := NewHttpClientBuilder().WithCABundle("/does/not/exist.pem").Build()
	require.Error(t, err)
}
