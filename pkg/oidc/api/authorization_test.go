package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/errors"
)

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	client := NewAuthorizationClient("https://auth.example.com/authorize", "")
	extra := url.Values{}
	extra.Set("organization", "acme")

	rawURL := client.AuthCodeURL("cid", "http://127.0.0.1:8080/callback",
		[]string{"openid", "offline_access"}, []string{"https://api.example.com"},
		"the-state", "the-verifier", extra)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	q := parsed.Query()

	assert.Equal(t, "https", parsed.Scheme)
	assert.Equal(t, "auth.example.com", parsed.Host)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid offline_access", q.Get("scope"))
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEqual(t, "the-verifier", q.Get("code_challenge"), "challenge must be derived, not the raw verifier")
	assert.Equal(t, "https://api.example.com", q.Get("audience"))
	assert.Equal(t, "acme", q.Get("organization"))
}

func TestCallbackListenerDeliversCode(t *testing.T) {
	t.Parallel()

	client := NewAuthorizationClient("https://auth.example.com/authorize", "")
	listener, err := client.NewCallbackListener(0, "expected-state")
	require.NoError(t, err)
	defer listener.Close()

	redirect := listener.RedirectURI()
	assert.Contains(t, redirect, "http://127.0.0.1:")

	resp, err := http.Get(redirect + "?code=the-code&state=expected-state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := listener.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the-code", code)
}

func TestCallbackListenerRejectsStateMismatch(t *testing.T) {
	t.Parallel()

	client := NewAuthorizationClient("https://auth.example.com/authorize", "")
	listener, err := client.NewCallbackListener(0, "expected-state")
	require.NoError(t, err)
	defer listener.Close()

	resp, err := http.Get(listener.RedirectURI() + "?code=the-code&state=forged")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = listener.Await(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsProtocol(err))
	assert.Equal(t, "invalid_state", errors.ProtocolCode(err))
}

func TestCallbackListenerPropagatesServerError(t *testing.T) {
	t.Parallel()

	client := NewAuthorizationClient("https://auth.example.com/authorize", "")
	listener, err := client.NewCallbackListener(0, "expected-state")
	require.NoError(t, err)
	defer listener.Close()

	resp, err := http.Get(listener.RedirectURI() + "?error=access_denied&error_description=user+said+no")
	require.NoError(t, err)
	defer resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = listener.Await(ctx)
	require.Error(t, err)
	assert.Equal(t, "access_denied", errors.ProtocolCode(err))
}

func TestCallbackListenerAwaitHonorsContext(t *testing.T) {
	t.Parallel()

	client := NewAuthorizationClient("https://auth.example.com/authorize", "")
	listener, err := client.NewCallbackListener(0, "expected-state")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = listener.Await(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}
