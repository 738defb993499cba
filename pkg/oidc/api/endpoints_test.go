package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/errors"
)

func TestIntrospectionActiveToken(t *testing.T) {
	t.Parallel()

	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"sub":"user-1","scope":"openid"}`))
	}))
	defer server.Close()

	client := NewIntrospectionClient(server.URL, http.DefaultClient)
	result, err := client.ValidateAccessToken(context.Background(), "the-token", nil)
	require.NoError(t, err)
	assert.Equal(t, "user-1", result["sub"])
	assert.Equal(t, "the-token", form.Get("token"))
	assert.Equal(t, "access_token", form.Get("token_type_hint"))
}

func TestIntrospectionInactiveTokenIsValidationError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":false}`))
	}))
	defer server.Close()

	client := NewIntrospectionClient(server.URL, http.DefaultClient)
	_, err := client.ValidateRefreshToken(context.Background(), "stale", nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRevocationSendsHintAndAcceptsEmptyResponse(t *testing.T) {
	t.Parallel()

	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRevocationClient(server.URL, http.DefaultClient)
	require.NoError(t, client.RevokeRefreshToken(context.Background(), "rt", nil))
	assert.Equal(t, "rt", form.Get("token"))
	assert.Equal(t, "refresh_token", form.Get("token_type_hint"))
}

func TestUserinfoSendsBearerToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"user-1","email":"user@example.com"}`))
	}))
	defer server.Close()

	client := NewUserinfoClient(server.URL, http.DefaultClient)
	info, err := client.UserinfoFromAccessToken(context.Background(), "at")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", info["email"])
}
