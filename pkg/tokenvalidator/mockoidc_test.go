package tokenvalidator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/oidc/api"
	"github.com/terravista/authkit/pkg/tokenvalidator"
)

// These tests run the validator against a real OIDC server's JWKS endpoint
// rather than an in-memory key set, covering the JWKS client wiring.

func TestValidatorAgainstMockOIDC(t *testing.T) {
	t.Parallel()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	ctx := context.Background()
	keys, err := api.NewJWKSClient(ctx, m.JWKSEndpoint(), nil)
	require.NoError(t, err)
	validator := tokenvalidator.New(keys)

	const audience = "https://api.example.com"

	signServerToken := func(mutations map[string]any) string {
		now := time.Now()
		claims := jwt.MapClaims{
			"iss": m.Issuer(),
			"aud": audience,
			"sub": "user-1",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
		for k, v := range mutations {
			claims[k] = v
		}
		signed, err := m.Keypair.SignJWT(claims)
		require.NoError(t, err)
		return signed
	}

	t.Run("valid token verifies against the served key set", func(t *testing.T) {
		t.Parallel()
		claims, err := validator.ValidateToken(ctx, signServerToken(nil), m.Issuer(), audience, nil)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims["sub"])
	})

	t.Run("expired token from a real key set", func(t *testing.T) {
		t.Parallel()
		token := signServerToken(map[string]any{"exp": time.Now().Add(-time.Hour).Unix()})
		_, err := validator.ValidateToken(ctx, token, m.Issuer(), audience, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tokenvalidator.ErrExpired))
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		t.Parallel()
		token := signServerToken(nil)
		_, err := validator.ValidateToken(ctx, token, "https://someone-else.example.com", audience, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tokenvalidator.ErrWrongIssuer))
	})
}

func TestMultiIssuerAgainstMockOIDC(t *testing.T) {
	t.Parallel()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	ctx := context.Background()
	keys, err := api.NewJWKSClient(ctx, m.JWKSEndpoint(), nil)
	require.NoError(t, err)

	const audience = "https://api.example.com"
	validator, err := tokenvalidator.NewMultiIssuer([]tokenvalidator.TrustedIssuer{
		{Issuer: m.Issuer(), Audience: audience, Keys: keys},
	})
	require.NoError(t, err)

	now := time.Now()
	signed, err := m.Keypair.SignJWT(jwt.MapClaims{
		"iss": m.Issuer(),
		"aud": audience,
		"sub": "user-1",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(ctx, signed, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])

	foreign, err := m.Keypair.SignJWT(jwt.MapClaims{
		"iss": "https://rogue.example.com",
		"aud": audience,
		"exp": now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	_, err = validator.ValidateToken(ctx, foreign, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tokenvalidator.ErrUntrustedIssuer))
}
