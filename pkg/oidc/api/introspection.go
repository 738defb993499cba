package api

import (
	"context"
	"net/url"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/networking"
)

// IntrospectionClient validates tokens against the introspection endpoint
// (RFC 7662).
type IntrospectionClient struct {
	baseClient
}

// NewIntrospectionClient creates a client for the given introspection
// endpoint.
func NewIntrospectionClient(endpoint string, client networking.HTTPClient) *IntrospectionClient {
	return &IntrospectionClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

func (c *IntrospectionClient) introspect(ctx context.Context, token, tokenTypeHint string, enricher Enricher) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("token", token)
	payload.Set("token_type_hint", tokenTypeHint)

	payload, auth, err := enrich(enricher, payload, "")
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := c.checkedPostFormJSON(ctx, payload, auth, &result); err != nil {
		return nil, err
	}

	if active, _ := result["active"].(bool); !active {
		return nil, errors.NewValidationError("token is not active", nil)
	}
	return result, nil
}

// ValidateAccessToken introspects an access token, returning the raw
// introspection payload for an active token.
func (c *IntrospectionClient) ValidateAccessToken(ctx context.Context, accessToken string, enricher Enricher) (map[string]any, error) {
	return c.introspect(ctx, accessToken, "access_token", enricher)
}

// ValidateIDToken introspects an ID token.
func (c *IntrospectionClient) ValidateIDToken(ctx context.Context, idToken string, enricher Enricher) (map[string]any, error) {
	return c.introspect(ctx, idToken, "id_token", enricher)
}

// ValidateRefreshToken introspects a refresh token.
func (c *IntrospectionClient) ValidateRefreshToken(ctx context.Context, refreshToken string, enricher Enricher) (map[string]any, error) {
	return c.introspect(ctx, refreshToken, "refresh_token", enricher)
}
