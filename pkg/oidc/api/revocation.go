package api

import (
	"context"
	"net/url"

	"github.com/terravista/authkit/pkg/networking"
)

// RevocationClient revokes tokens at the revocation endpoint (RFC 7009).
type RevocationClient struct {
	baseClient
}

// NewRevocationClient creates a client for the given revocation endpoint.
func NewRevocationClient(endpoint string, client networking.HTTPClient) *RevocationClient {
	return &RevocationClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

func (c *RevocationClient) revoke(ctx context.Context, token, tokenTypeHint string, enricher Enricher) error {
	payload := url.Values{}
	payload.Set("token", token)
	payload.Set("token_type_hint", tokenTypeHint)

	payload, auth, err := enrich(enricher, payload, "")
	if err != nil {
		return err
	}

	// Revocation responses may be empty; only classification applies.
	_, _, err = c.checkedPostForm(ctx, payload, auth)
	return err
}

// RevokeAccessToken revokes an access token.
func (c *RevocationClient) RevokeAccessToken(ctx context.Context, accessToken string, enricher Enricher) error {
	return c.revoke(ctx, accessToken, "access_token", enricher)
}

// RevokeRefreshToken revokes a refresh token.
func (c *RevocationClient) RevokeRefreshToken(ctx context.Context, refreshToken string, enricher Enricher) error {
	return c.revoke(ctx, refreshToken, "refresh_token", enricher)
}
