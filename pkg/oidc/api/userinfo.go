package api

import (
	"context"

	"github.com/terravista/authkit/pkg/networking"
)

// UserinfoClient looks up user information at the userinfo endpoint using an
// access token.
type UserinfoClient struct {
	baseClient
}

// NewUserinfoClient creates a client for the given userinfo endpoint.
func NewUserinfoClient(endpoint string, client networking.HTTPClient) *UserinfoClient {
	return &UserinfoClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

// UserinfoFromAccessToken returns the userinfo claims for the token's
// subject.
func (c *UserinfoClient) UserinfoFromAccessToken(ctx context.Context, accessToken string) (map[string]any, error) {
	var info map[string]any
	if err := c.checkedGetJSON(ctx, nil, BearerAuth(accessToken), &info); err != nil {
		return nil, err
	}
	return info, nil
}
