package oidc

import (
	"context"

	"github.com/terravista/authkit/pkg/credential"
)

// ClientCredentialsClient runs the client credentials grant. The client is
// its own resource owner; no user interaction is involved, so a lost
// credential can always be re-obtained by logging in again.
type ClientCredentialsClient struct {
	*AuthClient
}

// Login obtains a credential for the client itself.
func (c *ClientCredentialsClient) Login(ctx context.Context, opts *LoginOptions) (*credential.OIDC, error) {
	tokenClient, err := c.getTokenClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}

	token, err := tokenClient.GetTokenFromClientCredentials(ctx, c.cfg.ClientID,
		c.loginScopes(opts), c.loginAudiences(opts), enricher, c.loginExtra(opts))
	if err != nil {
		return nil, err
	}
	return credentialFromToken(token)
}
