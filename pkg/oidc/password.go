package oidc

import (
	"context"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
)

// ResourceOwnerClient runs the resource owner password grant. It exists for
// legacy compatibility only; prefer the authorization code or device code
// flows for user identities.
type ResourceOwnerClient struct {
	*AuthClient
}

// Login obtains a credential with the resource owner's username and
// password. Credentials come from the options, then the configuration, then
// a terminal prompt when permitted.
func (c *ResourceOwnerClient) Login(ctx context.Context, opts *LoginOptions) (*credential.OIDC, error) {
	username, password, err := c.resolveOwnerCredentials(opts)
	if err != nil {
		return nil, err
	}

	tokenClient, err := c.getTokenClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}

	token, err := tokenClient.GetTokenFromPassword(ctx, c.cfg.ClientID, username, password,
		c.loginScopes(opts), c.loginAudiences(opts), enricher, c.loginExtra(opts))
	if err != nil {
		return nil, err
	}
	return credentialFromToken(token)
}

func (c *ResourceOwnerClient) resolveOwnerCredentials(opts *LoginOptions) (string, string, error) {
	username := c.cfg.Username
	password := c.cfg.Password
	if opts != nil && opts.Username != "" {
		username = opts.Username
	}
	if opts != nil && opts.Password != "" {
		password = opts.Password
	}

	if username != "" && password != "" {
		return username, password, nil
	}
	if !c.allowTTYPrompt(opts) {
		return "", "", errors.NewConfigError(
			"username and password are not configured and terminal prompts are disallowed", nil)
	}

	in, out := loginIn(opts), loginOut(opts)
	var err error
	if username == "" {
		username, err = promptLine(in, out, "Username: ")
		if err != nil {
			return "", "", err
		}
	}
	if password == "" {
		password, err = promptLine(in, out, "Password: ")
		if err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}
