package api

import (
	"context"
	"net/url"

	"github.com/terravista/authkit/pkg/networking"
)

// OAuth grant type identifiers.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// TokenClient exchanges grants for tokens at the token endpoint. Responses
// are returned as the raw JSON document so they can back an OIDC credential
// unmodified.
type TokenClient struct {
	baseClient
}

// NewTokenClient creates a token client for the given token endpoint.
func NewTokenClient(endpoint string, client networking.HTTPClient) *TokenClient {
	return &TokenClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

func (c *TokenClient) getToken(ctx context.Context, payload url.Values, enricher Enricher, audience string, extra url.Values) (map[string]any, error) {
	for key, values := range extra {
		for _, v := range values {
			payload.Add(key, v)
		}
	}

	payload, auth, err := enrich(enricher, payload, audience)
	if err != nil {
		return nil, err
	}

	var token map[string]any
	if err := c.checkedPostFormJSON(ctx, payload, auth, &token); err != nil {
		return nil, err
	}
	return token, nil
}

func firstOrEmpty(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

// GetTokenFromCode redeems an authorization code, completing an
// authorization code grant. codeVerifier is the PKCE verifier matching the
// challenge sent with the authorization request.
func (c *TokenClient) GetTokenFromCode(
	ctx context.Context,
	clientID, redirectURI, code, codeVerifier string,
	enricher Enricher,
	extra url.Values,
) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("grant_type", GrantTypeAuthorizationCode)
	payload.Set("client_id", clientID)
	payload.Set("redirect_uri", redirectURI)
	payload.Set("code", code)
	if codeVerifier != "" {
		payload.Set("code_verifier", codeVerifier)
	}
	return c.getToken(ctx, payload, enricher, "", extra)
}

// GetTokenFromRefresh exchanges a refresh token for a fresh token set.
// Scopes are only sent when explicitly requested; an unadorned refresh must
// not change what the caller already has.
func (c *TokenClient) GetTokenFromRefresh(
	ctx context.Context,
	clientID, refreshToken string,
	requestedScopes []string,
	enricher Enricher,
	extra url.Values,
) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("grant_type", GrantTypeRefreshToken)
	payload.Set("client_id", clientID)
	payload.Set("refresh_token", refreshToken)
	setSpaceSeparated(payload, "scope", requestedScopes)
	return c.getToken(ctx, payload, enricher, "", extra)
}

// GetTokenFromClientCredentials performs a client credentials grant. Client
// authentication comes entirely from the enricher.
func (c *TokenClient) GetTokenFromClientCredentials(
	ctx context.Context,
	clientID string,
	requestedScopes, requestedAudiences []string,
	enricher Enricher,
	extra url.Values,
) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("grant_type", GrantTypeClientCredentials)
	payload.Set("client_id", clientID)
	setSpaceSeparated(payload, "scope", requestedScopes)
	for _, aud := range requestedAudiences {
		payload.Add("audience", aud)
	}
	return c.getToken(ctx, payload, enricher, firstOrEmpty(requestedAudiences), extra)
}

// GetTokenFromPassword performs a resource owner password grant. This is the
// least preferred flow, retained for legacy compatibility.
func (c *TokenClient) GetTokenFromPassword(
	ctx context.Context,
	clientID, username, password string,
	requestedScopes, requestedAudiences []string,
	enricher Enricher,
	extra url.Values,
) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("grant_type", GrantTypePassword)
	payload.Set("client_id", clientID)
	payload.Set("username", username)
	payload.Set("password", password)
	setSpaceSeparated(payload, "scope", requestedScopes)
	for _, aud := range requestedAudiences {
		payload.Add("audience", aud)
	}
	return c.getToken(ctx, payload, enricher, firstOrEmpty(requestedAudiences), extra)
}

// GetTokenFromDeviceCode redeems a device code. While the user has not
// completed authorization the server answers with the authorization_pending
// or slow_down protocol errors; the device flow polls this call accordingly.
func (c *TokenClient) GetTokenFromDeviceCode(
	ctx context.Context,
	clientID, deviceCode string,
	enricher Enricher,
) (map[string]any, error) {
	payload := url.Values{}
	payload.Set("grant_type", GrantTypeDeviceCode)
	payload.Set("client_id", clientID)
	payload.Set("device_code", deviceCode)
	return c.getToken(ctx, payload, enricher, "", nil)
}
