package api

import (
	"context"
	"strings"

	"github.com/terravista/authkit/pkg/networking"
)

// WellKnownOIDCPath is the standard OIDC discovery document location,
// relative to the auth server base URL.
const WellKnownOIDCPath = "/.well-known/openid-configuration"

// DiscoveryDocument is the OIDC provider metadata published under
// .well-known. Only the fields authkit consumes are modeled.
type DiscoveryDocument struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	DeviceAuthorizationEndpoint   string   `json:"device_authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ScopesSupported               []string `json:"scopes_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// DiscoveryClient fetches the OIDC discovery document for an auth server.
// The document is fetched once and cached for the client's lifetime.
type DiscoveryClient struct {
	baseClient
	doc *DiscoveryDocument
}

// NewDiscoveryClient creates a discovery client for the given auth server
// base URL.
func NewDiscoveryClient(authServer string, client networking.HTTPClient) *DiscoveryClient {
	endpoint := strings.TrimRight(authServer, "/") + WellKnownOIDCPath
	return &DiscoveryClient{
		baseClient: newBaseClient(endpoint, client),
	}
}

// Discovery returns the provider metadata, fetching it on first use.
func (c *DiscoveryClient) Discovery(ctx context.Context) (*DiscoveryDocument, error) {
	if c.doc != nil {
		return c.doc, nil
	}

	var doc DiscoveryDocument
	if err := c.checkedGetJSON(ctx, nil, nil, &doc); err != nil {
		return nil, err
	}

	c.doc = &doc
	return c.doc, nil
}
