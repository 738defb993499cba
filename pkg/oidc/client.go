package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/networking"
	"github.com/terravista/authkit/pkg/oidc/api"
	"github.com/terravista/authkit/pkg/tokenvalidator"
)

// LoginOptions carries per-call overrides for a login. The zero value (or a
// nil pointer) falls back to the client configuration everywhere.
type LoginOptions struct {
	// Scopes and Audiences override the configured defaults when non-nil.
	Scopes    []string
	Audiences []string

	// OpenBrowser and TTYPrompt override the configured interactivity gates
	// when non-nil.
	OpenBrowser *bool
	TTYPrompt   *bool

	// Username and Password override the configured resource owner
	// credentials.
	Username string
	Password string

	// ShowQR renders the device flow verification URI as a terminal QR code.
	ShowQR bool

	// Extra parameters forwarded verbatim with the authorization and token
	// requests.
	Extra url.Values

	// In and Out are the streams used for interactive prompts and user-facing
	// instructions. They default to os.Stdin and os.Stdout.
	In  io.Reader
	Out io.Writer
}

// Loginable is implemented by clients that can obtain a credential from
// scratch.
type Loginable interface {
	Login(ctx context.Context, opts *LoginOptions) (*credential.OIDC, error)
}

// Refreshable is implemented by clients that can exchange a refresh token
// for a fresh credential.
type Refreshable interface {
	Refresh(ctx context.Context, refreshToken string, requestedScopes []string) (*credential.OIDC, error)
}

// DeviceLoginable is implemented by clients that expose the device code
// grant as a split initiate/complete pair, for callers that display the user
// code themselves.
type DeviceLoginable interface {
	DeviceLoginInitiate(ctx context.Context, opts *LoginOptions) (*api.DeviceAuthorization, error)
	DeviceLoginComplete(ctx context.Context, da *api.DeviceAuthorization) (*credential.OIDC, error)
}

// Client is the surface common to every OIDC client type. Flow-specific
// capabilities (Loginable, Refreshable, DeviceLoginable) are asserted on the
// concrete value returned by New.
type Client interface {
	Type() ClientType
	Config() *Config
	Issuer(ctx context.Context) (string, error)
	GetScopes(ctx context.Context) ([]string, error)

	ValidateAccessTokenLocal(ctx context.Context, accessToken, audience string, scopesAnyOf []string) (jwt.MapClaims, error)
	ValidateAccessTokenRemote(ctx context.Context, accessToken string) (map[string]any, error)
	ValidateIDTokenLocal(ctx context.Context, idToken, nonce string) (jwt.MapClaims, error)
	ValidateIDTokenRemote(ctx context.Context, idToken string) (map[string]any, error)

	RevokeAccessToken(ctx context.Context, accessToken string) error
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	UserinfoFromAccessToken(ctx context.Context, accessToken string) (map[string]any, error)
}

// New constructs the auth client for the configured client type. The
// concrete type is chosen by the client type; there is no runtime registry.
func New(cfg *Config) (Client, error) {
	base, err := newAuthClient(cfg)
	if err != nil {
		return nil, err
	}

	f, _ := cfg.ClientType.flow()
	switch f {
	case flowAuthCode:
		return &AuthCodeClient{base}, nil
	case flowClientCredentials:
		return &ClientCredentialsClient{base}, nil
	case flowDeviceCode:
		return &DeviceCodeClient{AuthClient: base}, nil
	case flowResourceOwner:
		return &ResourceOwnerClient{base}, nil
	case flowValidator:
		return &ValidatorClient{base}, nil
	}
	return nil, errors.NewConfigError(fmt.Sprintf("unknown client type %q", cfg.ClientType), nil)
}

// AuthClient is the engine shared by all client types: lazily constructed
// protocol API clients, endpoint resolution against the discovery document,
// and the operations every type supports. Flow types embed it.
type AuthClient struct {
	cfg        *Config
	httpClient *http.Client
	retrying   networking.HTTPClient

	discovery *api.DiscoveryClient

	mu              sync.Mutex
	cachedEnricher  api.Enricher
	tokenClient     *api.TokenClient
	deviceClient    *api.DeviceAuthorizationClient
	introClient     *api.IntrospectionClient
	revokeClient    *api.RevocationClient
	userinfoClient  *api.UserinfoClient
	jwksClient      *api.JWKSClient
	localValidator  *tokenvalidator.Validator
	authorizeClient *api.AuthorizationClient
}

func newAuthClient(cfg *Config) (*AuthClient, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("no client configuration provided", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	builder := networking.NewHttpClientBuilder()
	if cfg.CABundle != "" {
		builder = builder.WithCABundle(cfg.CABundle)
	}
	if cfg.InsecureAllowHTTP {
		builder = builder.WithInsecureAllowHTTP(true)
	}
	httpClient, err := builder.Build()
	if err != nil {
		return nil, errors.NewConfigError("failed to build HTTP client", err)
	}

	retrying := networking.NewRetryingClient(httpClient)
	return &AuthClient{
		cfg:        cfg,
		httpClient: httpClient,
		retrying:   retrying,
		discovery:  api.NewDiscoveryClient(cfg.AuthServer, retrying),
	}, nil
}

// Type returns the configured client type.
func (c *AuthClient) Type() ClientType {
	return c.cfg.ClientType
}

// Config returns the client configuration.
func (c *AuthClient) Config() *Config {
	return c.cfg
}

// resolveEndpoint returns the explicit override if set, otherwise the value
// from the discovery document. A value that is empty in both places is a
// hard configuration error naming the endpoint.
func (c *AuthClient) resolveEndpoint(ctx context.Context, override, name string, pick func(*api.DiscoveryDocument) string) (string, error) {
	if override != "" {
		return override, nil
	}
	doc, err := c.discovery.Discovery(ctx)
	if err != nil {
		return "", err
	}
	if endpoint := pick(doc); endpoint != "" {
		return endpoint, nil
	}
	return "", errors.NewConfigError(
		fmt.Sprintf("auth server %s does not advertise a %s endpoint and none is configured",
			c.cfg.AuthServer, name), nil)
}

// Issuer resolves the token issuer: explicit configuration wins, then the
// discovery document. An issuer available in neither is a hard error.
func (c *AuthClient) Issuer(ctx context.Context) (string, error) {
	if c.cfg.Issuer != "" {
		return c.cfg.Issuer, nil
	}
	doc, err := c.discovery.Discovery(ctx)
	if err != nil {
		return "", err
	}
	if doc.Issuer == "" {
		return "", errors.NewConfigError(
			fmt.Sprintf("auth server %s does not advertise an issuer and none is configured",
				c.cfg.AuthServer), nil)
	}
	return doc.Issuer, nil
}

// GetScopes returns the scopes the auth server advertises support for.
func (c *AuthClient) GetScopes(ctx context.Context) ([]string, error) {
	doc, err := c.discovery.Discovery(ctx)
	if err != nil {
		return nil, err
	}
	return doc.ScopesSupported, nil
}

// enricher returns the client authentication enricher, constructing it on
// first use. Assertion-based client auth needs the token endpoint for its
// audience, so resolution may hit discovery.
func (c *AuthClient) enricher(ctx context.Context) (api.Enricher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedEnricher != nil {
		return c.cachedEnricher, nil
	}

	tokenEndpoint := ""
	if c.cfg.ClientType.requiresPrivateKey() {
		var err error
		tokenEndpoint, err = c.resolveEndpoint(ctx, c.cfg.TokenEndpoint, "token",
			func(d *api.DiscoveryDocument) string { return d.TokenEndpoint })
		if err != nil {
			return nil, err
		}
	}

	enricher, err := c.newEnricher(tokenEndpoint)
	if err != nil {
		return nil, err
	}
	c.cachedEnricher = enricher
	return enricher, nil
}

func (c *AuthClient) getTokenClient(ctx context.Context) (*api.TokenClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenClient != nil {
		return c.tokenClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.TokenEndpoint, "token",
		func(d *api.DiscoveryDocument) string { return d.TokenEndpoint })
	if err != nil {
		return nil, err
	}
	c.tokenClient = api.NewTokenClient(endpoint, c.retrying)
	return c.tokenClient, nil
}

func (c *AuthClient) getAuthorizationClient(ctx context.Context) (*api.AuthorizationClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authorizeClient != nil {
		return c.authorizeClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.AuthorizationEndpoint, "authorization",
		func(d *api.DiscoveryDocument) string { return d.AuthorizationEndpoint })
	if err != nil {
		return nil, err
	}
	c.authorizeClient = api.NewAuthorizationClient(endpoint, "")
	return c.authorizeClient, nil
}

func (c *AuthClient) getDeviceClient(ctx context.Context) (*api.DeviceAuthorizationClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceClient != nil {
		return c.deviceClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.DeviceAuthorizationEndpoint, "device authorization",
		func(d *api.DiscoveryDocument) string { return d.DeviceAuthorizationEndpoint })
	if err != nil {
		return nil, err
	}
	c.deviceClient = api.NewDeviceAuthorizationClient(endpoint, c.retrying)
	return c.deviceClient, nil
}

func (c *AuthClient) getIntrospectionClient(ctx context.Context) (*api.IntrospectionClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.introClient != nil {
		return c.introClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.IntrospectionEndpoint, "introspection",
		func(d *api.DiscoveryDocument) string { return d.IntrospectionEndpoint })
	if err != nil {
		return nil, err
	}
	c.introClient = api.NewIntrospectionClient(endpoint, c.retrying)
	return c.introClient, nil
}

func (c *AuthClient) getRevocationClient(ctx context.Context) (*api.RevocationClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revokeClient != nil {
		return c.revokeClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.RevocationEndpoint, "revocation",
		func(d *api.DiscoveryDocument) string { return d.RevocationEndpoint })
	if err != nil {
		return nil, err
	}
	c.revokeClient = api.NewRevocationClient(endpoint, c.retrying)
	return c.revokeClient, nil
}

func (c *AuthClient) getUserinfoClient(ctx context.Context) (*api.UserinfoClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userinfoClient != nil {
		return c.userinfoClient, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.UserinfoEndpoint, "userinfo",
		func(d *api.DiscoveryDocument) string { return d.UserinfoEndpoint })
	if err != nil {
		return nil, err
	}
	c.userinfoClient = api.NewUserinfoClient(endpoint, c.retrying)
	return c.userinfoClient, nil
}

func (c *AuthClient) getValidator(ctx context.Context) (*tokenvalidator.Validator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localValidator != nil {
		return c.localValidator, nil
	}
	endpoint, err := c.resolveEndpoint(ctx, c.cfg.JWKSEndpoint, "JWKS",
		func(d *api.DiscoveryDocument) string { return d.JWKSURI })
	if err != nil {
		return nil, err
	}
	jwks, err := api.NewJWKSClient(ctx, endpoint, c.httpClient)
	if err != nil {
		return nil, err
	}
	c.jwksClient = jwks
	c.localValidator = tokenvalidator.New(jwks)
	return c.localValidator, nil
}

// credentialFromToken wraps a token endpoint response as an in-memory OIDC
// credential, validating it in the process.
func credentialFromToken(token map[string]any) (*credential.OIDC, error) {
	cred := credential.NewOIDC(nil, "")
	if err := cred.SetData(token); err != nil {
		return nil, err
	}
	return cred, nil
}

// Refresh exchanges a refresh token for a fresh credential. Configured
// default scopes are deliberately NOT applied: an unadorned refresh must
// preserve whatever the existing grant carries. Scopes are only sent when
// the caller requests them explicitly.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string, requestedScopes []string) (*credential.OIDC, error) {
	if refreshToken == "" {
		return nil, errors.NewDataIntegrityError("no refresh token available", nil)
	}

	tokenClient, err := c.getTokenClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}

	token, err := tokenClient.GetTokenFromRefresh(ctx, c.cfg.ClientID, refreshToken, requestedScopes, enricher, nil)
	if err != nil {
		return nil, err
	}
	return credentialFromToken(token)
}

// targetAudience resolves the audience a local validation should check: the
// explicit argument when given, else the single configured audience.
func (c *AuthClient) targetAudience(audience string) (string, error) {
	if audience != "" {
		return audience, nil
	}
	if len(c.cfg.Audiences) == 1 {
		return c.cfg.Audiences[0], nil
	}
	return "", errors.NewConfigError(
		"no audience to validate against: pass one explicitly or configure exactly one", nil)
}

// ValidateAccessTokenLocal validates an access token against the auth
// server's published keys without a network round trip per call. Exactly one
// target audience applies; scopesAnyOf, when non-empty, requires the token
// to hold at least one of the named scopes.
func (c *AuthClient) ValidateAccessTokenLocal(ctx context.Context, accessToken, audience string, scopesAnyOf []string) (jwt.MapClaims, error) {
	aud, err := c.targetAudience(audience)
	if err != nil {
		return nil, err
	}
	issuer, err := c.Issuer(ctx)
	if err != nil {
		return nil, err
	}
	validator, err := c.getValidator(ctx)
	if err != nil {
		return nil, err
	}
	return validator.ValidateToken(ctx, accessToken, issuer, aud, scopesAnyOf)
}

// ValidateAccessTokenRemote validates an access token against the auth
// server's introspection endpoint.
func (c *AuthClient) ValidateAccessTokenRemote(ctx context.Context, accessToken string) (map[string]any, error) {
	intro, err := c.getIntrospectionClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}
	return intro.ValidateAccessToken(ctx, accessToken, enricher)
}

// ValidateIDTokenLocal validates an ID token locally. The required audience
// is this client's ID; a non-empty nonce must match the token's nonce claim.
func (c *AuthClient) ValidateIDTokenLocal(ctx context.Context, idToken, nonce string) (jwt.MapClaims, error) {
	issuer, err := c.Issuer(ctx)
	if err != nil {
		return nil, err
	}
	validator, err := c.getValidator(ctx)
	if err != nil {
		return nil, err
	}
	return validator.ValidateIDToken(ctx, idToken, issuer, c.cfg.ClientID, nonce)
}

// ValidateIDTokenRemote validates an ID token against the introspection
// endpoint.
func (c *AuthClient) ValidateIDTokenRemote(ctx context.Context, idToken string) (map[string]any, error) {
	intro, err := c.getIntrospectionClient(ctx)
	if err != nil {
		return nil, err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return nil, err
	}
	return intro.ValidateIDToken(ctx, idToken, enricher)
}

// RevokeAccessToken revokes an access token at the auth server.
func (c *AuthClient) RevokeAccessToken(ctx context.Context, accessToken string) error {
	rev, err := c.getRevocationClient(ctx)
	if err != nil {
		return err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return err
	}
	return rev.RevokeAccessToken(ctx, accessToken, enricher)
}

// RevokeRefreshToken revokes a refresh token at the auth server.
func (c *AuthClient) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	rev, err := c.getRevocationClient(ctx)
	if err != nil {
		return err
	}
	enricher, err := c.enricher(ctx)
	if err != nil {
		return err
	}
	return rev.RevokeRefreshToken(ctx, refreshToken, enricher)
}

// UserinfoFromAccessToken fetches the userinfo claims for the token's
// subject.
func (c *AuthClient) UserinfoFromAccessToken(ctx context.Context, accessToken string) (map[string]any, error) {
	ui, err := c.getUserinfoClient(ctx)
	if err != nil {
		return nil, err
	}
	return ui.UserinfoFromAccessToken(ctx, accessToken)
}

// loginScopes returns the scopes a login should request: per-call override,
// else the configured defaults.
func (c *AuthClient) loginScopes(opts *LoginOptions) []string {
	if opts != nil && opts.Scopes != nil {
		return opts.Scopes
	}
	return c.cfg.Scopes
}

// loginAudiences returns the audiences a login should request.
func (c *AuthClient) loginAudiences(opts *LoginOptions) []string {
	if opts != nil && opts.Audiences != nil {
		return opts.Audiences
	}
	return c.cfg.Audiences
}

// loginExtra merges per-call extra parameters with the configured
// organization and project, which ride along as authorization parameters.
func (c *AuthClient) loginExtra(opts *LoginOptions) url.Values {
	extra := url.Values{}
	if opts != nil {
		for key, values := range opts.Extra {
			for _, v := range values {
				extra.Add(key, v)
			}
		}
	}
	if c.cfg.Organization != "" && extra.Get("organization") == "" {
		extra.Set("organization", c.cfg.Organization)
	}
	if c.cfg.ProjectID != "" && extra.Get("project_id") == "" {
		extra.Set("project_id", c.cfg.ProjectID)
	}
	return extra
}

// allowOpenBrowser resolves the browser gate: per-call override, else
// configuration.
func (c *AuthClient) allowOpenBrowser(opts *LoginOptions) bool {
	if opts != nil && opts.OpenBrowser != nil {
		return *opts.OpenBrowser
	}
	return c.cfg.AllowOpenBrowser()
}

// allowTTYPrompt resolves the terminal prompt gate.
func (c *AuthClient) allowTTYPrompt(opts *LoginOptions) bool {
	if opts != nil && opts.TTYPrompt != nil {
		return *opts.TTYPrompt
	}
	return c.cfg.AllowTTYPrompt()
}

// ValidatorClient is the validation-only client type. It validates and
// introspects tokens but cannot log in; refreshing is rejected as a
// configuration error.
type ValidatorClient struct {
	*AuthClient
}

// Refresh is not available on a validator client.
func (c *ValidatorClient) Refresh(_ context.Context, _ string, _ []string) (*credential.OIDC, error) {
	return nil, errors.NewConfigError(
		fmt.Sprintf("client type %q cannot refresh credentials", c.Type()), nil)
}
