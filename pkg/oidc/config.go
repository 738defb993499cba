// Package oidc implements the OAuth2/OIDC client protocol engine: a closed
// set of client types, per-type client authentication, and the four grant
// flows (authorization code, device code, client credentials, resource owner
// password) producing file-backed OIDC credentials.
package oidc

import (
	"fmt"
	"os"

	"github.com/terravista/authkit/pkg/errors"
)

// ClientType identifies how a client authenticates itself and which grant
// flow it runs. The set is closed; construction dispatches over it with no
// runtime type registry.
type ClientType string

const (
	// Authorization code grant with PKCE.
	ClientTypeAuthCode       ClientType = "oidc-auth-code"
	ClientTypeAuthCodeSecret ClientType = "oidc-auth-code-secret"
	ClientTypeAuthCodePubKey ClientType = "oidc-auth-code-pubkey"

	// Client credentials grant. Always a confidential client.
	ClientTypeClientCredentialsSecret ClientType = "oidc-client-credentials-secret"
	ClientTypeClientCredentialsPubKey ClientType = "oidc-client-credentials-pubkey"

	// Device code grant (RFC 8628).
	ClientTypeDeviceCode       ClientType = "oidc-device-code"
	ClientTypeDeviceCodeSecret ClientType = "oidc-device-code-secret"
	ClientTypeDeviceCodePubKey ClientType = "oidc-device-code-pubkey"

	// Resource owner password grant. Legacy compatibility only.
	ClientTypeResourceOwner       ClientType = "oidc-resource-owner"
	ClientTypeResourceOwnerSecret ClientType = "oidc-resource-owner-secret"
	ClientTypeResourceOwnerPubKey ClientType = "oidc-resource-owner-pubkey"

	// Validation-only client. Cannot log in or refresh.
	ClientTypeValidator ClientType = "oidc-client-validator"
)

// Client authentication styles for confidential clients holding a secret.
const (
	// AuthStyleBasic sends the client secret via HTTP Basic authentication.
	AuthStyleBasic = "basic"

	// AuthStylePost sends the client secret in the form body. Some servers
	// only accept this style.
	AuthStylePost = "post"
)

// flow groups client types by the grant flow they run.
type flow int

const (
	flowAuthCode flow = iota
	flowClientCredentials
	flowDeviceCode
	flowResourceOwner
	flowValidator
)

var clientFlows = map[ClientType]flow{
	ClientTypeAuthCode:                flowAuthCode,
	ClientTypeAuthCodeSecret:          flowAuthCode,
	ClientTypeAuthCodePubKey:          flowAuthCode,
	ClientTypeClientCredentialsSecret: flowClientCredentials,
	ClientTypeClientCredentialsPubKey: flowClientCredentials,
	ClientTypeDeviceCode:              flowDeviceCode,
	ClientTypeDeviceCodeSecret:        flowDeviceCode,
	ClientTypeDeviceCodePubKey:        flowDeviceCode,
	ClientTypeResourceOwner:           flowResourceOwner,
	ClientTypeResourceOwnerSecret:     flowResourceOwner,
	ClientTypeResourceOwnerPubKey:     flowResourceOwner,
	ClientTypeValidator:               flowValidator,
}

func (t ClientType) flow() (flow, bool) {
	f, ok := clientFlows[t]
	return f, ok
}

// requiresSecret reports whether the type authenticates with a client secret.
func (t ClientType) requiresSecret() bool {
	switch t {
	case ClientTypeAuthCodeSecret, ClientTypeClientCredentialsSecret,
		ClientTypeDeviceCodeSecret, ClientTypeResourceOwnerSecret:
		return true
	}
	return false
}

// requiresPrivateKey reports whether the type authenticates with a signed
// client assertion.
func (t ClientType) requiresPrivateKey() bool {
	switch t {
	case ClientTypeAuthCodePubKey, ClientTypeClientCredentialsPubKey,
		ClientTypeDeviceCodePubKey, ClientTypeResourceOwnerPubKey:
		return true
	}
	return false
}

// Config holds everything needed to construct an OIDC auth client. The JSON
// shape is what client profile files store on disk.
type Config struct {
	// ClientType selects the grant flow and client authentication method.
	ClientType ClientType `json:"client_type" mapstructure:"client_type"`

	// AuthServer is the base URL of the authorization server. Discovery runs
	// against <auth_server>/.well-known/openid-configuration.
	AuthServer string `json:"auth_server" mapstructure:"auth_server"`

	// ClientID is the OAuth client identifier.
	ClientID string `json:"client_id" mapstructure:"client_id"`

	// ClientSecret is required for the -secret client types.
	ClientSecret string `json:"client_secret,omitempty" mapstructure:"client_secret"`

	// ClientAuthStyle selects how a client secret is presented. Empty means
	// AuthStyleBasic.
	ClientAuthStyle string `json:"client_auth_style,omitempty" mapstructure:"client_auth_style"`

	// ClientPrivKey is a PEM-encoded RSA private key for the -pubkey client
	// types. ClientPrivKeyFile names a file holding the same.
	ClientPrivKey     string `json:"client_privkey,omitempty" mapstructure:"client_privkey"`
	ClientPrivKeyFile string `json:"client_privkey_file,omitempty" mapstructure:"client_privkey_file"`

	// Scopes are the default scopes requested at login. Refresh never applies
	// them implicitly.
	Scopes []string `json:"scopes,omitempty" mapstructure:"scopes"`

	// Audiences are the token audiences requested at login. At most one
	// audience is supported.
	Audiences []string `json:"audiences,omitempty" mapstructure:"audiences"`

	// Organization and ProjectID are forwarded to the auth server as extra
	// authorization parameters when set.
	Organization string `json:"organization,omitempty" mapstructure:"organization"`
	ProjectID    string `json:"project_id,omitempty" mapstructure:"project_id"`

	// Issuer overrides the issuer advertised by discovery. Required when the
	// discovery document carries none.
	Issuer string `json:"issuer,omitempty" mapstructure:"issuer"`

	// Endpoint overrides. Anything left empty is resolved from the discovery
	// document on first use.
	AuthorizationEndpoint       string `json:"authorization_endpoint,omitempty" mapstructure:"authorization_endpoint"`
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint,omitempty" mapstructure:"device_authorization_endpoint"`
	TokenEndpoint               string `json:"token_endpoint,omitempty" mapstructure:"token_endpoint"`
	IntrospectionEndpoint       string `json:"introspection_endpoint,omitempty" mapstructure:"introspection_endpoint"`
	RevocationEndpoint          string `json:"revocation_endpoint,omitempty" mapstructure:"revocation_endpoint"`
	UserinfoEndpoint            string `json:"userinfo_endpoint,omitempty" mapstructure:"userinfo_endpoint"`
	JWKSEndpoint                string `json:"jwks_endpoint,omitempty" mapstructure:"jwks_endpoint"`

	// RedirectURI overrides the loopback redirect URI for the authorization
	// code flow. CallbackPort fixes the loopback listener port; 0 picks an
	// ephemeral port.
	RedirectURI  string `json:"redirect_uri,omitempty" mapstructure:"redirect_uri"`
	CallbackPort int    `json:"callback_port,omitempty" mapstructure:"callback_port"`

	// Username and Password preset the resource owner credentials. When
	// absent they are prompted for interactively.
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"password,omitempty" mapstructure:"password"`

	// OpenBrowser and TTYPrompt gate the interactive affordances of the
	// user-facing flows. Both default to enabled when unset.
	OpenBrowser *bool `json:"allow_open_browser,omitempty" mapstructure:"allow_open_browser"`
	TTYPrompt   *bool `json:"allow_tty_prompt,omitempty" mapstructure:"allow_tty_prompt"`

	// CABundle is a path to a PEM bundle of additional trusted CAs.
	CABundle string `json:"ca_bundle,omitempty" mapstructure:"ca_bundle"`

	// InsecureAllowHTTP permits plain HTTP to non-loopback auth servers.
	// Testing only.
	InsecureAllowHTTP bool `json:"insecure_allow_http,omitempty" mapstructure:"insecure_allow_http"`
}

// AllowOpenBrowser reports whether the flows may launch a browser.
func (c *Config) AllowOpenBrowser() bool {
	return c.OpenBrowser == nil || *c.OpenBrowser
}

// AllowTTYPrompt reports whether the flows may prompt on the terminal.
func (c *Config) AllowTTYPrompt() bool {
	return c.TTYPrompt == nil || *c.TTYPrompt
}

// Validate checks the configuration invariants for the configured client
// type. It is called by New; callers constructing configs programmatically
// may call it early for better error locality.
func (c *Config) Validate() error {
	if _, ok := c.ClientType.flow(); !ok {
		return errors.NewConfigError(
			fmt.Sprintf("unknown client type %q", c.ClientType), nil)
	}

	if c.AuthServer == "" {
		return errors.NewConfigError("auth_server is required", nil)
	}
	if c.ClientID == "" {
		return errors.NewConfigError("client_id is required", nil)
	}

	if len(c.Audiences) > 1 {
		return errors.NewConfigError(
			fmt.Sprintf("at most one audience is supported, got %d", len(c.Audiences)), nil)
	}

	if c.ClientType.requiresSecret() && c.ClientSecret == "" {
		return errors.NewConfigError(
			fmt.Sprintf("client type %q requires client_secret", c.ClientType), nil)
	}
	if c.ClientType.requiresPrivateKey() && c.ClientPrivKey == "" && c.ClientPrivKeyFile == "" {
		return errors.NewConfigError(
			fmt.Sprintf("client type %q requires client_privkey or client_privkey_file", c.ClientType), nil)
	}

	switch c.ClientAuthStyle {
	case "", AuthStyleBasic, AuthStylePost:
	default:
		return errors.NewConfigError(
			fmt.Sprintf("unknown client_auth_style %q", c.ClientAuthStyle), nil)
	}

	return nil
}

// privateKeyPEM returns the PEM bytes of the configured client private key.
func (c *Config) privateKeyPEM() ([]byte, error) {
	if c.ClientPrivKey != "" {
		return []byte(c.ClientPrivKey), nil
	}
	pem, err := os.ReadFile(c.ClientPrivKeyFile)
	if err != nil {
		return nil, errors.NewConfigError(
			fmt.Sprintf("failed to read client private key from %s", c.ClientPrivKeyFile), err)
	}
	return pem, nil
}
