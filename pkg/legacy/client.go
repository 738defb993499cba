package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/networking"
	"github.com/terravista/authkit/pkg/tokenvalidator"
)

const maxResponseSize = 1024 * 1024 // 1MB

// Config holds the legacy auth client configuration.
type Config struct {
	// Endpoint is the legacy login endpoint URL.
	Endpoint string `json:"legacy_auth_endpoint" mapstructure:"legacy_auth_endpoint"`

	// Email and Password preset the login credentials.
	Email    string `json:"email,omitempty" mapstructure:"email"`
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.NewConfigError("legacy_auth_endpoint is required", nil)
	}
	return nil
}

// Client logs in against the legacy auth endpoint and produces API key
// credentials.
type Client struct {
	cfg    *Config
	client networking.HTTPClient
}

// NewClient creates a legacy auth client. httpClient may be nil to use the
// default retrying client.
func NewClient(cfg *Config, httpClient networking.HTTPClient) (*Client, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("no client configuration provided", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = networking.NewRetryingClient(nil)
	}
	return &Client{
		cfg:    cfg,
		client: httpClient,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates with the resource owner's email and password. The
// endpoint answers with a session JWT whose claims carry the long-lived API
// key; both are stored in the returned credential.
func (c *Client) Login(ctx context.Context, email, password string) (*Credential, error) {
	if email == "" {
		email = c.cfg.Email
	}
	if password == "" {
		password = c.cfg.Password
	}
	if email == "" || password == "" {
		return nil, errors.NewConfigError("legacy login requires an email and password", nil)
	}

	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, errors.NewConfigError("failed to encode login request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewTransportError("failed to build login request", err)
	}
	networking.SetDefaultHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(
			fmt.Sprintf("login request to %s failed", c.cfg.Endpoint), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.NewTransportError("failed to read login response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewTransportError(
			fmt.Sprintf("HTTP error from legacy auth endpoint at %s: %d %s",
				c.cfg.Endpoint, resp.StatusCode, http.StatusText(resp.StatusCode)), nil)
	}

	var login loginResponse
	if err := json.Unmarshal(respBody, &login); err != nil {
		return nil, errors.NewProtocolError("invalid_response",
			fmt.Sprintf("malformed JSON response from legacy auth endpoint at %s: %v", c.cfg.Endpoint, err))
	}
	if login.Token == "" {
		return nil, errors.NewProtocolError("invalid_response",
			"legacy auth response is missing the session token")
	}

	// The API key rides inside the session JWT's claims. The token comes
	// straight from the auth endpoint over TLS; signature verification adds
	// nothing here.
	claims, err := tokenvalidator.UnverifiedClaims(login.Token)
	if err != nil {
		return nil, errors.NewProtocolError("invalid_response",
			"legacy auth session token is not a readable JWT")
	}
	apiKey, _ := claims["api_key"].(string)
	if apiKey == "" {
		return nil, errors.NewProtocolError("invalid_response",
			"legacy auth session token does not carry an api_key claim")
	}

	cred := NewCredential(nil, "")
	if err := cred.SetData(map[string]any{
		"api_key": apiKey,
		"jwt":     login.Token,
	}); err != nil {
		return nil, err
	}
	return cred, nil
}
