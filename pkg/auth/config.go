// Package auth is the toolkit façade: it loads a client profile, constructs
// the matching auth client and request authenticator, and ties logins to the
// credential file they persist to.
package auth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/legacy"
	"github.com/terravista/authkit/pkg/oidc"
)

// Non-OIDC client types handled at the façade level. The OIDC types are
// defined in pkg/oidc.
const (
	ClientTypeLegacy       = "legacy"
	ClientTypeStaticAPIKey = "static-api-key"
	ClientTypeNone         = "none"
)

// Config is an on-disk client profile: one flat JSON object whose
// client_type field selects how the remaining fields are interpreted.
type Config struct {
	// ClientType is the profile's client type, OIDC or otherwise.
	ClientType string

	raw json.RawMessage
}

// ParseConfig parses a client profile from JSON.
func ParseConfig(data []byte) (*Config, error) {
	var peek struct {
		ClientType string `json:"client_type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, errors.NewConfigError("client profile is not valid JSON", err)
	}
	if peek.ClientType == "" {
		return nil, errors.NewConfigError("client profile is missing client_type", nil)
	}
	return &Config{
		ClientType: peek.ClientType,
		raw:        json.RawMessage(data),
	}, nil
}

// LoadConfigFile reads and parses a client profile file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(
			fmt.Sprintf("failed to read client profile %s", path), err)
	}
	return ParseConfig(data)
}

// IsOIDC reports whether the profile names one of the OIDC client types.
func (c *Config) IsOIDC() bool {
	switch c.ClientType {
	case ClientTypeLegacy, ClientTypeStaticAPIKey, ClientTypeNone:
		return false
	}
	return true
}

// OIDC decodes the profile as an OIDC client configuration.
func (c *Config) OIDC() (*oidc.Config, error) {
	var cfg oidc.Config
	if err := json.Unmarshal(c.raw, &cfg); err != nil {
		return nil, errors.NewConfigError("malformed OIDC client profile", err)
	}
	return &cfg, nil
}

// Legacy decodes the profile as a legacy client configuration.
func (c *Config) Legacy() (*legacy.Config, error) {
	var cfg legacy.Config
	if err := json.Unmarshal(c.raw, &cfg); err != nil {
		return nil, errors.NewConfigError("malformed legacy client profile", err)
	}
	return &cfg, nil
}

// StaticAPIKeyConfig configures the static API key client type. When APIKey
// is empty the key is read from the token file instead.
type StaticAPIKeyConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// StaticAPIKey decodes the profile as a static API key configuration.
func (c *Config) StaticAPIKey() (*StaticAPIKeyConfig, error) {
	var cfg StaticAPIKeyConfig
	if err := json.Unmarshal(c.raw, &cfg); err != nil {
		return nil, errors.NewConfigError("malformed static API key profile", err)
	}
	return &cfg, nil
}
