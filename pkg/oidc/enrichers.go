package oidc

import (
	"crypto/rsa"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/oidc/api"
)

// clientAssertionType is the assertion type for private-key JWT client
// authentication (RFC 7523).
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// clientAssertionTTL bounds the validity of a signed client assertion.
const clientAssertionTTL = 5 * time.Minute

// noneEnricher authenticates a public client: the client_id rides in the
// payload and nothing else is added.
func noneEnricher(clientID string) api.Enricher {
	return func(payload url.Values, _ string) (url.Values, api.RequestAuth, error) {
		payload.Set("client_id", clientID)
		return payload, nil, nil
	}
}

// clientSecretBasicEnricher authenticates with the client secret over HTTP
// Basic authentication.
func clientSecretBasicEnricher(clientID, clientSecret string) api.Enricher {
	return func(payload url.Values, _ string) (url.Values, api.RequestAuth, error) {
		payload.Set("client_id", clientID)
		return payload, api.BasicAuth(clientID, clientSecret), nil
	}
}

// clientSecretPostEnricher authenticates with the client secret in the form
// body, for servers that do not accept Basic authentication.
func clientSecretPostEnricher(clientID, clientSecret string) api.Enricher {
	return func(payload url.Values, _ string) (url.Values, api.RequestAuth, error) {
		payload.Set("client_id", clientID)
		payload.Set("client_secret", clientSecret)
		return payload, nil, nil
	}
}

// privateKeyEnricher authenticates with a freshly signed RS256 client
// assertion (RFC 7523). The assertion audience is the token endpoint.
func privateKeyEnricher(clientID string, key *rsa.PrivateKey, tokenEndpoint string) api.Enricher {
	return func(payload url.Values, _ string) (url.Values, api.RequestAuth, error) {
		now := time.Now()
		claims := jwt.MapClaims{
			"iss": clientID,
			"sub": clientID,
			"aud": tokenEndpoint,
			"jti": uuid.NewString(),
			"iat": now.Unix(),
			"exp": now.Add(clientAssertionTTL).Unix(),
		}

		assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		if err != nil {
			return nil, nil, errors.NewConfigError("failed to sign client assertion", err)
		}

		payload.Set("client_id", clientID)
		payload.Set("client_assertion_type", clientAssertionType)
		payload.Set("client_assertion", assertion)
		return payload, nil, nil
	}
}

// newEnricher builds the client authentication enricher for the configured
// client type. tokenEndpoint is needed for assertion audiences and is only
// resolved when the type requires it.
func (c *AuthClient) newEnricher(tokenEndpoint string) (api.Enricher, error) {
	cfg := c.cfg

	switch {
	case cfg.ClientType.requiresSecret():
		if cfg.ClientAuthStyle == AuthStylePost {
			return clientSecretPostEnricher(cfg.ClientID, cfg.ClientSecret), nil
		}
		return clientSecretBasicEnricher(cfg.ClientID, cfg.ClientSecret), nil

	case cfg.ClientType.requiresPrivateKey():
		pemBytes, err := cfg.privateKeyPEM()
		if err != nil {
			return nil, err
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return nil, errors.NewConfigError("failed to parse client private key", err)
		}
		return privateKeyEnricher(cfg.ClientID, key, tokenEndpoint), nil

	default:
		return noneEnricher(cfg.ClientID), nil
	}
}
