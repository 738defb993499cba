package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
)

// JWKSClient fetches and caches the signing key set published by an auth
// server. Keys are cached with auto-refresh; a lookup for an unknown key ID
// busts the cache once before failing, so freshly rotated keys are picked up
// without waiting for the refresh window.
type JWKSClient struct {
	endpoint string
	cache    *jwk.Cache

	// Lazy JWKS registration
	registered      bool
	registrationMu  sync.Mutex
	registrationErr error
}

// NewJWKSClient creates a JWKS client for the given endpoint. httpClient may
// be nil to use a default client.
func NewJWKSClient(ctx context.Context, endpoint string, httpClient *http.Client) (*JWKSClient, error) {
	var opts []httprc.NewClientOption
	if httpClient != nil {
		opts = append(opts, httprc.WithHTTPClient(httpClient))
	}
	cache, err := jwk.NewCache(ctx, httprc.NewClient(opts...))
	if err != nil {
		return nil, errors.NewTransportError("failed to create JWKS cache", err)
	}

	return &JWKSClient{
		endpoint: endpoint,
		cache:    cache,
	}, nil
}

// Endpoint returns the JWKS endpoint URI.
func (c *JWKSClient) Endpoint() string {
	return c.endpoint
}

// ensureRegistered registers the JWKS URL with the cache on first use.
func (c *JWKSClient) ensureRegistered(ctx context.Context) error {
	c.registrationMu.Lock()
	defer c.registrationMu.Unlock()

	if c.registered {
		return c.registrationErr
	}

	registrationCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.cache.Register(registrationCtx, c.endpoint); err != nil {
		c.registrationErr = errors.NewTransportError(
			fmt.Sprintf("failed to register JWKS endpoint %s", c.endpoint), err)
	} else {
		c.registrationErr = nil
	}

	c.registered = true
	return c.registrationErr
}

// KeySet returns the current cached key set.
func (c *JWKSClient) KeySet(ctx context.Context) (jwk.Set, error) {
	if err := c.ensureRegistered(ctx); err != nil {
		return nil, err
	}
	keySet, err := c.cache.Lookup(ctx, c.endpoint)
	if err != nil {
		return nil, errors.NewTransportError(
			fmt.Sprintf("failed to fetch JWKS from %s", c.endpoint), err)
	}
	return keySet, nil
}

// KeyByID returns the key with the given key ID. An unknown key ID triggers
// one forced refresh of the key set before reporting the key as absent.
func (c *JWKSClient) KeyByID(ctx context.Context, kid string) (jwk.Key, bool, error) {
	keySet, err := c.KeySet(ctx)
	if err != nil {
		return nil, false, err
	}

	if key, found := keySet.LookupKeyID(kid); found {
		return key, true, nil
	}

	// The key may have been rotated in since our last fetch.
	logger.Debugf("Key ID %q not in cached JWKS, refreshing key set", kid)
	keySet, err = c.cache.Refresh(ctx, c.endpoint)
	if err != nil {
		return nil, false, errors.NewTransportError(
			fmt.Sprintf("failed to refresh JWKS from %s", c.endpoint), err)
	}

	if key, found := keySet.LookupKeyID(kid); found {
		return key, true, nil
	}
	return nil, false, nil
}
