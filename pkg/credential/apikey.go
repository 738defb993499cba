package credential

import (
	"github.com/terravista/authkit/pkg/errors"
)

// DefaultAPIKeyPrefix is the Authorization scheme used when a static API key
// credential does not specify one.
const DefaultAPIKeyPrefix = "Bearer"

// APIKey is a file-backed static API key: a bare bearer secret plus an
// optional Authorization header prefix.
type APIKey struct {
	*File
}

// NewAPIKey constructs an APIKey credential over literal data (may be nil
// for load-on-demand) and an optional backing path.
func NewAPIKey(data map[string]any, path string) *APIKey {
	c := &APIKey{}
	c.File = NewFile(data, path, c.checkAPIKeyData)
	return c
}

func (*APIKey) checkAPIKeyData(data map[string]any) error {
	if s, _ := data["key"].(string); s == "" {
		return errors.NewDataIntegrityError("API key credential must hold a key", nil)
	}
	return nil
}

// Key returns the API key, loading the credential if needed.
func (c *APIKey) Key() string {
	return c.LazyGetString("key")
}

// Prefix returns the Authorization scheme to present the key under.
func (c *APIKey) Prefix() string {
	if p := c.LazyGetString("prefix"); p != "" {
		return p
	}
	return DefaultAPIKeyPrefix
}
