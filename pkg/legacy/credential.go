// Package legacy implements the pre-OAuth username/password login and its
// API key request authenticator. It exists for compatibility with services
// that never moved to OIDC; new integrations should use pkg/oidc.
package legacy

import (
	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
)

// Credential is a file-backed legacy API key. The login response also
// carries a session JWT, which is stored but not used for request
// authentication.
type Credential struct {
	*credential.File
}

// NewCredential constructs a legacy credential over literal data (may be nil
// for load-on-demand) and an optional backing path.
func NewCredential(data map[string]any, path string) *Credential {
	c := &Credential{}
	c.File = credential.NewFile(data, path, c.checkData)
	return c
}

func (*Credential) checkData(data map[string]any) error {
	if s, _ := data["api_key"].(string); s == "" {
		return errors.NewDataIntegrityError("legacy credential must hold an api_key", nil)
	}
	return nil
}

// APIKey returns the legacy API key, loading the credential if needed.
func (c *Credential) APIKey() string {
	return c.LazyGetString("api_key")
}

// JWT returns the session JWT issued alongside the API key, or empty.
func (c *Credential) JWT() string {
	return c.LazyGetString("jwt")
}
