package credential

import (
	"github.com/terravista/authkit/pkg/errors"
)

// OIDC is a file-backed OAuth/OIDC token set. The document is the raw token
// endpoint response: access_token plus optional refresh_token, id_token,
// token_type, scope and expires_in.
type OIDC struct {
	*File
}

// NewOIDC constructs an OIDC credential over literal data (may be nil for
// load-on-demand) and an optional backing path.
func NewOIDC(data map[string]any, path string) *OIDC {
	c := &OIDC{}
	c.File = NewFile(data, path, c.checkOIDCData)
	return c
}

func (*OIDC) checkOIDCData(data map[string]any) error {
	if s, _ := data["access_token"].(string); s == "" {
		return errors.NewDataIntegrityError("OIDC credential must hold an access_token", nil)
	}
	return nil
}

// AccessToken returns the access token, loading the credential if needed.
func (c *OIDC) AccessToken() string {
	return c.LazyGetString("access_token")
}

// RefreshToken returns the refresh token, or empty if none was granted.
func (c *OIDC) RefreshToken() string {
	return c.LazyGetString("refresh_token")
}

// IDToken returns the OIDC ID token, or empty if none was granted.
func (c *OIDC) IDToken() string {
	return c.LazyGetString("id_token")
}

// TokenType returns the token type, normally "Bearer".
func (c *OIDC) TokenType() string {
	return c.LazyGetString("token_type")
}

// Scope returns the space-separated scope string granted with the token.
func (c *OIDC) Scope() string {
	return c.LazyGetString("scope")
}

// ExpiresIn returns the advertised access token lifetime in seconds, or 0.
func (c *OIDC) ExpiresIn() int64 {
	switch v := c.LazyGet("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
