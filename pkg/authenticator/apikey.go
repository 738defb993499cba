package authenticator

import (
	"context"

	"github.com/terravista/authkit/pkg/credential"
)

// StaticAPIKey authenticates requests with a file-backed API key. The key
// never expires and never refreshes; the hook only ensures the file is
// loaded.
type StaticAPIKey struct {
	cred *credential.APIKey
}

// NewStaticAPIKey creates an authenticator over an API key credential.
func NewStaticAPIKey(cred *credential.APIKey) *StaticAPIKey {
	return &StaticAPIKey{cred: cred}
}

// PreRequestHook loads the backing file on first use.
func (a *StaticAPIKey) PreRequestHook(_ context.Context) error {
	return a.cred.LazyLoad()
}

// HeaderName implements RequestAuthenticator.
func (*StaticAPIKey) HeaderName() string { return "Authorization" }

// TokenPrefix implements RequestAuthenticator.
func (a *StaticAPIKey) TokenPrefix() string { return a.cred.Prefix() }

// TokenBody implements RequestAuthenticator.
func (a *StaticAPIKey) TokenBody() string { return a.cred.Key() }
