package legacy

import (
	"context"
)

// TokenPrefix is the scheme legacy services expect in the Authorization
// header.
const TokenPrefix = "api-key"

// RequestAuthenticator authenticates requests with a legacy API key. The
// session JWT stored alongside the key is deliberately unused.
type RequestAuthenticator struct {
	cred *Credential
}

// NewRequestAuthenticator creates an authenticator over a legacy credential.
func NewRequestAuthenticator(cred *Credential) *RequestAuthenticator {
	return &RequestAuthenticator{cred: cred}
}

// PreRequestHook loads the backing file on first use.
func (a *RequestAuthenticator) PreRequestHook(_ context.Context) error {
	return a.cred.LazyLoad()
}

// HeaderName implements authenticator.RequestAuthenticator.
func (*RequestAuthenticator) HeaderName() string { return "Authorization" }

// TokenPrefix implements authenticator.RequestAuthenticator.
func (*RequestAuthenticator) TokenPrefix() string { return TokenPrefix }

// TokenBody implements authenticator.RequestAuthenticator.
func (a *RequestAuthenticator) TokenBody() string { return a.cred.APIKey() }
