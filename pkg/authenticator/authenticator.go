// Package authenticator decorates outgoing API requests with credentials
// and manages the credential lifecycle: lazy loading, cross-process reload,
// and proactive refresh before expiry. Authenticators are single-threaded by
// contract; coordination between processes happens only through the backing
// credential file.
package authenticator

import (
	"context"
	"net/http"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/networking"
)

// RequestAuthenticator prepares and supplies the auth material for outgoing
// requests. PreRequestHook runs before each request and may perform network
// or file IO; the header triple describes what to stamp on the request.
type RequestAuthenticator interface {
	// PreRequestHook brings the authenticator's token up to date. Implementers
	// decide how much staleness is tolerable.
	PreRequestHook(ctx context.Context) error

	// HeaderName is the header the token is carried in, normally
	// "Authorization".
	HeaderName() string

	// TokenPrefix is the scheme prepended to the token body, normally
	// "Bearer". Empty means the body is sent bare.
	TokenPrefix() string

	// TokenBody is the current token value. Empty means the request goes out
	// undecorated.
	TokenBody() string
}

// Decorate runs the authenticator's hook and stamps the auth header and the
// app-identifying header onto the request.
func Decorate(ctx context.Context, auth RequestAuthenticator, req *http.Request) error {
	if err := auth.PreRequestHook(ctx); err != nil {
		return err
	}

	if body := auth.TokenBody(); body != "" {
		value := body
		if prefix := auth.TokenPrefix(); prefix != "" {
			value = prefix + " " + body
		}
		req.Header.Set(auth.HeaderName(), value)
	}

	if req.Header.Get(networking.AppHeader) == "" {
		req.Header.Set(networking.AppHeader, networking.AppHeaderValue)
	}
	return nil
}

// RoundTripper is an http.RoundTripper that authenticates every request
// through a RequestAuthenticator.
type RoundTripper struct {
	// Base is the underlying transport. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// Auth decorates each outgoing request.
	Auth RequestAuthenticator
}

// RoundTrip decorates a clone of the request and forwards it.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if err := Decorate(req.Context(), t.Auth, clone); err != nil {
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// Forbidden is the authenticator for the "none" client type: any attempt to
// authenticate a request is a configuration error.
type Forbidden struct{}

// NewForbidden creates an authenticator that refuses every request.
func NewForbidden() *Forbidden {
	return &Forbidden{}
}

// PreRequestHook always fails.
func (*Forbidden) PreRequestHook(_ context.Context) error {
	return errors.NewConfigError("no authentication is configured for this client", nil)
}

// HeaderName implements RequestAuthenticator.
func (*Forbidden) HeaderName() string { return "" }

// TokenPrefix implements RequestAuthenticator.
func (*Forbidden) TokenPrefix() string { return "" }

// TokenBody implements RequestAuthenticator.
func (*Forbidden) TokenBody() string { return "" }

// SimpleInMemory decorates requests with a fixed token held in memory. It is
// meant for tests and for callers that manage tokens themselves.
type SimpleInMemory struct {
	headerName string
	prefix     string
	body       string
}

// NewSimpleInMemory creates an authenticator around a literal token.
func NewSimpleInMemory(token, prefix string) *SimpleInMemory {
	return &SimpleInMemory{
		headerName: "Authorization",
		prefix:     prefix,
		body:       token,
	}
}

// PreRequestHook is a no-op.
func (*SimpleInMemory) PreRequestHook(_ context.Context) error { return nil }

// HeaderName implements RequestAuthenticator.
func (a *SimpleInMemory) HeaderName() string { return a.headerName }

// TokenPrefix implements RequestAuthenticator.
func (a *SimpleInMemory) TokenPrefix() string { return a.prefix }

// TokenBody implements RequestAuthenticator.
func (a *SimpleInMemory) TokenBody() string { return a.body }
