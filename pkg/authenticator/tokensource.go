package authenticator

import (
	"context"

	"golang.org/x/oauth2"
)

// tokenSource adapts a RequestAuthenticator to the oauth2.TokenSource
// contract, for libraries that consume token sources rather than transports.
type tokenSource struct {
	ctx  context.Context
	auth RequestAuthenticator
}

// NewTokenSource exposes the authenticator's managed token as an
// oauth2.TokenSource. The context bounds the token acquisition performed by
// each Token call.
func NewTokenSource(ctx context.Context, auth RequestAuthenticator) oauth2.TokenSource {
	return &tokenSource{
		ctx:  ctx,
		auth: auth,
	}
}

// Token runs the authenticator's hook and returns the current token.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	if err := s.auth.PreRequestHook(s.ctx); err != nil {
		return nil, err
	}
	tokenType := s.auth.TokenPrefix()
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken: s.auth.TokenBody(),
		TokenType:   tokenType,
	}, nil
}
