package authenticator

import (
	"context"
	"time"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
	"github.com/terravista/authkit/pkg/oidc"
	"github.com/terravista/authkit/pkg/tokenvalidator"
)

// refreshFraction controls when a token is considered due for refresh:
// three quarters of the way through its lifetime.
const (
	refreshNumerator   = 3
	refreshDenominator = 4
)

// Refresher is the slice of the OIDC client the refreshing authenticators
// need to obtain fresh tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string, requestedScopes []string) (*credential.OIDC, error)
}

// LoginRefresher additionally supports a full login, for flows where
// re-login is non-interactive and therefore safe to do automatically.
type LoginRefresher interface {
	Refresher
	Login(ctx context.Context, opts *oidc.LoginOptions) (*credential.OIDC, error)
}

// refreshingCore is the state machine shared by the refreshing
// authenticators. refreshAt of zero means the token is due immediately.
//
// Before refreshing over the network the core reloads the backing file: when
// several processes share a credential file, whichever refreshes first saves
// the result and the others pick it up with no token endpoint traffic.
type refreshingCore struct {
	cred      *credential.OIDC
	body      string
	refreshAt int64

	// obtain acquires a replacement credential when the current one is due.
	// The strict variant refreshes or fails; the relogin variant falls back
	// to a fresh login when no refresh token is held.
	obtain func(ctx context.Context, refreshToken string) (*credential.OIDC, error)
}

// PreRequestHook refreshes the held token when it is three quarters of the
// way through its lifetime. Failures are soft while a usable token remains:
// the stale token is kept and the server gets the final say.
func (a *refreshingCore) PreRequestHook(ctx context.Context) error {
	now := time.Now().Unix()

	if now >= a.refreshAt {
		// Another process may have refreshed the shared file already.
		if a.cred.Path() != "" {
			if err := a.cred.LazyReload(); err != nil {
				logger.Warnf("Failed to reload credential from %s: %v", a.cred.Path(), err)
			}
		} else if err := a.cred.LazyLoad(); err != nil {
			logger.Warnf("Failed to load credential: %v", err)
		}
		a.recomputeRefreshAt()
	}

	if now >= a.refreshAt {
		if err := a.refresh(ctx); err != nil {
			if a.cred.AccessToken() == "" {
				return err
			}
			logger.Warnf("Failed to refresh token, continuing with the current one: %v", err)
		}
	}

	a.body = a.cred.AccessToken()
	return nil
}

// refresh obtains a replacement credential, persists it to the path the old
// one came from, and swaps it in.
func (a *refreshingCore) refresh(ctx context.Context) error {
	newCred, err := a.obtain(ctx, a.cred.RefreshToken())
	if err != nil {
		return err
	}

	newCred.SetPath(a.cred.Path())
	if newCred.Path() != "" {
		if err := newCred.Save(); err != nil {
			logger.Warnf("Failed to save refreshed credential to %s: %v", newCred.Path(), err)
		}
	}

	a.cred = newCred
	a.recomputeRefreshAt()
	return nil
}

// recomputeRefreshAt derives the next refresh time from the held token's
// unverified iat and exp claims. The token is our own; no trust decision
// hangs on the claims, only scheduling.
func (a *refreshingCore) recomputeRefreshAt() {
	accessToken := a.cred.AccessToken()
	if accessToken == "" {
		a.refreshAt = 0
		return
	}

	claims, err := tokenvalidator.UnverifiedClaims(accessToken)
	if err != nil {
		logger.Debugf("Cannot schedule token refresh, token is not a readable JWT: %v", err)
		a.refreshAt = 0
		return
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		a.refreshAt = 0
		return
	}
	exp := expiry.Unix()

	iat := int64(0)
	if issuedAt, err := claims.GetIssuedAt(); err == nil && issuedAt != nil {
		iat = issuedAt.Unix()
	}
	if iat == 0 || iat > exp {
		a.refreshAt = 0
		return
	}

	a.refreshAt = iat + (exp-iat)*refreshNumerator/refreshDenominator
}

// UpdateCredential swaps in a new credential, for example after an explicit
// login. The derived state is reset so the next request re-derives its
// schedule from the new token.
func (a *refreshingCore) UpdateCredential(cred *credential.OIDC) error {
	if cred == nil {
		return errors.NewConfigError("no credential provided", nil)
	}
	a.cred = cred
	a.body = ""
	a.refreshAt = 0
	return nil
}

// Credential returns the currently held credential.
func (a *refreshingCore) Credential() *credential.OIDC {
	return a.cred
}

// HeaderName implements RequestAuthenticator.
func (*refreshingCore) HeaderName() string { return "Authorization" }

// TokenPrefix implements RequestAuthenticator.
func (*refreshingCore) TokenPrefix() string { return "Bearer" }

// TokenBody implements RequestAuthenticator.
func (a *refreshingCore) TokenBody() string { return a.body }

// RefreshingOIDC authenticates requests with a file-backed OIDC credential,
// refreshing it before expiry. A credential without a refresh token cannot
// be renewed; the strict variant treats that as a refresh failure. Suited to
// interactive flows where an automatic re-login would hijack the user's
// terminal or browser.
type RefreshingOIDC struct {
	refreshingCore
}

// NewRefreshingOIDC creates the strict refreshing authenticator. client may
// be nil, in which case tokens are only ever reloaded from the backing file.
func NewRefreshingOIDC(cred *credential.OIDC, client Refresher) *RefreshingOIDC {
	a := &RefreshingOIDC{
		refreshingCore: refreshingCore{cred: cred},
	}
	a.obtain = func(ctx context.Context, refreshToken string) (*credential.OIDC, error) {
		if client == nil {
			return nil, errors.NewConfigError("no auth client available to refresh with", nil)
		}
		if refreshToken == "" {
			return nil, errors.NewDataIntegrityError("credential holds no refresh token", nil)
		}
		return client.Refresh(ctx, refreshToken, nil)
	}
	return a
}

// RefreshOrReloginOIDC refreshes like RefreshingOIDC but falls back to a
// full login when no refresh token is held. Only safe for non-interactive
// flows; the choice of variant always belongs to the flow, never to a
// library default.
type RefreshOrReloginOIDC struct {
	refreshingCore
}

// NewRefreshOrReloginOIDC creates the relogin-capable authenticator.
func NewRefreshOrReloginOIDC(cred *credential.OIDC, client LoginRefresher) *RefreshOrReloginOIDC {
	a := &RefreshOrReloginOIDC{
		refreshingCore: refreshingCore{cred: cred},
	}
	a.obtain = func(ctx context.Context, refreshToken string) (*credential.OIDC, error) {
		if client == nil {
			return nil, errors.NewConfigError("no auth client available to refresh with", nil)
		}
		if refreshToken == "" {
			return client.Login(ctx, nil)
		}
		return client.Refresh(ctx, refreshToken, nil)
	}
	return a
}
