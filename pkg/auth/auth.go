package auth

import (
	"context"
	"fmt"

	"github.com/terravista/authkit/pkg/authenticator"
	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/legacy"
	"github.com/terravista/authkit/pkg/logger"
	"github.com/terravista/authkit/pkg/oidc"
	"github.com/terravista/authkit/pkg/oidc/api"
)

// credentialUpdater is satisfied by the refreshing authenticators, which
// need to know when a login replaced the credential out from under them.
type credentialUpdater interface {
	UpdateCredential(cred *credential.OIDC) error
}

// Auth bundles an auth client, its request authenticator, and the token
// file that logins persist to.
type Auth struct {
	clientType    string
	oidcClient    oidc.Client
	legacyClient  *legacy.Client
	reqAuth       authenticator.RequestAuthenticator
	tokenFilePath string
}

// NewFromConfig constructs the full authentication context for a client
// profile. tokenFile is where credentials are persisted; empty keeps them in
// memory only.
func NewFromConfig(cfg *Config, tokenFile string) (*Auth, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("no client profile provided", nil)
	}

	a := &Auth{
		clientType:    cfg.ClientType,
		tokenFilePath: tokenFile,
	}

	switch cfg.ClientType {
	case ClientTypeNone:
		a.reqAuth = authenticator.NewForbidden()
		return a, nil

	case ClientTypeStaticAPIKey:
		keyCfg, err := cfg.StaticAPIKey()
		if err != nil {
			return nil, err
		}
		var cred *credential.APIKey
		if keyCfg.APIKey != "" {
			cred = credential.NewAPIKey(nil, "")
			data := map[string]any{"key": keyCfg.APIKey}
			if keyCfg.Prefix != "" {
				data["prefix"] = keyCfg.Prefix
			}
			if err := cred.SetData(data); err != nil {
				return nil, err
			}
		} else {
			if tokenFile == "" {
				return nil, errors.NewConfigError(
					"static API key profile needs an api_key or a token file", nil)
			}
			cred = credential.NewAPIKey(nil, tokenFile)
		}
		a.reqAuth = authenticator.NewStaticAPIKey(cred)
		return a, nil

	case ClientTypeLegacy:
		legacyCfg, err := cfg.Legacy()
		if err != nil {
			return nil, err
		}
		client, err := legacy.NewClient(legacyCfg, nil)
		if err != nil {
			return nil, err
		}
		a.legacyClient = client
		a.reqAuth = legacy.NewRequestAuthenticator(legacy.NewCredential(nil, tokenFile))
		return a, nil
	}

	oidcCfg, err := cfg.OIDC()
	if err != nil {
		return nil, err
	}
	client, err := oidc.New(oidcCfg)
	if err != nil {
		return nil, err
	}
	a.oidcClient = client

	cred := credential.NewOIDC(nil, tokenFile)
	reqAuth, err := authenticator.ForClient(client, cred)
	if err != nil {
		return nil, err
	}
	a.reqAuth = reqAuth
	return a, nil
}

// NewFromConfigFile loads a client profile file and constructs the
// authentication context for it.
func NewFromConfigFile(profilePath, tokenFile string) (*Auth, error) {
	cfg, err := LoadConfigFile(profilePath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, tokenFile)
}

// ClientType returns the profile's client type.
func (a *Auth) ClientType() string {
	return a.clientType
}

// Client returns the OIDC auth client, or nil for non-OIDC profiles.
func (a *Auth) Client() oidc.Client {
	return a.oidcClient
}

// RequestAuthenticator returns the request authenticator for this context.
func (a *Auth) RequestAuthenticator() authenticator.RequestAuthenticator {
	return a.reqAuth
}

// TokenFilePath returns the credential file path, or empty for in-memory
// credentials.
func (a *Auth) TokenFilePath() string {
	return a.tokenFilePath
}

// Login performs an initial login with the profile's flow, persists the
// resulting credential to the token file, and hands it to the request
// authenticator.
func (a *Auth) Login(ctx context.Context, opts *oidc.LoginOptions) error {
	switch a.clientType {
	case ClientTypeLegacy:
		return a.legacyLogin(ctx, opts)
	case ClientTypeStaticAPIKey, ClientTypeNone:
		return errors.NewConfigError(
			fmt.Sprintf("client type %q does not support login", a.clientType), nil)
	}

	loginable, ok := a.oidcClient.(oidc.Loginable)
	if !ok {
		return errors.NewConfigError(
			fmt.Sprintf("client type %q does not support login", a.clientType), nil)
	}

	cred, err := loginable.Login(ctx, opts)
	if err != nil {
		return err
	}
	return a.adoptCredential(cred)
}

// DeviceLoginInitiate begins a device code login, returning the user code
// and verification URI for the caller to display.
func (a *Auth) DeviceLoginInitiate(ctx context.Context, opts *oidc.LoginOptions) (*api.DeviceAuthorization, error) {
	dl, ok := a.oidcClient.(oidc.DeviceLoginable)
	if !ok {
		return nil, errors.NewConfigError(
			fmt.Sprintf("client type %q does not support device login", a.clientType), nil)
	}
	return dl.DeviceLoginInitiate(ctx, opts)
}

// DeviceLoginComplete polls a pending device login to completion, persists
// the credential, and hands it to the request authenticator.
func (a *Auth) DeviceLoginComplete(ctx context.Context, da *api.DeviceAuthorization) error {
	dl, ok := a.oidcClient.(oidc.DeviceLoginable)
	if !ok {
		return errors.NewConfigError(
			fmt.Sprintf("client type %q does not support device login", a.clientType), nil)
	}
	cred, err := dl.DeviceLoginComplete(ctx, da)
	if err != nil {
		return err
	}
	return a.adoptCredential(cred)
}

// Refresh forces a refresh of the persisted credential, outside the normal
// request-driven lifecycle.
func (a *Auth) Refresh(ctx context.Context) error {
	refreshable, ok := a.oidcClient.(oidc.Refreshable)
	if !ok {
		return errors.NewConfigError(
			fmt.Sprintf("client type %q does not support refresh", a.clientType), nil)
	}

	current := credential.NewOIDC(nil, a.tokenFilePath)
	if err := current.LazyLoad(); err != nil {
		return err
	}

	cred, err := refreshable.Refresh(ctx, current.RefreshToken(), nil)
	if err != nil {
		return err
	}
	return a.adoptCredential(cred)
}

// AccessToken runs the authenticator's lifecycle and returns the current
// token body.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	if err := a.reqAuth.PreRequestHook(ctx); err != nil {
		return "", err
	}
	token := a.reqAuth.TokenBody()
	if token == "" {
		return "", errors.NewDataIntegrityError("no token is available; log in first", nil)
	}
	return token, nil
}

func (a *Auth) legacyLogin(ctx context.Context, opts *oidc.LoginOptions) error {
	var email, password string
	if opts != nil {
		email, password = opts.Username, opts.Password
	}
	cred, err := a.legacyClient.Login(ctx, email, password)
	if err != nil {
		return err
	}

	cred.SetPath(a.tokenFilePath)
	if cred.Path() != "" {
		if err := cred.Save(); err != nil {
			return err
		}
	}
	// The legacy authenticator reads through its own file-backed credential;
	// pointing it at the saved file picks the new key up lazily.
	a.reqAuth = legacy.NewRequestAuthenticator(cred)
	return nil
}

// adoptCredential persists a freshly obtained credential and installs it in
// the request authenticator.
func (a *Auth) adoptCredential(cred *credential.OIDC) error {
	cred.SetPath(a.tokenFilePath)
	if cred.Path() != "" {
		if err := cred.Save(); err != nil {
			return err
		}
	}

	if updater, ok := a.reqAuth.(credentialUpdater); ok {
		if err := updater.UpdateCredential(cred); err != nil {
			return err
		}
	} else {
		logger.Debugf("Request authenticator for %s does not track credentials", a.clientType)
	}
	return nil
}
