package authenticator

import (
	"fmt"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/oidc"
)

// ForClient returns the request authenticator appropriate for the client's
// flow. Interactive flows (authorization code, device code) get the strict
// refreshing authenticator: an automatic re-login would seize the user's
// browser or terminal at an arbitrary moment. Non-interactive flows (client
// credentials, resource owner password) can safely re-login, so they get the
// relogin-capable variant.
func ForClient(client oidc.Client, cred *credential.OIDC) (RequestAuthenticator, error) {
	switch client.Type() {
	case oidc.ClientTypeAuthCode, oidc.ClientTypeAuthCodeSecret, oidc.ClientTypeAuthCodePubKey,
		oidc.ClientTypeDeviceCode, oidc.ClientTypeDeviceCodeSecret, oidc.ClientTypeDeviceCodePubKey:
		refresher, ok := client.(Refresher)
		if !ok {
			return nil, errors.NewConfigError(
				fmt.Sprintf("client type %q cannot refresh credentials", client.Type()), nil)
		}
		return NewRefreshingOIDC(cred, refresher), nil

	case oidc.ClientTypeClientCredentialsSecret, oidc.ClientTypeClientCredentialsPubKey,
		oidc.ClientTypeResourceOwner, oidc.ClientTypeResourceOwnerSecret, oidc.ClientTypeResourceOwnerPubKey:
		loginRefresher, ok := client.(LoginRefresher)
		if !ok {
			return nil, errors.NewConfigError(
				fmt.Sprintf("client type %q cannot log in", client.Type()), nil)
		}
		return NewRefreshOrReloginOIDC(cred, loginRefresher), nil

	case oidc.ClientTypeValidator:
		return NewForbidden(), nil
	}

	return nil, errors.NewConfigError(
		fmt.Sprintf("no default request authenticator for client type %q", client.Type()), nil)
}
