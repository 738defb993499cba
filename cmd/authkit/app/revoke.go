package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terravista/authkit/pkg/credential"
	"github.com/terravista/authkit/pkg/errors"
)

var revokeRefreshToken bool

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke the stored access or refresh token at the auth server",
	Args:  cobra.NoArgs,
	RunE:  revokeCmdFunc,
}

func init() {
	revokeCmd.Flags().BoolVar(&revokeRefreshToken, "refresh-token", false, "Revoke the refresh token instead of the access token")
}

func revokeCmdFunc(cmd *cobra.Command, _ []string) error {
	a, err := newAuth()
	if err != nil {
		return err
	}
	client := a.Client()
	if client == nil {
		return errors.NewConfigError("revocation needs an OIDC client profile", nil)
	}
	if a.TokenFilePath() == "" {
		return errors.NewConfigError("no token file to revoke from: set --token-file", nil)
	}

	cred := credential.NewOIDC(nil, a.TokenFilePath())
	if err := cred.LazyLoad(); err != nil {
		return err
	}

	if revokeRefreshToken {
		token := cred.RefreshToken()
		if token == "" {
			return errors.NewDataIntegrityError("stored credential holds no refresh token", nil)
		}
		if err := client.RevokeRefreshToken(cmd.Context(), token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Refresh token revoked")
		return nil
	}

	if err := client.RevokeAccessToken(cmd.Context(), cred.AccessToken()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Access token revoked")
	return nil
}
