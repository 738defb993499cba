package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terravista/authkit/pkg/oidc"
)

var (
	loginScopes    []string
	loginAudience  string
	loginNoBrowser bool
	loginQR        bool
	loginUsername  string
	loginPassword  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with the profile's flow and store the credential",
	Args:  cobra.NoArgs,
	RunE:  loginCmdFunc,
}

func init() {
	loginCmd.Flags().StringArrayVar(&loginScopes, "scope", nil, "Scope to request (repeatable; overrides the profile)")
	loginCmd.Flags().StringVar(&loginAudience, "audience", "", "Audience to request (overrides the profile)")
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Never open a browser; print URLs instead")
	loginCmd.Flags().BoolVar(&loginQR, "qr", false, "Show the device flow verification URL as a QR code")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Resource owner or legacy account name")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Resource owner or legacy account password")
}

func loginCmdFunc(cmd *cobra.Command, _ []string) error {
	a, err := newAuth()
	if err != nil {
		return err
	}

	opts := &oidc.LoginOptions{
		ShowQR:   loginQR,
		Username: loginUsername,
		Password: loginPassword,
		Out:      cmd.OutOrStdout(),
		In:       cmd.InOrStdin(),
	}
	if loginScopes != nil {
		opts.Scopes = loginScopes
	}
	if loginAudience != "" {
		opts.Audiences = []string{loginAudience}
	}
	if loginNoBrowser {
		allow := false
		opts.OpenBrowser = &allow
	}

	if err := a.Login(cmd.Context(), opts); err != nil {
		return err
	}

	if path := a.TokenFilePath(); path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in; credential saved to %s\n", path)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
	}
	return nil
}
