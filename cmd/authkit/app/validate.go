package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terravista/authkit/pkg/errors"
)

var (
	validateAudience string
	validateScopes   []string
	validateRemote   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [token]",
	Short: "Validate a token against the auth server's published keys",
	Long: `Validate a token locally against the auth server's published signing keys,
or remotely via the introspection endpoint with --remote. With no argument
the stored access token is validated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCmdFunc,
}

func init() {
	validateCmd.Flags().StringVar(&validateAudience, "audience", "", "Audience the token must carry (defaults to the profile's)")
	validateCmd.Flags().StringArrayVar(&validateScopes, "scope", nil, "Scope the token must hold at least one of (repeatable)")
	validateCmd.Flags().BoolVar(&validateRemote, "remote", false, "Validate via the introspection endpoint instead of locally")
}

func validateCmdFunc(cmd *cobra.Command, args []string) error {
	a, err := newAuth()
	if err != nil {
		return err
	}
	client := a.Client()
	if client == nil {
		return errors.NewConfigError("token validation needs an OIDC client profile", nil)
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = a.AccessToken(cmd.Context())
		if err != nil {
			return err
		}
	}

	var claims any
	if validateRemote {
		claims, err = client.ValidateAccessTokenRemote(cmd.Context(), token)
	} else {
		claims, err = client.ValidateAccessTokenLocal(cmd.Context(), token, validateAudience, validateScopes)
	}
	if err != nil {
		return err
	}

	pretty, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	return nil
}
