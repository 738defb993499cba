package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terravista/authkit/pkg/errors"
)

var userinfoCmd = &cobra.Command{
	Use:   "userinfo",
	Short: "Show the userinfo claims for the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newAuth()
		if err != nil {
			return err
		}
		client := a.Client()
		if client == nil {
			return errors.NewConfigError("userinfo needs an OIDC client profile", nil)
		}

		token, err := a.AccessToken(cmd.Context())
		if err != nil {
			return err
		}
		info, err := client.UserinfoFromAccessToken(cmd.Context(), token)
		if err != nil {
			return err
		}

		pretty, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
		return nil
	},
}
