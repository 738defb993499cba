// Package app provides the entry point for the authkit command-line
// application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/terravista/authkit/pkg/auth"
	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "authkit",
	DisableAutoGenTag: true,
	Short:             "authkit obtains, refreshes and validates API credentials",
	Long: `authkit is a client-side authentication toolkit. It logs in against
OAuth2/OIDC authorization servers (authorization code, device code, client
credentials and resource owner password grants), persists the resulting
credentials, keeps them fresh, and validates tokens locally against the
server's published keys.

The client profile is a JSON file selected with --profile; the credential is
stored in the file selected with --token-file.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			logger.InitializeWithOptions("UNSTRUCTURED_LOGS", true)
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the authkit CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("profile", "", "Path to the client profile JSON file")
	rootCmd.PersistentFlags().String("token-file", "", "Path the credential is persisted to")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	viper.SetEnvPrefix("AUTHKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("token_file", rootCmd.PersistentFlags().Lookup("token-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(userinfoCmd)
	rootCmd.AddCommand(revokeCmd)

	return rootCmd
}

// newAuth builds the authentication context from the persistent flags.
func newAuth() (*auth.Auth, error) {
	profile := viper.GetString("profile")
	if profile == "" {
		return nil, errors.NewConfigError("no client profile given: set --profile or AUTHKIT_PROFILE", nil)
	}
	return auth.NewFromConfigFile(profile, viper.GetString("token_file"))
}
