package commands

import (
	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored credentials for an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runLogout(envAlias string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	// Logout clears the keyring entries whether or not the session is live
	mgr := newSessionManager(env)
	mgr.Logout()

	return nil
}
