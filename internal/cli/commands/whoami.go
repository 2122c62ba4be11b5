package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claimmatrix/claimmatrix/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the stored credentials belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runWhoami(envAlias string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	// Wait for the background revalidation so a stale token is reported
	// instead of the cached identity
	mgr.WaitRevalidation()
	if mgr.Status() != session.StatusAuthenticated {
		return fmt.Errorf("stored credentials for %s are no longer valid. Please run 'claimmatrix login' again", env.Alias)
	}

	identity, ok := mgr.State().Identity()
	if !ok {
		return fmt.Errorf("no identity stored for %s", env.Alias)
	}

	fmt.Printf("Environment: %s (%s)\n", env.Alias, env.URL)
	fmt.Printf("User:        %s <%s>\n", identity.Name, identity.Email)
	fmt.Printf("User ID:     %s\n", identity.ID)
	return nil
}
