package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password, envAlias string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a ClaimMatrix environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(email, password, envAlias)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set CLAIMMATRIX_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set CLAIMMATRIX_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runLogin(email, password, envAlias string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("CLAIMMATRIX_EMAIL")
	}
	if password == "" {
		password = os.Getenv("CLAIMMATRIX_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or CLAIMMATRIX_EMAIL env var)")
	}

	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		// Check if stdin is a terminal (not piped)
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println() // New line after password input
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or CLAIMMATRIX_PASSWORD env var)")
		}
	}

	fmt.Printf("Logging in to %s (%s)...\n", env.Alias, env.URL)

	mgr := newSessionManager(env)
	if err := mgr.Login(context.Background(), apiclient.Credentials{
		Email:    email,
		Password: password,
	}); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return nil
}
