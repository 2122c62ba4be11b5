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

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var name, email, password, envAlias string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a reviewer account on a ClaimMatrix environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(name, email, password, envAlias)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address (or set CLAIMMATRIX_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set CLAIMMATRIX_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runRegister(name, email, password, envAlias string) error {
	if email == "" {
		email = os.Getenv("CLAIMMATRIX_EMAIL")
	}
	if password == "" {
		password = os.Getenv("CLAIMMATRIX_PASSWORD")
	}

	if name == "" {
		return fmt.Errorf("name is required (use --name flag)")
	}
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or CLAIMMATRIX_EMAIL env var)")
	}

	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	if password == "" {
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println()
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or CLAIMMATRIX_PASSWORD env var)")
		}
	}

	fmt.Printf("Registering on %s (%s)...\n", env.Alias, env.URL)

	mgr := newSessionManager(env)
	if err := mgr.Register(context.Background(), apiclient.Registration{
		Name:     name,
		Email:    email,
		Password: password,
	}); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return nil
}
