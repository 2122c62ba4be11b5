package cli

import (
	"fmt"
	"os"

	"github.com/claimmatrix/claimmatrix/internal/cli/commands"
	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "claimmatrix",
	Short: "ClaimMatrix - Health claims auditing",
	Long: `ClaimMatrix CLI - Inspect claims, audit results and rules from the terminal.

Authenticate once with 'claimmatrix login'; the session token is kept in the
system keyring and revalidated automatically on each command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("claimmatrix version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectEnvCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewClaimsCmd())
	rootCmd.AddCommand(commands.NewAuditCmd())
	rootCmd.AddCommand(commands.NewOpenCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
