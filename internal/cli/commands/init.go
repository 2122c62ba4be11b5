package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <api-url>",
		Short: "Register a ClaimMatrix environment",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	envURL := args[0]

	candidate := config.Environment{URL: envURL}
	if err := candidate.Validate(); err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Printf("Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Environments: []config.Environment{},
		}
		isNewConfig = true
	}

	// Check if environment already exists
	envExists := false
	for _, env := range cfg.Environments {
		if env.URL == envURL {
			envExists = true
			break
		}
	}

	if envExists {
		fmt.Printf("Environment %s already exists in %s\n", envURL, config.ConfigFileName)
	} else {
		alias := "production"
		if len(cfg.Environments) > 0 {
			alias = fmt.Sprintf("env-%d", len(cfg.Environments)+1)
		}

		cfg.Environments = append(cfg.Environments, config.Environment{
			URL:   envURL,
			Alias: alias,
		})

		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		if isNewConfig {
			fmt.Printf("✓ Created ./%s with environment %s (%s)\n", config.ConfigFileName, envURL, alias)
		} else {
			fmt.Printf("✓ Added environment %s (%s) to ./%s\n", envURL, alias, config.ConfigFileName)
		}
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'claimmatrix register' to create an account, or")
	fmt.Println("  2. Run 'claimmatrix login' to authenticate")

	return nil
}
