package envselect

import (
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
	"github.com/claimmatrix/claimmatrix/internal/cli/userconfig"
)

// ResolveEnvironment determines which environment to use based on the following priority:
// 1. If envAlias flag is provided, use that environment
// 2. If user has a selected environment in their local config, use that
// 3. If only one environment in project config, use that
// 4. Otherwise, prompt user to select an environment interactively
func ResolveEnvironment(projectConfig *config.Config, envAlias string) (*config.Environment, error) {
	// Priority 1: Use environment alias if provided
	if envAlias != "" {
		env, err := projectConfig.GetEnvironmentByAlias(envAlias)
		if err != nil {
			return nil, err
		}
		return env, nil
	}

	// Priority 2: Use selected environment from user config
	selectedURL, err := userconfig.GetSelectedEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selectedURL != "" {
		env, err := getEnvironmentByURL(projectConfig, selectedURL)
		if err != nil {
			// Selected environment no longer exists in project config, clear it and continue
			_ = userconfig.SetSelectedEnvironment("")
		} else {
			return env, nil
		}
	}

	// Priority 3: If only one environment, use it automatically
	if len(projectConfig.Environments) == 1 {
		env := &projectConfig.Environments[0]
		if err := userconfig.SetSelectedEnvironment(env.URL); err != nil {
			// Don't fail if we can't save, just continue
			fmt.Printf("Warning: failed to save selected environment: %v\n", err)
		}
		return env, nil
	}

	// Priority 4: Prompt user to select an environment
	env, err := PromptEnvironmentSelection(projectConfig)
	if err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedEnvironment(env.URL); err != nil {
		fmt.Printf("Warning: failed to save selected environment: %v\n", err)
	}

	return env, nil
}

// PromptEnvironmentSelection shows an interactive prompt for the user to select an environment
func PromptEnvironmentSelection(projectConfig *config.Config) (*config.Environment, error) {
	if len(projectConfig.Environments) == 0 {
		return nil, fmt.Errorf("no environments configured in %s", config.ConfigFileName)
	}

	type envOption struct {
		Label       string
		Environment *config.Environment
	}

	options := make([]envOption, len(projectConfig.Environments))
	for i := range projectConfig.Environments {
		env := &projectConfig.Environments[i]
		label := fmt.Sprintf("%s (%s)", env.Alias, env.URL)
		options[i] = envOption{
			Label:       label,
			Environment: env,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an environment",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("environment selection cancelled: %w", err)
	}

	return options[index].Environment, nil
}

// getEnvironmentByURL finds an environment in the config by its URL
func getEnvironmentByURL(cfg *config.Config, envURL string) (*config.Environment, error) {
	for i := range cfg.Environments {
		if cfg.Environments[i].URL == envURL {
			return &cfg.Environments[i], nil
		}
	}
	return nil, fmt.Errorf("environment with URL '%s' not found in project config", envURL)
}

// GetEnvironmentByURLOrAlias finds an environment by URL or alias
func GetEnvironmentByURLOrAlias(cfg *config.Config, urlOrAlias string) (*config.Environment, error) {
	// First try by URL
	for i := range cfg.Environments {
		if cfg.Environments[i].URL == urlOrAlias {
			return &cfg.Environments[i], nil
		}
	}

	// Then try by alias
	for i := range cfg.Environments {
		if cfg.Environments[i].Alias == urlOrAlias {
			return &cfg.Environments[i], nil
		}
	}

	return nil, fmt.Errorf("environment with URL or alias '%s' not found", urlOrAlias)
}
