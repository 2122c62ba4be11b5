package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
	"github.com/claimmatrix/claimmatrix/internal/cli/envselect"
)

// selectedEnvironment loads the project config and resolves which environment
// to target. This is common logic used by most commands.
func selectedEnvironment(envAlias string) (*config.Environment, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'claimmatrix init' to create a configuration file", err)
	}

	env, err := envselect.ResolveEnvironment(cfg, envAlias)
	if err != nil {
		return nil, err
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}

	return env, nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
