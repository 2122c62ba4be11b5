package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claimmatrix/claimmatrix/internal/session"
)

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "open [view]",
		Short: "Open a dashboard view in a browser",
		Long: `Open a dashboard view in a browser.

The view must be one of the named dashboard routes (dashboard, claims,
claims-upload, claim-detail, audit-dashboard, audit-flagged,
audit-results, settings, login, register). Defaults to the dashboard.
Protected views require stored credentials; run 'claimmatrix login'
first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewName := session.RouteDashboard.Name
			if len(args) > 0 {
				viewName = args[0]
			}
			return runOpen(envAlias, viewName)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runOpen(envAlias, viewName string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr := newSessionManager(env)
	mgr.Restore(context.Background())

	route, err := resolveOpenTarget(mgr, env.Alias, viewName)
	if err != nil {
		return err
	}

	url := viewURL(env.URL, route)
	fmt.Printf("Opening %s...\n", url)

	if err := openBrowser(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// resolveOpenTarget maps a view name to the route the browser should land
// on, letting the access guard redirect around the session state: anonymous
// users are refused protected views, authenticated users asking for login
// or register land on the dashboard instead.
func resolveOpenTarget(mgr *session.Manager, alias, viewName string) (session.Route, error) {
	target, ok := session.RouteByName(viewName)
	if !ok {
		return session.Route{}, fmt.Errorf("unknown view %q", viewName)
	}

	decision := mgr.Guard().Check(target)
	if decision.Redirected && decision.Route.Name == session.RouteLogin.Name {
		return session.Route{}, fmt.Errorf("view %q requires authentication against %s. Please run 'claimmatrix login' first", viewName, alias)
	}
	return decision.Route, nil
}

// viewURL joins the environment's dashboard URL with a route path
func viewURL(baseURL string, route session.Route) string {
	return strings.TrimRight(baseURL, "/") + route.Path
}
