package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
	"github.com/claimmatrix/claimmatrix/internal/session"
)

// terminalNotifier renders session notifications as terminal lines
type terminalNotifier struct{}

func (terminalNotifier) Success(message string) { fmt.Printf("✓ %s\n", message) }
func (terminalNotifier) Error(message string)   { fmt.Fprintf(os.Stderr, "✗ %s\n", message) }
func (terminalNotifier) Warning(message string) { fmt.Fprintf(os.Stderr, "⚠ %s\n", message) }
func (terminalNotifier) Info(message string)    { fmt.Println(message) }

// terminalNavigator translates view changes into CLI hints. There is no
// running UI to move, so a push towards the login view becomes a reminder
// to re-authenticate.
type terminalNavigator struct{}

func (terminalNavigator) Push(path string) {
	if path == session.RouteLogin.Path {
		fmt.Fprintln(os.Stderr, "Run 'claimmatrix login' to authenticate.")
	}
}

func (terminalNavigator) Current() string { return "" }

// newSessionManager builds a session manager whose credentials live in the
// OS keyring under the environment's profile
func newSessionManager(env *config.Environment) *session.Manager {
	logger := zerolog.Nop()
	return session.NewManager(session.Config{
		BaseURL:   env.APIBaseURL(),
		Store:     session.NewKeyringStore(env.Profile(), logger),
		Notifier:  terminalNotifier{},
		Navigator: terminalNavigator{},
		Logger:    logger,
	})
}

// restoredSession hydrates a session from the keyring and fails when no
// usable credentials are stored
func restoredSession(env *config.Environment) (*session.Manager, error) {
	mgr := newSessionManager(env)
	mgr.Restore(context.Background())
	if mgr.Status() != session.StatusAuthenticated {
		return nil, fmt.Errorf("not authenticated against %s. Please run 'claimmatrix login' first", env.Alias)
	}
	return mgr, nil
}
