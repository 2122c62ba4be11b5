package session

// Decision is the guard's verdict on a navigation attempt. When Redirected
// is true the navigation must go to Route instead of the requested target;
// Resume carries the originally intended path for replay after login.
type Decision struct {
	Route      Route
	Resume     string
	Redirected bool
}

// Guard evaluates route access against the current session state. The
// check is synchronous and purely in-memory; it never performs I/O.
type Guard struct {
	state *State
}

// NewGuard creates a guard over the given state.
func NewGuard(state *State) *Guard {
	return &Guard{state: state}
}

// Check decides whether navigation to target may commit. Protected routes
// bounce anonymous users to login with the target attached as the resume
// path; public routes (except not-found) bounce authenticated users to the
// landing view so a signed-in user never sees login or registration.
func (g *Guard) Check(target Route) Decision {
	authenticated := g.state.IsAuthenticated()

	if target.RequiresAuth && !authenticated {
		return Decision{Route: RouteLogin, Resume: target.Path, Redirected: true}
	}
	if !target.RequiresAuth && authenticated && target.Name != RouteNotFound.Name {
		return Decision{Route: RouteDashboard, Redirected: true}
	}
	return Decision{Route: target}
}
