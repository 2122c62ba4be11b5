package session

// Route is the metadata the guard needs about a navigable view.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// The dashboard's route table. Dashboard is the default landing view for
// authenticated users; NotFound is the only public route an authenticated
// user may still visit.
var (
	RouteLogin          = Route{Name: "login", Path: "/login"}
	RouteRegister       = Route{Name: "register", Path: "/register"}
	RouteDashboard      = Route{Name: "dashboard", Path: "/dashboard", RequiresAuth: true}
	RouteClaims         = Route{Name: "claims", Path: "/claims", RequiresAuth: true}
	RouteClaimsUpload   = Route{Name: "claims-upload", Path: "/claims/upload", RequiresAuth: true}
	RouteClaimDetail    = Route{Name: "claim-detail", Path: "/claims/detail", RequiresAuth: true}
	RouteAuditDashboard = Route{Name: "audit-dashboard", Path: "/audit/dashboard", RequiresAuth: true}
	RouteAuditFlagged   = Route{Name: "audit-flagged", Path: "/audit/flagged", RequiresAuth: true}
	RouteAuditResults   = Route{Name: "audit-results", Path: "/audit-results", RequiresAuth: true}
	RouteSettings       = Route{Name: "settings", Path: "/settings", RequiresAuth: true}
	RouteNotFound       = Route{Name: "not-found", Path: "/not-found"}
)

// Routes returns the full route table.
func Routes() []Route {
	return []Route{
		RouteLogin,
		RouteRegister,
		RouteDashboard,
		RouteClaims,
		RouteClaimsUpload,
		RouteClaimDetail,
		RouteAuditDashboard,
		RouteAuditFlagged,
		RouteAuditResults,
		RouteSettings,
		RouteNotFound,
	}
}

// RouteByName looks a route up by its name.
func RouteByName(name string) (Route, bool) {
	for _, r := range Routes() {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// RouteByPath looks a route up by its path.
func RouteByPath(path string) (Route, bool) {
	for _, r := range Routes() {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}
