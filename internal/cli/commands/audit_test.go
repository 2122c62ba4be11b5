package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
	"github.com/claimmatrix/claimmatrix/internal/cli/config"
)

// auditMockServer extends the auth mock with audit endpoints and records
// the last applied rule set
type auditMockServer struct {
	*httptest.Server
	appliedRules []apiclient.AuditRule
}

func newAuditMockServer(t *testing.T) *auditMockServer {
	t.Helper()

	mock := &auditMockServer{}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/auth/login" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "audit-token",
				"token_type":   "bearer",
			})

		case r.URL.Path == "/api/v1/users/me" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{
				"id":    "user-1",
				"name":  "Auditor",
				"email": "auditor@example.com",
			})

		case r.URL.Path == "/api/v1/audit-results/stats" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(apiclient.AuditStatistics{
				TotalClaims:   120,
				TotalAudited:  100,
				AuditCoverage: 0.833,
				FlaggedCounts: apiclient.FlaggedCounts{
					HighRisk:     3,
					MediumRisk:   7,
					LowRisk:      12,
					TotalFlagged: 22,
				},
			})

		case r.URL.Path == "/api/v1/audit-rules" && r.Method == http.MethodPut:
			var body struct {
				Rules []apiclient.AuditRule `json:"rules"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mock.appliedRules = body.Rules
			json.NewEncoder(w).Encode(body.Rules)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return mock
}

func loginForTest(t *testing.T) {
	t.Helper()

	keyring.MockInit()
	if err := runLogin("auditor@example.com", "secret", ""); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestAuditStatsCommand(t *testing.T) {
	mock := newAuditMockServer(t)
	defer mock.Close()

	_, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: mock.URL},
	})
	defer cleanup()

	loginForTest(t)

	if err := runAuditStats(""); err != nil {
		t.Fatalf("audit stats failed: %v", err)
	}
}

func TestAuditRulesApply(t *testing.T) {
	mock := newAuditMockServer(t)
	defer mock.Close()

	tempDir, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: mock.URL},
	})
	defer cleanup()

	loginForTest(t)

	rulesPath := filepath.Join(tempDir, "rules.yaml")
	rulesYAML := `rules:
  - code: charge_outlier
    max_charge: 5000
    weight: 0.5
  - code: weekend_service
    weight: 0.2
    enabled: false
  - code: round_charge
    cpt_code: "99213"
    weight: 0.1
`
	if err := os.WriteFile(rulesPath, []byte(rulesYAML), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if err := runAuditRulesApply("", rulesPath); err != nil {
		t.Fatalf("rules apply failed: %v", err)
	}

	if len(mock.appliedRules) != 3 {
		t.Fatalf("expected 3 applied rules, got %d", len(mock.appliedRules))
	}

	outlier := mock.appliedRules[0]
	if outlier.Code != "charge_outlier" || outlier.MaxCharge != 5000 || !outlier.Enabled {
		t.Errorf("unexpected first rule: %+v", outlier)
	}
	if mock.appliedRules[1].Enabled {
		t.Error("expected weekend_service to be disabled")
	}
	if mock.appliedRules[2].CPTCode != "99213" {
		t.Errorf("expected cpt_code 99213, got %s", mock.appliedRules[2].CPTCode)
	}
}

func TestAuditRulesApply_RejectsEmptyFile(t *testing.T) {
	tempDir, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: "http://127.0.0.1:9"},
	})
	defer cleanup()

	rulesPath := filepath.Join(tempDir, "empty.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules: []\n"), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if err := runAuditRulesApply("", rulesPath); err == nil {
		t.Fatal("expected error for empty rule set, got nil")
	}
}

func TestAuditRulesApply_RejectsMissingCode(t *testing.T) {
	tempDir, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: "http://127.0.0.1:9"},
	})
	defer cleanup()

	rulesPath := filepath.Join(tempDir, "bad.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules:\n  - weight: 0.5\n"), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if err := runAuditRulesApply("", rulesPath); err == nil {
		t.Fatal("expected error for rule without code, got nil")
	}
}
