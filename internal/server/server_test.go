package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimmatrix/claimmatrix/internal/config"
	"github.com/claimmatrix/claimmatrix/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{URL: ":memory:"},
		Redis:    config.RedisConfig{Address: "localhost:6379"},
		Server: config.ServerConfig{
			Port:      "0",
			UploadDir: t.TempDir(),
		},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, srv *Server) string {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "", h{
		"name": "Dana Reviewer", "email": "dana@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "", h{
		"email": "dana@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	require.Equal(t, "bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

// shorthand for request bodies
type h = map[string]any

func TestRegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user UserDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "Dana Reviewer", user.Name)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "", h{
		"name": "Other", "email": "dana@example.com", "password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

func TestRegister_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "", h{
		"name": "No Email", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Detail []struct {
			Loc  []any  `json:"loc"`
			Msg  string `json:"msg"`
			Type string `json:"type"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Detail, 2)
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "", h{
		"email": "dana@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect email or password")
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/v1/users/me",
		"/api/v1/claims/",
		"/api/v1/audit-results/stats",
		"/api/v1/audit-rules",
	} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestClaimLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/claims/", token, h{
		"claim_id":        "CLM-1001",
		"member_id":       "MBR-42",
		"provider_id":     "PRV-7",
		"date_of_service": "2026-02-10",
		"cpt_code":        "99213",
		"charge_amount":   180.25,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate claim_id conflicts
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/claims/", token, h{
		"claim_id":        "CLM-1001",
		"member_id":       "MBR-42",
		"provider_id":     "PRV-7",
		"date_of_service": "2026-02-10",
		"cpt_code":        "99213",
		"charge_amount":   180.25,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bad date shape reports a field error
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/claims/", token, h{
		"claim_id":        "CLM-1002",
		"member_id":       "MBR-42",
		"provider_id":     "PRV-7",
		"date_of_service": "02/10/2026",
		"cpt_code":        "99213",
		"charge_amount":   180.25,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "date_of_service")

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/claims/CLM-1001", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var claim models.Claim
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	assert.Equal(t, "MBR-42", claim.MemberID)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/claims/CLM-missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimsPagination(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	for i := 0; i < 25; i++ {
		claim := models.Claim{
			ClaimID:       fmt.Sprintf("CLM-%04d", i),
			MemberID:      "MBR-1",
			ProviderID:    "PRV-1",
			DateOfService: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			CPTCode:       "99213",
			ChargeAmount:  100.50,
		}
		require.NoError(t, srv.db.Create(&claim).Error)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/claims/?page=2&page_size=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items      []models.Claim `json:"items"`
		Pagination PaginationMeta `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, int64(25), page.Pagination.TotalItems)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrevious)
}

func TestClaimsByMemberAndProvider(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	seed := []models.Claim{
		{ClaimID: "CLM-A", MemberID: "MBR-1", ProviderID: "PRV-1", DateOfService: time.Now(), CPTCode: "99213", ChargeAmount: 100},
		{ClaimID: "CLM-B", MemberID: "MBR-1", ProviderID: "PRV-2", DateOfService: time.Now(), CPTCode: "99214", ChargeAmount: 200},
		{ClaimID: "CLM-C", MemberID: "MBR-2", ProviderID: "PRV-2", DateOfService: time.Now(), CPTCode: "99215", ChargeAmount: 300},
	}
	for i := range seed {
		require.NoError(t, srv.db.Create(&seed[i]).Error)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/claims/member/MBR-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Claim `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/claims/provider/PRV-2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 2)
}

func TestFlaggedClaims(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	claims := []models.Claim{
		{ClaimID: "CLM-HI", MemberID: "MBR-1", ProviderID: "PRV-1", DateOfService: time.Now(), CPTCode: "99213", ChargeAmount: 9000},
		{ClaimID: "CLM-LO", MemberID: "MBR-2", ProviderID: "PRV-1", DateOfService: time.Now(), CPTCode: "99213", ChargeAmount: 120},
	}
	for i := range claims {
		require.NoError(t, srv.db.Create(&claims[i]).Error)
	}

	results := []models.AuditResult{
		{ClaimID: "CLM-HI", Issues: []string{"Charge outlier"}, IssueCount: 1, SuspicionScore: 0.9, RecommendedAction: "Deny and investigate", AuditTimestamp: time.Now()},
		{ClaimID: "CLM-LO", Issues: []string{}, IssueCount: 0, SuspicionScore: 0.1, RecommendedAction: "Approve", AuditTimestamp: time.Now()},
	}
	for i := range results {
		require.NoError(t, srv.db.Create(&results[i]).Error)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/claims/flagged?min_suspicion_score=0.7", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []FlaggedClaimDetail `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "CLM-HI", page.Items[0].ClaimID)
	assert.Equal(t, []string{"Charge outlier"}, page.Items[0].Issues)

	// The audit-results alias serves the same listing
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/audit-results/flagged?min_suspicion_score=0.7", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
}

func TestAuditResultsForClaim(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	claim := models.Claim{ClaimID: "CLM-1", MemberID: "MBR-1", ProviderID: "PRV-1", DateOfService: time.Now(), CPTCode: "99213", ChargeAmount: 100}
	require.NoError(t, srv.db.Create(&claim).Error)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit-results/claim/CLM-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())

	result := models.AuditResult{ClaimID: "CLM-1", Issues: []string{"weekend"}, IssueCount: 1, SuspicionScore: 0.2, RecommendedAction: "Approve", AuditTimestamp: time.Now()}
	require.NoError(t, srv.db.Create(&result).Error)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/audit-results/claim/CLM-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, []string{"weekend"}, results[0].Issues)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/audit-results/claim/CLM-missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditStatisticsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit-results/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalClaims   int     `json:"total_claims"`
		TotalAudited  int     `json:"total_audited"`
		AuditCoverage float64 `json:"audit_coverage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.TotalClaims)
}

func TestAuditRulesRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv)

	// Seeded defaults are served out of the box
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit-rules", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []models.AuditRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.NotEmpty(t, rules)

	// Replace with a single tuned rule
	rec = doJSON(t, srv, http.MethodPut, "/api/v1/audit-rules", token, h{
		"rules": []h{
			{"code": "charge_outlier", "cpt_code": "99213", "max_charge": 500, "weight": 0.8, "enabled": true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "charge_outlier", rules[0].Code)
	assert.InDelta(t, 0.8, rules[0].Weight, 1e-9)

	// Out-of-range weight is a validation error
	rec = doJSON(t, srv, http.MethodPut, "/api/v1/audit-rules", token, h{
		"rules": []h{
			{"code": "charge_outlier", "weight": 1.5, "enabled": true},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "claimmatrix-api")
}
