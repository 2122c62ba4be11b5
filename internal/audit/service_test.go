package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/claimmatrix/claimmatrix/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	svc := NewService(db, zerolog.Nop())
	require.NoError(t, svc.SeedDefaultRules(context.Background()))
	return svc, db
}

func createClaim(t *testing.T, db *gorm.DB, claimID, memberID string, dateOfService time.Time, cptCode string, charge float64) {
	t.Helper()

	claim := models.Claim{
		ClaimID:       claimID,
		MemberID:      memberID,
		ProviderID:    "PRV-001",
		DateOfService: dateOfService,
		CPTCode:       cptCode,
		ChargeAmount:  charge,
	}
	require.NoError(t, db.Create(&claim).Error)
}

// weekday / weekend anchors for date_of_service
var (
	tuesday  = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
)

func TestAuditClaim_CleanClaim(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 142.50)

	result, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.SuspicionScore)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 0, result.IssueCount)
	assert.Equal(t, ActionApprove, result.RecommendedAction)
}

func TestAuditClaim_DuplicateClaim(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 142.50)
	createClaim(t, db, "CLM-002", "MBR-001", tuesday, "99213", 142.50)

	result, err := svc.AuditClaim(context.Background(), "CLM-002")
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.SuspicionScore, 1e-9)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "Duplicate claim")
	assert.Equal(t, ActionRequestDocs, result.RecommendedAction)
}

func TestAuditClaim_WeekendService(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", saturday, "99213", 142.50)

	result, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)

	assert.InDelta(t, 0.2, result.SuspicionScore, 1e-9)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "weekend")
}

func TestAuditClaim_RoundCharge(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 500.00)

	result, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)

	assert.InDelta(t, 0.1, result.SuspicionScore, 1e-9)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "round charge")
}

func TestAuditClaim_ChargeOutlier(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 12500.75)

	result, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)

	assert.InDelta(t, 0.4, result.SuspicionScore, 1e-9)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "Charge outlier")
	assert.Equal(t, ActionRequestDocs, result.RecommendedAction)
}

func TestAuditClaim_ScoreClampedAtOne(t *testing.T) {
	svc, db := newTestService(t)
	// Weekend duplicate round-charge outlier with a busy member: every rule fires.
	for i := 0; i < 7; i++ {
		createClaim(t, db, fmt.Sprintf("CLM-%03d", i), "MBR-001", saturday, "99213", 20000.00)
	}

	result, err := svc.AuditClaim(context.Background(), "CLM-000")
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.SuspicionScore)
	assert.Equal(t, 5, result.IssueCount)
	assert.Equal(t, ActionDenyInvestigate, result.RecommendedAction)
}

func TestAuditClaim_CPTScopedRule(t *testing.T) {
	svc, db := newTestService(t)

	// A tighter charge limit scoped to one CPT code must not fire for others.
	rules := []models.AuditRule{
		{Code: RuleChargeOutlier, CPTCode: "99213", MaxCharge: 200, Weight: 0.4, Enabled: true},
	}
	require.NoError(t, svc.ReplaceRules(context.Background(), rules))

	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 350.00)
	createClaim(t, db, "CLM-002", "MBR-002", tuesday, "99214", 350.00)

	inScope, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, inScope.SuspicionScore, 1e-9)

	outOfScope, err := svc.AuditClaim(context.Background(), "CLM-002")
	require.NoError(t, err)
	assert.Equal(t, 0.0, outOfScope.SuspicionScore)
}

func TestAuditClaim_DisabledRuleSkipped(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, svc.ReplaceRules(context.Background(), []models.AuditRule{
		{Code: RuleWeekendService, Weight: 0.2, Enabled: false},
	}))

	createClaim(t, db, "CLM-001", "MBR-001", saturday, "99213", 142.50)

	result, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.SuspicionScore)
}

func TestAuditClaim_ReauditReplacesResult(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", saturday, "99213", 142.50)

	first, err := svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, first.SuspicionScore, 1e-9)

	// Disable the weekend rule and re-audit: one row, new score.
	require.NoError(t, svc.ReplaceRules(context.Background(), []models.AuditRule{
		{Code: RuleWeekendService, Weight: 0.2, Enabled: false},
	}))

	_, err = svc.AuditClaim(context.Background(), "CLM-001")
	require.NoError(t, err)

	var results []models.AuditResult
	require.NoError(t, db.Where("claim_id = ?", "CLM-001").Find(&results).Error)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].SuspicionScore)
}

func TestAuditClaim_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AuditClaim(context.Background(), "CLM-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim not found")
}

func TestAuditAll(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 142.50)
	createClaim(t, db, "CLM-002", "MBR-002", saturday, "99214", 500.00)
	createClaim(t, db, "CLM-003", "MBR-003", tuesday, "99215", 20000.00)

	processed, err := svc.AuditAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	var count int64
	require.NoError(t, db.Model(&models.AuditResult{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestStatistics(t *testing.T) {
	svc, db := newTestService(t)
	createClaim(t, db, "CLM-001", "MBR-001", tuesday, "99213", 142.50)
	createClaim(t, db, "CLM-002", "MBR-002", tuesday, "99214", 185.00)

	seed := []models.AuditResult{
		{ClaimID: "CLM-001", Issues: []string{}, SuspicionScore: 0.9, RecommendedAction: ActionDenyInvestigate, AuditTimestamp: time.Now()},
		{ClaimID: "CLM-002", Issues: []string{}, SuspicionScore: 0.5, RecommendedAction: ActionRequestDocs, AuditTimestamp: time.Now()},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalClaims)
	assert.Equal(t, 2, stats.TotalAudited)
	assert.InDelta(t, 1.0, stats.AuditCoverage, 1e-9)
	assert.Equal(t, 1, stats.FlaggedCounts.HighRisk)
	assert.Equal(t, 0, stats.FlaggedCounts.MediumRisk)
	assert.Equal(t, 1, stats.FlaggedCounts.LowRisk)
	assert.Equal(t, 2, stats.FlaggedCounts.TotalFlagged)
}

func TestSeedDefaultRules_Idempotent(t *testing.T) {
	svc, db := newTestService(t)

	// Tune a weight, reseed, the tuned value must survive.
	require.NoError(t, db.Model(&models.AuditRule{}).
		Where("code = ?", RuleWeekendService).
		Update("weight", 0.9).Error)

	require.NoError(t, svc.SeedDefaultRules(context.Background()))

	var rule models.AuditRule
	require.NoError(t, db.Where("code = ?", RuleWeekendService).First(&rule).Error)
	assert.InDelta(t, 0.9, rule.Weight, 1e-9)

	var count int64
	require.NoError(t, db.Model(&models.AuditRule{}).Count(&count).Error)
	assert.Equal(t, int64(len(defaultRules)), count)
}
