package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/claimmatrix/claimmatrix/internal/models"
)

// Rule codes understood by the scorer
const (
	RuleDuplicateClaim = "duplicate_claim"
	RuleChargeOutlier  = "charge_outlier"
	RuleWeekendService = "weekend_service"
	RuleRoundCharge    = "round_charge"
	RuleFrequentMember = "frequent_member"
)

// Recommended actions by risk level
const (
	ActionDenyInvestigate = "Deny and investigate"
	ActionManualReview    = "Manual review required"
	ActionRequestDocs     = "Request supporting documentation"
	ActionApprove         = "Approve"
)

// Risk level thresholds on the suspicion score
const (
	HighRiskThreshold   = 0.8
	MediumRiskThreshold = 0.6
	LowRiskThreshold    = 0.4
)

// frequentMemberWindow and frequentMemberLimit bound the member frequency check:
// more than frequentMemberLimit claims within the window around the date of
// service triggers the rule.
const (
	frequentMemberWindow = 30 * 24 * time.Hour
	frequentMemberLimit  = 5
)

// defaultRules seeds the rule table on first start. Weights sum above 1.0 on
// purpose: the score is clamped, a claim tripping several checks maxes out.
var defaultRules = []models.AuditRule{
	{Code: RuleDuplicateClaim, Weight: 0.5, Enabled: true},
	{Code: RuleChargeOutlier, MaxCharge: 10000, Weight: 0.4, Enabled: true},
	{Code: RuleWeekendService, Weight: 0.2, Enabled: true},
	{Code: RuleRoundCharge, Weight: 0.1, Enabled: true},
	{Code: RuleFrequentMember, Weight: 0.3, Enabled: true},
}

type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

// SeedDefaultRules inserts the default rule set, keeping any rules that
// already exist (operators may have tuned weights).
func (s *Service) SeedDefaultRules(ctx context.Context) error {
	for _, rule := range defaultRules {
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoNothing: true,
			}).
			Create(&rule).Error
		if err != nil {
			return fmt.Errorf("failed to seed audit rule %s: %w", rule.Code, err)
		}
	}
	return nil
}

// Rules returns all audit rules ordered by code.
func (s *Service) Rules(ctx context.Context) ([]models.AuditRule, error) {
	var rules []models.AuditRule
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load audit rules: %w", err)
	}
	return rules, nil
}

// ReplaceRules swaps the entire rule set in one transaction.
func (s *Service) ReplaceRules(ctx context.Context, rules []models.AuditRule) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.AuditRule{}).Error; err != nil {
			return fmt.Errorf("failed to clear audit rules: %w", err)
		}
		for i := range rules {
			rules[i].ID = ""
			if err := tx.Create(&rules[i]).Error; err != nil {
				return fmt.Errorf("failed to create audit rule %s: %w", rules[i].Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int("rule_count", len(rules)).Msg("Audit rules replaced")
	return nil
}

// AuditClaim scores a single claim against the enabled rules and upserts its
// audit result. Re-auditing a claim replaces the previous result.
func (s *Service) AuditClaim(ctx context.Context, claimID string) (*models.AuditResult, error) {
	var claim models.Claim
	if err := s.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("claim not found: %s", claimID)
		}
		return nil, fmt.Errorf("failed to load claim: %w", err)
	}

	rules, err := s.enabledRules(ctx)
	if err != nil {
		return nil, err
	}

	score, issues, err := s.scoreClaim(ctx, &claim, rules)
	if err != nil {
		return nil, err
	}

	result := models.AuditResult{
		ClaimID:           claim.ClaimID,
		Issues:            issues,
		IssueCount:        len(issues),
		SuspicionScore:    score,
		RecommendedAction: recommendedAction(score),
		AuditTimestamp:    time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "claim_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"issues", "issue_count", "suspicion_score", "recommended_action", "audit_timestamp",
			}),
		}).
		Create(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store audit result: %w", err)
	}

	s.logger.Debug().
		Str("claim_id", claim.ClaimID).
		Float64("suspicion_score", score).
		Int("issue_count", len(issues)).
		Msg("Claim audited")

	return &result, nil
}

// AuditAll scores every claim. Used by the sweep worker and the ML audit
// trigger. Returns the number of claims processed.
func (s *Service) AuditAll(ctx context.Context) (int, error) {
	rules, err := s.enabledRules(ctx)
	if err != nil {
		return 0, err
	}

	var claimIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Claim{}).Pluck("claim_id", &claimIDs).Error; err != nil {
		return 0, fmt.Errorf("failed to list claims: %w", err)
	}

	processed := 0
	for _, claimID := range claimIDs {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		var claim models.Claim
		if err := s.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
			s.logger.Warn().Err(err).Str("claim_id", claimID).Msg("Skipping claim during sweep")
			continue
		}

		score, issues, err := s.scoreClaim(ctx, &claim, rules)
		if err != nil {
			s.logger.Warn().Err(err).Str("claim_id", claimID).Msg("Failed to score claim during sweep")
			continue
		}

		result := models.AuditResult{
			ClaimID:           claim.ClaimID,
			Issues:            issues,
			IssueCount:        len(issues),
			SuspicionScore:    score,
			RecommendedAction: recommendedAction(score),
			AuditTimestamp:    time.Now().UTC(),
		}
		err = s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "claim_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"issues", "issue_count", "suspicion_score", "recommended_action", "audit_timestamp",
				}),
			}).
			Create(&result).Error
		if err != nil {
			s.logger.Warn().Err(err).Str("claim_id", claimID).Msg("Failed to store audit result during sweep")
			continue
		}
		processed++
	}

	s.logger.Info().Int("claims_processed", processed).Msg("Audit sweep completed")
	return processed, nil
}

// Statistics aggregates audit coverage and flagged counts by risk level.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var totalClaims int64
	if err := s.db.WithContext(ctx).Model(&models.Claim{}).Count(&totalClaims).Error; err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}

	var totalAudited int64
	if err := s.db.WithContext(ctx).Model(&models.AuditResult{}).Count(&totalAudited).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit results: %w", err)
	}

	countAtLeast := func(min float64) (int64, error) {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.AuditResult{}).
			Where("suspicion_score >= ?", min).
			Count(&n).Error
		return n, err
	}

	high, err := countAtLeast(HighRiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count high risk results: %w", err)
	}
	mediumAndUp, err := countAtLeast(MediumRiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count medium risk results: %w", err)
	}
	lowAndUp, err := countAtLeast(LowRiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count low risk results: %w", err)
	}

	coverage := 0.0
	if totalClaims > 0 {
		coverage = float64(totalAudited) / float64(totalClaims)
	}

	return &Statistics{
		TotalClaims:   int(totalClaims),
		TotalAudited:  int(totalAudited),
		AuditCoverage: coverage,
		FlaggedCounts: FlaggedCounts{
			HighRisk:     int(high),
			MediumRisk:   int(mediumAndUp - high),
			LowRisk:      int(lowAndUp - mediumAndUp),
			TotalFlagged: int(lowAndUp),
		},
	}, nil
}

// Statistics is the aggregate view served by the stats endpoint.
type Statistics struct {
	TotalClaims   int           `json:"total_claims"`
	TotalAudited  int           `json:"total_audited"`
	AuditCoverage float64       `json:"audit_coverage"`
	FlaggedCounts FlaggedCounts `json:"flagged_counts"`
}

type FlaggedCounts struct {
	HighRisk     int `json:"high_risk"`
	MediumRisk   int `json:"medium_risk"`
	LowRisk      int `json:"low_risk"`
	TotalFlagged int `json:"total_flagged"`
}

func (s *Service) enabledRules(ctx context.Context) ([]models.AuditRule, error) {
	var rules []models.AuditRule
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load enabled audit rules: %w", err)
	}
	return rules, nil
}

// scoreClaim evaluates every enabled rule against the claim. The score is the
// clamped sum of the weights of the rules that fired.
func (s *Service) scoreClaim(ctx context.Context, claim *models.Claim, rules []models.AuditRule) (float64, []string, error) {
	score := 0.0
	issues := []string{}

	for _, rule := range rules {
		if rule.CPTCode != "" && rule.CPTCode != claim.CPTCode {
			continue
		}

		fired, issue, err := s.evaluateRule(ctx, claim, rule)
		if err != nil {
			return 0, nil, err
		}
		if fired {
			score += rule.Weight
			issues = append(issues, issue)
		}
	}

	return math.Min(score, 1.0), issues, nil
}

func (s *Service) evaluateRule(ctx context.Context, claim *models.Claim, rule models.AuditRule) (bool, string, error) {
	switch rule.Code {
	case RuleDuplicateClaim:
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Claim{}).
			Where("member_id = ? AND cpt_code = ? AND date_of_service = ? AND claim_id <> ?",
				claim.MemberID, claim.CPTCode, claim.DateOfService, claim.ClaimID).
			Count(&n).Error
		if err != nil {
			return false, "", fmt.Errorf("duplicate check failed: %w", err)
		}
		if n > 0 {
			return true, fmt.Sprintf("Duplicate claim: member %s billed CPT %s twice on %s",
				claim.MemberID, claim.CPTCode, claim.DateOfService.Format("2006-01-02")), nil
		}

	case RuleChargeOutlier:
		if rule.MaxCharge > 0 && claim.ChargeAmount > rule.MaxCharge {
			return true, fmt.Sprintf("Charge outlier: $%.2f exceeds limit of $%.2f for CPT %s",
				claim.ChargeAmount, rule.MaxCharge, claim.CPTCode), nil
		}

	case RuleWeekendService:
		wd := claim.DateOfService.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return true, fmt.Sprintf("Service dated on a weekend (%s)", wd), nil
		}

	case RuleRoundCharge:
		if claim.ChargeAmount >= 100 && math.Mod(claim.ChargeAmount, 100) == 0 {
			return true, fmt.Sprintf("Suspiciously round charge amount: $%.2f", claim.ChargeAmount), nil
		}

	case RuleFrequentMember:
		from := claim.DateOfService.Add(-frequentMemberWindow)
		to := claim.DateOfService.Add(frequentMemberWindow)
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Claim{}).
			Where("member_id = ? AND date_of_service BETWEEN ? AND ?", claim.MemberID, from, to).
			Count(&n).Error
		if err != nil {
			return false, "", fmt.Errorf("member frequency check failed: %w", err)
		}
		if n > frequentMemberLimit {
			return true, fmt.Sprintf("High member frequency: %d claims for member %s within 30 days",
				n, claim.MemberID), nil
		}

	default:
		s.logger.Warn().Str("rule_code", rule.Code).Msg("Unknown audit rule code, skipping")
	}

	return false, "", nil
}

func recommendedAction(score float64) string {
	switch {
	case score >= HighRiskThreshold:
		return ActionDenyInvestigate
	case score >= MediumRiskThreshold:
		return ActionManualReview
	case score >= LowRiskThreshold:
		return ActionRequestDocs
	default:
		return ActionApprove
	}
}
