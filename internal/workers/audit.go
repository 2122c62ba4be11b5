package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/claimmatrix/claimmatrix/internal/audit"
	"github.com/claimmatrix/claimmatrix/internal/models"
	"github.com/claimmatrix/claimmatrix/internal/tasks"
)

// HandleAuditClaim scores a single claim
func HandleAuditClaim(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseAuditClaimPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	service := audit.NewService(db, logger)
	result, err := service.AuditClaim(ctx, payload.ClaimID)
	if err != nil {
		return fmt.Errorf("failed to audit claim: %w", err)
	}

	logger.Info().
		Str("claim_id", payload.ClaimID).
		Float64("suspicion_score", result.SuspicionScore).
		Int("issue_count", result.IssueCount).
		Msg("Claim audited")

	return nil
}

// HandleAuditSweep re-scores every claim and records the sweep time on the
// config singleton
func HandleAuditSweep(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	service := audit.NewService(db, logger)

	processed, err := service.AuditAll(ctx)
	if err != nil {
		return fmt.Errorf("audit sweep failed: %w", err)
	}

	now := time.Now().UTC()
	var config models.Config
	if err := db.First(&config).Error; err == nil {
		if err := db.Model(&config).Update("last_sweep_at", &now).Error; err != nil {
			logger.Warn().Err(err).Msg("Failed to record last sweep time")
		}
	}

	logger.Info().Int("claims_processed", processed).Msg("Audit sweep finished")
	return nil
}
