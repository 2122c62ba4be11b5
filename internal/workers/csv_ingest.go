package workers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/claimmatrix/claimmatrix/internal/models"
	"github.com/claimmatrix/claimmatrix/internal/tasks"
)

// Columns a claims CSV must carry. Order in the file does not matter,
// the header row decides.
var requiredColumns = []string{
	"claim_id", "member_id", "provider_id", "date_of_service", "cpt_code", "charge_amount",
}

// HandleCSVIngest parses a spooled CSV upload into claim records and chains
// an audit task for every imported claim.
func HandleCSVIngest(ctx context.Context, t *asynq.Task, client *asynq.Client, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseCSVIngestPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	var job models.IngestJob
	if err := db.First(&job, "id = ?", payload.JobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Warn().Str("job_id", payload.JobID).Msg("Ingest job not found, dropping task")
			return nil
		}
		return fmt.Errorf("failed to load ingest job: %w", err)
	}

	if job.Status == models.IngestCompleted {
		logger.Info().Str("job_id", job.ID).Msg("Ingest job already completed, dropping task")
		return nil
	}

	if err := db.Model(&job).Update("status", models.IngestRunning).Error; err != nil {
		return fmt.Errorf("failed to mark ingest job running: %w", err)
	}

	imported, total, err := ingestClaims(ctx, db, &job, logger)
	if err != nil {
		failIngestJob(db, &job, err, logger)
		return fmt.Errorf("ingest failed: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        models.IngestCompleted,
		"message":       fmt.Sprintf("Imported %d of %d rows", imported, total),
		"rows_total":    total,
		"rows_imported": imported,
		"completed_at":  &now,
	}
	if err := db.Model(&job).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark ingest job completed: %w", err)
	}

	// Spool file is no longer needed
	if err := os.Remove(job.SpoolPath); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("spool_path", job.SpoolPath).Msg("Failed to remove spool file")
	}

	// Chain an audit over every claim in the file
	if imported > 0 {
		if err := enqueueAuditForJob(ctx, db, client, &job, logger); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue audit tasks for ingest")
		}
	}

	logger.Info().
		Str("job_id", job.ID).
		Str("filename", job.Filename).
		Int("rows_total", total).
		Int("rows_imported", imported).
		Msg("CSV ingest completed")

	return nil
}

func ingestClaims(ctx context.Context, db *gorm.DB, job *models.IngestJob, logger zerolog.Logger) (imported, total int, err error) {
	file, err := os.Open(job.SpoolPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open spooled upload: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return 0, 0, fmt.Errorf("missing required CSV column: %s", required)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return imported, total, ctx.Err()
		default:
		}

		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return imported, total, fmt.Errorf("failed to read CSV row %d: %w", total+2, readErr)
		}
		total++

		claim, parseErr := parseClaimRecord(record, columns)
		if parseErr != nil {
			logger.Warn().Err(parseErr).Int("row", total+1).Msg("Skipping invalid CSV row")
			continue
		}

		// Rows whose claim_id already exists are skipped, re-uploading a
		// file is safe.
		result := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "claim_id"}},
				DoNothing: true,
			}).
			Create(claim)
		if result.Error != nil {
			return imported, total, fmt.Errorf("failed to insert claim %s: %w", claim.ClaimID, result.Error)
		}
		if result.RowsAffected > 0 {
			imported++
		}
	}

	return imported, total, nil
}

func parseClaimRecord(record []string, columns map[string]int) (*models.Claim, error) {
	field := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	claimID := field("claim_id")
	if claimID == "" {
		return nil, fmt.Errorf("empty claim_id")
	}

	dateOfService, err := time.Parse("2006-01-02", field("date_of_service"))
	if err != nil {
		return nil, fmt.Errorf("invalid date_of_service: %w", err)
	}

	charge, err := strconv.ParseFloat(field("charge_amount"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid charge_amount: %w", err)
	}
	if charge < 0 {
		return nil, fmt.Errorf("negative charge_amount: %v", charge)
	}

	memberID := field("member_id")
	providerID := field("provider_id")
	cptCode := field("cpt_code")
	if memberID == "" || providerID == "" || cptCode == "" {
		return nil, fmt.Errorf("missing member_id, provider_id or cpt_code")
	}

	return &models.Claim{
		ClaimID:       claimID,
		MemberID:      memberID,
		ProviderID:    providerID,
		DateOfService: dateOfService,
		CPTCode:       cptCode,
		ChargeAmount:  charge,
	}, nil
}

func enqueueAuditForJob(ctx context.Context, db *gorm.DB, client *asynq.Client, job *models.IngestJob, logger zerolog.Logger) error {
	// The job only knows counts, so sweep the claims created after the job
	// started. Cheaper than tracking per-row provenance.
	var claimIDs []string
	err := db.WithContext(ctx).Model(&models.Claim{}).
		Where("created_at >= ?", job.CreatedAt).
		Pluck("claim_id", &claimIDs).Error
	if err != nil {
		return fmt.Errorf("failed to list claims for audit: %w", err)
	}

	for _, claimID := range claimIDs {
		task, err := tasks.NewAuditClaimTask(claimID)
		if err != nil {
			return fmt.Errorf("failed to create audit task: %w", err)
		}
		if _, err := client.Enqueue(task, asynq.MaxRetry(3)); err != nil {
			return fmt.Errorf("failed to enqueue audit task for claim %s: %w", claimID, err)
		}
	}

	logger.Info().Str("job_id", job.ID).Int("audit_tasks", len(claimIDs)).Msg("Audit tasks enqueued for ingest")
	return nil
}

func failIngestJob(db *gorm.DB, job *models.IngestJob, cause error, logger zerolog.Logger) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       models.IngestFailed,
		"message":      cause.Error(),
		"completed_at": &now,
	}
	if err := db.Model(job).Updates(updates).Error; err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark ingest job failed")
	}
}
