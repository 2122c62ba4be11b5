package workers

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/claimmatrix/claimmatrix/internal/models"
	"github.com/claimmatrix/claimmatrix/internal/tasks"
)

// StartSweepScheduler runs a periodic check (every minute) for due audit sweeps
func StartSweepScheduler(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	checkAndEnqueueSweep(client, db, logger)

	for range ticker.C {
		checkAndEnqueueSweep(client, db, logger)
	}
}

func checkAndEnqueueSweep(client *asynq.Client, db *gorm.DB, logger zerolog.Logger) {
	// Load the singleton config
	var config models.Config
	err := db.First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Debug().Msg("No config found - skipping sweep check")
			return
		}
		logger.Error().Err(err).Msg("Failed to query config for sweep")
		return
	}

	if config.SweepSchedule == "" {
		logger.Debug().Msg("No sweep schedule configured")
		return
	}

	if config.NextSweepAt != nil && config.NextSweepAt.After(time.Now()) {
		logger.Debug().
			Time("next_sweep_at", *config.NextSweepAt).
			Msg("Audit sweep not due yet")
		return
	}

	logger.Info().
		Str("config_id", config.ID).
		Str("sweep_schedule", config.SweepSchedule).
		Msg("Audit sweep due - enqueueing")

	task, err := tasks.NewAuditSweepTask()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create sweep task")
		return
	}

	if _, err := client.Enqueue(task, asynq.Timeout(1*time.Hour)); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue sweep task")
		return
	}

	// Update NextSweepAt immediately so the scheduler does not enqueue a new
	// sweep every minute while this one runs.
	nextSweep := calculateNextSweepTime(config.SweepSchedule, time.Now())
	if nextSweep != nil {
		if err := db.Model(&config).Update("next_sweep_at", nextSweep).Error; err != nil {
			logger.Error().Err(err).Str("config_id", config.ID).Msg("Failed to update next_sweep_at")
		} else {
			logger.Info().
				Str("config_id", config.ID).
				Time("next_sweep_at", *nextSweep).
				Msg("Updated next_sweep_at")
		}
	}
}

// calculateNextSweepTime calculates the next sweep time from a cron schedule
func calculateNextSweepTime(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}

	// Standard 5-field format: minute hour day-of-month month day-of-week
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil
	}

	next := schedule.Next(from)
	return &next
}
