package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config is the global configuration singleton (only one row should exist)
type Config struct {
	BaseModel
	// Auto-generated on first start (64 hex chars)
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"`

	// Suspicion score at or above which a claim counts as flagged
	FlagThreshold float64 `json:"flag_threshold" gorm:"not null;default:0.7"`

	// Cron expression for periodic audit sweeps, empty = no scheduled sweeps
	SweepSchedule string     `json:"sweep_schedule"`
	LastSweepAt   *time.Time `json:"last_sweep_at"`
	NextSweepAt   *time.Time `json:"next_sweep_at"`
}

// User is an account that can review claims
type User struct {
	BaseModel
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Claim is a single submitted health claim
type Claim struct {
	BaseModel
	ClaimID       string    `json:"claim_id" gorm:"uniqueIndex;not null"`
	MemberID      string    `json:"member_id" gorm:"index;not null"`
	ProviderID    string    `json:"provider_id" gorm:"index;not null"`
	DateOfService time.Time `json:"date_of_service" gorm:"not null"`
	CPTCode       string    `json:"cpt_code" gorm:"index;not null"`
	ChargeAmount  float64   `json:"charge_amount" gorm:"not null"`
}

// AuditResult is the latest audit outcome for a claim
type AuditResult struct {
	BaseModel
	ClaimID           string    `json:"claim_id" gorm:"uniqueIndex;not null"` // Claim.ClaimID, one result per claim
	Issues            []string  `json:"issues" gorm:"serializer:json"`
	IssueCount        int       `json:"issue_count" gorm:"not null"`
	SuspicionScore    float64   `json:"suspicion_score" gorm:"index;not null"`
	RecommendedAction string    `json:"recommended_action" gorm:"not null"`
	AuditTimestamp    time.Time `json:"audit_timestamp" gorm:"not null"`
}

// AuditRule is one configurable check applied when scoring a claim
type AuditRule struct {
	BaseModel
	Code      string  `json:"code" gorm:"uniqueIndex;not null"` // duplicate_claim, charge_outlier, ...
	CPTCode   string  `json:"cpt_code,omitempty"`               // restricts the rule to one CPT code, empty = all
	MaxCharge float64 `json:"max_charge,omitempty"`
	Weight    float64 `json:"weight" gorm:"not null"`
	Enabled   bool    `json:"enabled" gorm:"not null;default:true"`
}

// IngestJob tracks an asynchronous CSV ingest
type IngestJob struct {
	BaseModel
	Filename     string     `json:"filename" gorm:"not null"`
	SpoolPath    string     `json:"-" gorm:"not null"` // where the server parked the upload for the worker
	Status       string     `json:"status" gorm:"not null;default:pending"`
	Message      string     `json:"message"`
	RowsTotal    int        `json:"rows_total"`
	RowsImported int        `json:"rows_imported"`
	CreatedByID  string     `json:"created_by_id" gorm:"index"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// Ingest job statuses
const (
	IngestPending   = "pending"
	IngestRunning   = "running"
	IngestCompleted = "completed"
	IngestFailed    = "failed"
)

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Config{},
		&User{},
		&Claim{},
		&AuditResult{},
		&AuditRule{},
		&IngestJob{},
	)
}
