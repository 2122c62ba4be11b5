package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeCSVIngest  = "csv_ingest:process"
	TypeAuditClaim = "audit:claim"
	TypeAuditSweep = "audit:sweep"
)

// CSVIngestPayload identifies the ingest job a worker should process
type CSVIngestPayload struct {
	JobID string `json:"job_id"`
}

// AuditClaimPayload identifies a single claim to score
type AuditClaimPayload struct {
	ClaimID string `json:"claim_id"`
}

// NewCSVIngestTask creates a task to parse a spooled CSV upload into claims
func NewCSVIngestTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CSVIngestPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCSVIngest, payload), nil
}

// NewAuditClaimTask creates a task to audit a single claim
func NewAuditClaimTask(claimID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AuditClaimPayload{ClaimID: claimID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeAuditClaim, payload), nil
}

// NewAuditSweepTask creates a task to re-audit every claim
func NewAuditSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeAuditSweep, nil), nil
}

// ParseCSVIngestPayload parses a CSV ingest payload from an Asynq task
func ParseCSVIngestPayload(task *asynq.Task) (CSVIngestPayload, error) {
	var payload CSVIngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// ParseAuditClaimPayload parses an audit claim payload from an Asynq task
func ParseAuditClaimPayload(task *asynq.Task) (AuditClaimPayload, error) {
	var payload AuditClaimPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
