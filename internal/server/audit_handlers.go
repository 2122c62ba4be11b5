package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"

	"github.com/claimmatrix/claimmatrix/internal/models"
	"github.com/claimmatrix/claimmatrix/internal/tasks"
)

// AuditRuleRequest is one rule in a rule set replacement
type AuditRuleRequest struct {
	Code      string  `json:"code" binding:"required"`
	CPTCode   string  `json:"cpt_code"`
	MaxCharge float64 `json:"max_charge" binding:"gte=0"`
	Weight    float64 `json:"weight" binding:"gte=0,lte=1"`
	Enabled   bool    `json:"enabled"`
}

// ReplaceAuditRulesRequest replaces the whole rule set
type ReplaceAuditRulesRequest struct {
	Rules []AuditRuleRequest `json:"rules" binding:"required,min=1,dive"`
}

// MLAuditResponse acknowledges a triggered full audit
type MLAuditResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

// @Summary Audit results for a claim
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param claimId path string true "Claim ID"
// @Success 200 {array} models.AuditResult
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/audit-results/claim/{claimId} [get]
func (s *Server) getAuditResultsForClaim(c *gin.Context) {
	claimID := c.Param("claimId")

	var count int64
	if err := s.db.Model(&models.Claim{}).Where("claim_id = ?", claimID).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Str("claim_id", claimID).Msg("Failed to check claim")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if count == 0 {
		respondDetail(c, http.StatusNotFound, fmt.Sprintf("Claim %s not found", claimID))
		return
	}

	results := []models.AuditResult{}
	err := s.db.Where("claim_id = ?", claimID).
		Order("audit_timestamp DESC").
		Find(&results).Error
	if err != nil {
		s.logger.Error().Err(err).Str("claim_id", claimID).Msg("Failed to load audit results")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Issues serialize as [] rather than null for unaudited claims
	for i := range results {
		if results[i].Issues == nil {
			results[i].Issues = []string{}
		}
	}

	c.JSON(http.StatusOK, results)
}

// @Summary List flagged audit results
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param min_suspicion_score query number false "Minimum suspicion score" default(0.7)
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/audit-results/flagged [get]
func (s *Server) listFlaggedAuditResults(c *gin.Context) {
	// Same shape as the flagged claims listing
	s.listFlaggedClaims(c)
}

// @Summary Audit statistics
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} audit.Statistics
// @Router /api/v1/audit-results/stats [get]
func (s *Server) getAuditStatistics(c *gin.Context) {
	stats, err := s.auditService.Statistics(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute audit statistics")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Summary Trigger a full audit
// @Description Queues a background re-audit of every claim
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Success 202 {object} MLAuditResponse
// @Router /api/v1/audit-results/ml-audit/trigger [post]
func (s *Server) triggerMLAudit(c *gin.Context) {
	task, err := tasks.NewAuditSweepTask()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create sweep task")
		respondDetail(c, http.StatusInternalServerError, "Failed to trigger audit")
		return
	}

	info, err := s.asynqClient.Enqueue(task, asynq.MaxRetry(1))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue sweep task")
		respondDetail(c, http.StatusInternalServerError, "Failed to trigger audit")
		return
	}

	taskID := info.ID
	if taskID == "" {
		taskID = ulid.Make().String()
	}

	s.logger.Info().Str("task_id", taskID).Msg("Full audit triggered")

	c.JSON(http.StatusAccepted, MLAuditResponse{
		Status:      "accepted",
		Message:     "Audit started",
		TaskID:      taskID,
		Description: "Re-scoring every claim against the enabled audit rules",
	})
}

// @Summary List audit rules
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AuditRule
// @Router /api/v1/audit-rules [get]
func (s *Server) listAuditRules(c *gin.Context) {
	rules, err := s.auditService.Rules(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list audit rules")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, rules)
}

// @Summary Replace audit rules
// @Description Swaps the entire rule set in one operation
// @Tags audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReplaceAuditRulesRequest true "New rule set"
// @Success 200 {array} models.AuditRule
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/audit-rules [put]
func (s *Server) replaceAuditRules(c *gin.Context) {
	var req ReplaceAuditRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, err)
		return
	}

	rules := make([]models.AuditRule, len(req.Rules))
	for i, r := range req.Rules {
		rules[i] = models.AuditRule{
			Code:      r.Code,
			CPTCode:   r.CPTCode,
			MaxCharge: r.MaxCharge,
			Weight:    r.Weight,
			Enabled:   r.Enabled,
		}
	}

	if err := s.auditService.ReplaceRules(c.Request.Context(), rules); err != nil {
		s.logger.Error().Err(err).Msg("Failed to replace audit rules")
		respondDetail(c, http.StatusInternalServerError, "Failed to replace audit rules")
		return
	}

	stored, err := s.auditService.Rules(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to reload audit rules")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, stored)
}
