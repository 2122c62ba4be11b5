package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/claimmatrix/claimmatrix/internal/models"
	"github.com/claimmatrix/claimmatrix/internal/tasks"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationMeta describes one page of a listing
type PaginationMeta struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// PaginatedResponse wraps a page of items with its pagination metadata
type PaginatedResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// ClaimCreateRequest represents a manually entered claim
type ClaimCreateRequest struct {
	ClaimID       string  `json:"claim_id" binding:"required"`
	MemberID      string  `json:"member_id" binding:"required"`
	ProviderID    string  `json:"provider_id" binding:"required"`
	DateOfService string  `json:"date_of_service" binding:"required"`
	CPTCode       string  `json:"cpt_code" binding:"required"`
	ChargeAmount  float64 `json:"charge_amount" binding:"required,gt=0"`
}

// FlaggedClaimDetail joins a claim with its audit result
type FlaggedClaimDetail struct {
	ClaimID           string    `json:"claim_id"`
	MemberID          string    `json:"member_id"`
	ProviderID        string    `json:"provider_id"`
	DateOfService     time.Time `json:"date_of_service"`
	CPTCode           string    `json:"cpt_code"`
	ChargeAmount      float64   `json:"charge_amount"`
	Issues            []string  `json:"issues"`
	SuspicionScore    float64   `json:"suspicion_score"`
	RecommendedAction string    `json:"recommended_action"`
	AuditTimestamp    time.Time `json:"audit_timestamp"`
}

// UploadResponse acknowledges an accepted CSV upload
type UploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
}

// pageParams reads and clamps the page / page_size query parameters
func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize
}

func paginationMeta(page, pageSize int, totalItems int64) PaginationMeta {
	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	return PaginationMeta{
		Page:        page,
		PageSize:    pageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// listClaimsPage runs a paginated claims listing over an arbitrarily filtered query
func (s *Server) listClaimsPage(c *gin.Context, query *gorm.DB) {
	page, pageSize := pageParams(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count claims")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	claims := []models.Claim{}
	err := query.
		Order("date_of_service DESC, claim_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&claims).Error
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list claims")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Items:      claims,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// @Summary List claims
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/claims/ [get]
func (s *Server) listClaims(c *gin.Context) {
	s.listClaimsPage(c, s.db.Model(&models.Claim{}))
}

// @Summary List claims by member
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/claims/member/{memberId} [get]
func (s *Server) listClaimsByMember(c *gin.Context) {
	memberID := c.Param("memberId")
	s.listClaimsPage(c, s.db.Model(&models.Claim{}).Where("member_id = ?", memberID))
}

// @Summary List claims by provider
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param providerId path string true "Provider ID"
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/claims/provider/{providerId} [get]
func (s *Server) listClaimsByProvider(c *gin.Context) {
	providerID := c.Param("providerId")
	s.listClaimsPage(c, s.db.Model(&models.Claim{}).Where("provider_id = ?", providerID))
}

// @Summary Get claim
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param claimId path string true "Claim ID"
// @Success 200 {object} models.Claim
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/claims/{claimId} [get]
func (s *Server) getClaim(c *gin.Context) {
	claimID := c.Param("claimId")

	var claim models.Claim
	if err := s.db.Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondDetail(c, http.StatusNotFound, fmt.Sprintf("Claim %s not found", claimID))
			return
		}
		s.logger.Error().Err(err).Str("claim_id", claimID).Msg("Failed to load claim")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, claim)
}

// @Summary Create claim
// @Description Manually enter a single claim and queue it for audit
// @Tags claims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ClaimCreateRequest true "Claim"
// @Success 201 {object} models.Claim
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/claims/ [post]
func (s *Server) createClaim(c *gin.Context) {
	var req ClaimCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, err)
		return
	}

	dateOfService, err := time.Parse("2006-01-02", req.DateOfService)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{
			Loc:  []any{"body", "date_of_service"},
			Msg:  "invalid date format, expected YYYY-MM-DD",
			Type: "date",
		}}})
		return
	}

	var count int64
	if err := s.db.Model(&models.Claim{}).Where("claim_id = ?", req.ClaimID).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing claim")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if count > 0 {
		respondDetail(c, http.StatusConflict, fmt.Sprintf("Claim %s already exists", req.ClaimID))
		return
	}

	claim := models.Claim{
		ClaimID:       req.ClaimID,
		MemberID:      req.MemberID,
		ProviderID:    req.ProviderID,
		DateOfService: dateOfService,
		CPTCode:       req.CPTCode,
		ChargeAmount:  req.ChargeAmount,
	}
	if err := s.db.Create(&claim).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create claim")
		respondDetail(c, http.StatusInternalServerError, "Failed to create claim")
		return
	}

	// Queue the new claim for audit
	if task, err := tasks.NewAuditClaimTask(claim.ClaimID); err == nil {
		if _, err := s.asynqClient.Enqueue(task, asynq.MaxRetry(3)); err != nil {
			s.logger.Warn().Err(err).Str("claim_id", claim.ClaimID).Msg("Failed to enqueue audit task")
		}
	}

	s.logger.Info().Str("claim_id", claim.ClaimID).Msg("Claim created")

	c.JSON(http.StatusCreated, claim)
}

// @Summary List flagged claims
// @Description Claims whose audit result meets the minimum suspicion score
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param min_suspicion_score query number false "Minimum suspicion score" default(0.7)
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/claims/flagged [get]
func (s *Server) listFlaggedClaims(c *gin.Context) {
	page, pageSize := pageParams(c)

	minScore, err := strconv.ParseFloat(c.DefaultQuery("min_suspicion_score", "0.7"), 64)
	if err != nil {
		respondDetail(c, http.StatusBadRequest, "Invalid min_suspicion_score")
		return
	}

	base := s.db.Model(&models.AuditResult{}).Where("suspicion_score >= ?", minScore)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count flagged claims")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	var results []models.AuditResult
	err = base.
		Order("suspicion_score DESC, claim_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list flagged claims")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]FlaggedClaimDetail, 0, len(results))
	for _, result := range results {
		var claim models.Claim
		if err := s.db.Where("claim_id = ?", result.ClaimID).First(&claim).Error; err != nil {
			s.logger.Warn().Err(err).Str("claim_id", result.ClaimID).Msg("Flagged result without claim, skipping")
			continue
		}

		issues := result.Issues
		if issues == nil {
			issues = []string{}
		}

		items = append(items, FlaggedClaimDetail{
			ClaimID:           claim.ClaimID,
			MemberID:          claim.MemberID,
			ProviderID:        claim.ProviderID,
			DateOfService:     claim.DateOfService,
			CPTCode:           claim.CPTCode,
			ChargeAmount:      claim.ChargeAmount,
			Issues:            issues,
			SuspicionScore:    result.SuspicionScore,
			RecommendedAction: result.RecommendedAction,
			AuditTimestamp:    result.AuditTimestamp,
		})
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Items:      items,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// @Summary Upload claims CSV
// @Description Accepts a CSV of claims and ingests it in the background
// @Tags claims
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Claims CSV"
// @Success 202 {object} UploadResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 413 {object} map[string]interface{}
// @Router /api/v1/claims/upload [post]
func (s *Server) uploadClaims(c *gin.Context) {
	const maxUploadSize = 32 << 20 // 32MB

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondDetail(c, http.StatusBadRequest, "No file provided")
		return
	}

	if fileHeader.Size > maxUploadSize {
		respondDetail(c, http.StatusRequestEntityTooLarge, "File too large, maximum size is 32MB")
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		respondDetail(c, http.StatusBadRequest, "Only CSV files are accepted")
		return
	}

	// Spool the upload to disk so the worker can pick it up
	spoolPath := filepath.Join(s.config.Server.UploadDir, fmt.Sprintf("claims-%s.csv", ulid.Make().String()))
	src, err := fileHeader.Open()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open uploaded file")
		respondDetail(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	defer src.Close()

	dst, err := os.Create(spoolPath)
	if err != nil {
		s.logger.Error().Err(err).Str("spool_path", spoolPath).Msg("Failed to create spool file")
		respondDetail(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(spoolPath)
		s.logger.Error().Err(err).Msg("Failed to write spool file")
		respondDetail(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	if err := dst.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close spool file")
		respondDetail(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	sessionData, _ := GetSessionData(c)
	job := models.IngestJob{
		Filename:    fileHeader.Filename,
		SpoolPath:   spoolPath,
		Status:      models.IngestPending,
		CreatedByID: sessionData.UserID,
	}
	if err := s.db.Create(&job).Error; err != nil {
		os.Remove(spoolPath)
		s.logger.Error().Err(err).Msg("Failed to create ingest job")
		respondDetail(c, http.StatusInternalServerError, "Failed to queue upload")
		return
	}

	task, err := tasks.NewCSVIngestTask(job.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create ingest task")
		respondDetail(c, http.StatusInternalServerError, "Failed to queue upload")
		return
	}
	if _, err := s.asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue ingest task")
		respondDetail(c, http.StatusInternalServerError, "Failed to queue upload")
		return
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("filename", fileHeader.Filename).
		Int64("size", fileHeader.Size).
		Msg("Claims CSV accepted for ingest")

	c.JSON(http.StatusAccepted, UploadResponse{
		Status:   "accepted",
		Message:  "File accepted for processing",
		TaskID:   job.ID,
		Filename: fileHeader.Filename,
	})
}
