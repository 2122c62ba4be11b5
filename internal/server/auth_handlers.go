package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/claimmatrix/claimmatrix/internal/auth"
	"github.com/claimmatrix/claimmatrix/internal/models"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents a successful login response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func userDetail(user *models.User) UserDetail {
	return UserDetail{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// @Summary Register
// @Description Create a new reviewer account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} UserDetail
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, err)
		return
	}

	// Reject duplicate emails before hashing
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing email")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if count > 0 {
		respondDetail(c, http.StatusConflict, "Email already registered")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		respondDetail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		respondDetail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")

	c.JSON(http.StatusCreated, userDetail(user))
}

// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationErrors(c, err)
		return
	}

	// Find user by email
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondDetail(c, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Verify password
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		respondDetail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	// Generate JWT token
	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		respondDetail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/users/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		respondDetail(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var user models.User
	if err := s.db.Where("id = ?", sessionData.UserID).First(&user).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		respondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, userDetail(&user))
}
