package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/claimmatrix/claimmatrix/internal/auth"
	"github.com/claimmatrix/claimmatrix/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
)

// fieldError mirrors the validation error shape clients expect:
// {"detail": [{"loc": [...], "msg": ..., "type": ...}]}
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// respondDetail sends the error envelope every endpoint uses
func respondDetail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"detail": message})
	c.Abort()
}

func respondAuthError(c *gin.Context, log zerolog.Logger, err error, message string) {
	log.Warn().Err(err).Msg(message)
	respondDetail(c, http.StatusUnauthorized, message)
}

// respondValidationErrors converts binding failures into a 422 with one entry
// per failed field
func respondValidationErrors(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = fieldError{
				Loc:  []any{"body", strings.ToLower(fe.Field())},
				Msg:  validationMessage(fe),
				Type: fe.Tag(),
			}
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": details})
		c.Abort()
		return
	}

	respondDetail(c, http.StatusBadRequest, "Invalid request body")
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return field + " is too short"
	case "gte", "gt":
		return field + " is too small"
	default:
		return "invalid " + field
	}
}

// JWTAuthMiddleware validates JWT tokens for both web and CLI
func JWTAuthMiddleware(db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		token, err := extractBearerToken(authHeader)
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Missing authorization header"
			case ErrInvalidAuthFormat:
				message = "Invalid authorization header format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondAuthError(c, log, err, message)
			return
		}

		// Validate JWT token
		claims, err := auth.ValidateToken(token)
		if err != nil {
			respondAuthError(c, log, ErrInvalidToken, "Invalid or expired token")
			return
		}

		// Verify user exists in database
		var user models.User
		if err := db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			respondAuthError(c, log, ErrUserNotFound, "User not found")
			return
		}

		// Set session data
		sessionData := &auth.SessionData{
			UserID: user.ID,
			Email:  user.Email,
		}
		setSession(c, sessionData)

		c.Next()
	}
}
