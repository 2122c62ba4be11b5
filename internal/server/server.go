// Package server
//
// @title ClaimMatrix API
// @version 1.0
// @description Health claims audit service API
// @host localhost:8001
// @BasePath /api/v1
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/claimmatrix/claimmatrix/internal/audit"
	"github.com/claimmatrix/claimmatrix/internal/auth"
	"github.com/claimmatrix/claimmatrix/internal/config"
	"github.com/claimmatrix/claimmatrix/internal/models"
)

// Server represents the HTTP server
type Server struct {
	router       *gin.Engine
	db           *gorm.DB
	config       *config.Config
	logger       zerolog.Logger
	validator    *validator.Validate
	asynqClient  *asynq.Client
	auditService *audit.Service
	version      string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	// Ensure the config singleton exists and JWT is ready before serving
	if err := ensureConfig(db, zlog); err != nil {
		return nil, err
	}

	// Initialize validator
	validate := validator.New()

	// Initialize Asynq client for enqueueing tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	// Initialize audit service and seed the default rule set
	auditService := audit.NewService(db, zlog)
	if err := auditService.SeedDefaultRules(context.Background()); err != nil {
		return nil, err
	}

	// Create server
	server := &Server{
		db:           db,
		config:       cfg,
		logger:       zlog,
		validator:    validate,
		asynqClient:  asynqClient,
		auditService: auditService,
		version:      version,
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8    // Reduced for SQLite efficiency
		maxIdleConns    = 4    // Reduced proportionally
		connMaxLifetime = 300  // 5 minutes
		busyTimeout     = 5000 // 5 seconds
		cacheSize       = 10000
		mmapSize        = 134217728 // 128MB
	)

	// Open database connection
	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply SQLite pragmas directly (connection string pragmas may not work with all drivers)
	// WAL mode must be set first for optimal concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA foreign_keys=1",
		"PRAGMA temp_store=2",
		fmt.Sprintf("PRAGMA mmap_size=%d", mmapSize),
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// ensureConfig creates the config singleton on first start, generating a
// persistent JWT secret
func ensureConfig(db *gorm.DB, zlog zerolog.Logger) error {
	var cfg models.Config
	err := db.First(&cfg).Error
	if err == nil {
		auth.InitializeJWT(cfg.JWTSecret)
		zlog.Debug().Msg("Loaded JWT secret from database")
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// First start: generate JWT secret (64 hex characters = 32 bytes of randomness)
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	cfg = models.Config{
		JWTSecret:     hex.EncodeToString(secretBytes),
		FlagThreshold: audit.LowRiskThreshold,
	}
	if err := db.Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	auth.InitializeJWT(cfg.JWTSecret)
	zlog.Info().Msg("Generated new JWT secret on first start")
	return nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")

	// Public auth endpoints (no auth required)
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)

	// Authenticated API routes (JWT required)
	authed := api.Group("")
	authed.Use(JWTAuthMiddleware(s.db, s.logger))
	{
		authed.GET("/users/me", s.getCurrentUser)

		// Claims
		authed.GET("/claims/", s.listClaims)
		authed.POST("/claims/", s.createClaim)
		authed.GET("/claims/flagged", s.listFlaggedClaims)
		authed.POST("/claims/upload", s.uploadClaims)
		authed.GET("/claims/member/:memberId", s.listClaimsByMember)
		authed.GET("/claims/provider/:providerId", s.listClaimsByProvider)
		authed.GET("/claims/:claimId", s.getClaim)

		// Audit results
		authed.GET("/audit-results/claim/:claimId", s.getAuditResultsForClaim)
		authed.GET("/audit-results/flagged", s.listFlaggedAuditResults)
		authed.GET("/audit-results/stats", s.getAuditStatistics)
		authed.POST("/audit-results/ml-audit/trigger", s.triggerMLAudit)

		// Audit rules
		authed.GET("/audit-rules", s.listAuditRules)
		authed.PUT("/audit-rules", s.replaceAuditRules)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "claimmatrix-api",
	})
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Router exposes the configured router, used by the server tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Close Asynq client
	if err := s.asynqClient.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing Asynq client")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
