package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/routes"
	"github.com/sevenfour/order-workflow-api/services"
	"github.com/sevenfour/order-workflow-api/utils"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := utils.InitLogger(cfg.LogLevel, cfg.IsProduction())
	log.WithField("env", cfg.GoEnv).Info("Starting order workflow API server...")

	if err := config.ConnectDatabase(cfg, log); err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	if cfg.RunMigrations {
		dialect := config.DetectDialect(cfg.DatabaseURL)
		if err := config.MigrateDatabase(config.GetDB(), dialect, log); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
	}

	if cfg.ManifestStorageEnabled() {
		if _, err := services.InitManifestStore(context.Background(), cfg); err != nil {
			log.WithError(err).Fatal("Failed to initialize manifest storage")
		}
		log.WithField("bucket", cfg.AWSS3Bucket).Info("Manifest storage enabled")
	} else {
		log.Warn("AWS_S3_BUCKET not set, delivery manifests are disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, log, middleware.EnsureValidToken(cfg, log))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", cfg.Port).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	if sqlDB, err := config.GetDB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// setupRouter builds the HTTP handler. auth guards every /api route.
func setupRouter(cfg *config.Config, log logrus.FieldLogger, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheck)
	router.GET("/database/status", databaseStatus)

	routes.Register(router, auth)
	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order workflow API is running",
	})
}

// databaseStatus checks database connectivity and reports the pool state
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not initialized",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		middleware.Logger(c).WithError(err).Error("database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	stats := sqlDB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"data": gin.H{
			"dialect":          db.Dialector.Name(),
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	})
}
