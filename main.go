package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"regintel/config"
	"regintel/models"
	"regintel/services"
	"regintel/sources"
	"regintel/storage"
	"regintel/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	newUpdatesCounter     prometheus.Counter
	skippedUpdatesCounter prometheus.Counter
	sourceErrorsCounter   prometheus.Counter
)

func init() {
	newUpdatesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "regulatory_updates_added_total",
			Help: "Total number of new regulatory updates added to the database.",
		},
	)
	skippedUpdatesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "regulatory_updates_skipped_total",
			Help: "Total number of updates skipped as duplicates.",
		},
	)
	sourceErrorsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "source_errors_total",
			Help: "Total number of failed source fetches.",
		},
	)
	prometheus.MustRegister(newUpdatesCounter, skippedUpdatesCounter, sourceErrorsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to regulatory updates database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.RegulatoryUpdate{}, &models.IngestionRun{}, &models.SourceResult{})

	// Setup Sources
	enabledSources := services.BuildSources(cfg, logging)
	if len(enabledSources) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	names := make([]string, 0, len(enabledSources))
	for _, src := range enabledSources {
		names = append(names, src.Name())
	}
	logging.Info("Active sources loaded", zap.Strings("sources", names))

	// Setup Services
	st := store.New(db)
	ingestService := services.NewIngestService(cfg, st, logging, enabledSources)

	// S3-Export ist optional; ohne Bucket-Konfiguration bleibt er aus.
	var s3Client *awss3.Client
	if cfg.BackupS3URL != "" && cfg.BackupS3Bucket != "" {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
	} else {
		logging.Info("S3 export disabled, no bucket configured.")
	}
	exportService := services.NewExportService(cfg, st, s3Client, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "regintel"})
	})

	// Setup Routes
	setupUpdateRoutes(router, st, logging)
	setupSourceRoutes(router, st, enabledSources)
	setupSyncRoutes(router, ingestService)
	setupRunRoutes(router, st, logging)
	setupMaintenanceRoutes(router, st, logging)
	setupExportRoutes(router, exportService)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled ingestion job...")
		report, err := ingestService.Run(context.Background(), cfg.DefaultLimit, nil)
		if report != nil {
			recordRunMetrics(report)
		}
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
		} else {
			logging.Info("Cron job completed",
				zap.Int("new_updates", report.TotalInserted),
				zap.Int("skipped", report.TotalSkipped))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func recordRunMetrics(report *services.RunReport) {
	newUpdatesCounter.Add(float64(report.TotalInserted))
	skippedUpdatesCounter.Add(float64(report.TotalSkipped))
	for _, sr := range report.Reports {
		if sr.Err != nil {
			sourceErrorsCounter.Inc()
		}
	}
}

func setupUpdateRoutes(router *gin.Engine, st *store.Store, log *zap.Logger) {
	rg := router.Group("/updates")

	// Einfacher GET-Endpunkt mit Query-Parametern
	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		updates, err := st.List(c.Request.Context(), c.Query("source_id"), c.Query("category"), limit, offset)
		if err != nil {
			log.Error("Database query for updates failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, updates)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type UpdateQuery struct {
			SourceID    string `json:"source_id"`
			Category    string `json:"category"`
			MinPriority int    `json:"min_priority"`
			RiskLevel   string `json:"risk_level"`
			Limit       int    `json:"limit"`
		}

		var req UpdateQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := st.DB.WithContext(c.Request.Context()).Model(&models.RegulatoryUpdate{})
		if req.SourceID != "" {
			query = query.Where("source_id = ?", req.SourceID)
		}
		if req.Category != "" {
			query = query.Where("category = ?", req.Category)
		}
		if req.MinPriority > 0 {
			query = query.Where("priority >= ?", req.MinPriority)
		}
		if req.RiskLevel != "" {
			query = query.Where("risk_level = ?", req.RiskLevel)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var updates []models.RegulatoryUpdate
		if err := query.Order("published_date desc").Find(&updates).Error; err != nil {
			log.Error("Database query for updates failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, updates)
	})

	rg.GET("/high-priority", func(c *gin.Context) {
		minPriority, _ := strconv.Atoi(c.DefaultQuery("min_priority", "4"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		updates, err := st.LatestByPriority(c.Request.Context(), minPriority, limit)
		if err != nil {
			log.Error("Database query for high priority updates failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, updates)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var update models.RegulatoryUpdate
		if err := st.DB.WithContext(c.Request.Context()).First(&update, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "update not found"})
				return
			}
			log.Error("DB error fetching update", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, update)
	})
}

func setupSourceRoutes(router *gin.Engine, st *store.Store, srcs []sources.Source) {
	rg := router.Group("/sources")
	rg.GET("/", func(c *gin.Context) {
		names := make([]string, 0, len(srcs))
		for _, src := range srcs {
			names = append(names, src.Name())
		}
		c.JSON(http.StatusOK, gin.H{"sources": names})
	})
	rg.GET("/stats", func(c *gin.Context) {
		counts, err := st.CountBySource(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		total, err := st.CountAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		recent, err := st.UpdatedSince(c.Request.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "last_24h": recent, "by_source": counts})
	})
}

func syncLimit(c *gin.Context, fallback int) int {
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		return v
	}
	return fallback
}

func setupSyncRoutes(router *gin.Engine, ingestService *services.IngestService) {
	rg := router.Group("/sync")
	rg.POST("/all", func(c *gin.Context) {
		limit := syncLimit(c, ingestService.Config.DefaultLimit)
		go func() {
			report, err := ingestService.Run(context.Background(), limit, nil)
			if report != nil {
				recordRunMetrics(report)
			}
			if err != nil {
				ingestService.Logger.Error("Async full ingestion failed", zap.Error(err))
			} else {
				ingestService.Logger.Info("Async full ingestion completed",
					zap.Int("new_updates", report.TotalInserted))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Ingestion for all sources triggered."})
	})
	rg.POST("/source/:name", func(c *gin.Context) {
		name := c.Param("name")
		known := false
		for _, src := range ingestService.Sources {
			if src.Name() == name {
				known = true
				break
			}
		}
		if !known {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
			return
		}
		limit := syncLimit(c, ingestService.Config.DefaultLimit)
		go func() {
			report, err := ingestService.RunSource(context.Background(), name, limit, nil)
			if err != nil {
				ingestService.Logger.Error("Async single source ingestion failed",
					zap.String("source", name), zap.Error(err))
				sourceErrorsCounter.Inc()
				return
			}
			newUpdatesCounter.Add(float64(report.Inserted))
			skippedUpdatesCounter.Add(float64(report.Skipped))
			ingestService.Logger.Info("Async single source ingestion completed",
				zap.String("source", name), zap.Int("new_updates", report.Inserted))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("Ingestion for source %s triggered.", name)})
	})
}

func setupRunRoutes(router *gin.Engine, st *store.Store, log *zap.Logger) {
	rg := router.Group("/runs")
	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		runs, err := st.RecentRuns(c.Request.Context(), limit)
		if err != nil {
			log.Error("Database query for ingestion runs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})
}

func setupMaintenanceRoutes(router *gin.Engine, st *store.Store, log *zap.Logger) {
	dedup := services.NewDedupService(st, log)
	rg := router.Group("/maintenance")

	rg.POST("/remove-duplicates", func(c *gin.Context) {
		dryRun := c.DefaultQuery("dry_run", "false") == "true"
		report, err := dedup.RemoveDuplicates(c.Request.Context(), dryRun)
		if err != nil {
			log.Error("Duplicate cleanup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/add-missing-hashes", func(c *gin.Context) {
		repaired, err := dedup.RepairMissingFingerprints(c.Request.Context())
		if err != nil {
			log.Error("Fingerprint repair failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "repair failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"repaired": repaired})
	})
}

func setupExportRoutes(router *gin.Engine, exportService *services.ExportService) {
	rg := router.Group("/export")
	rg.POST("/high-priority", func(c *gin.Context) {
		minPriority, _ := strconv.Atoi(c.DefaultQuery("min_priority", "4"))
		link, err := exportService.ExportHighPriority(c.Request.Context(), minPriority)
		if err != nil {
			exportService.Logger.Error("Export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": link})
	})
}
