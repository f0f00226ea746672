package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/config"
	"catalog-service/internal/handlers"
	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
			redisClient = nil
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Initialize snapshot store
	snapshots, err := importer.NewFileSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		log.Fatal("Failed to initialize snapshot store:", err)
	}

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	jobsRepo := repository.NewImportJobRepository(db)

	// Initialize import pipeline and committer
	pipeline := importer.NewPipeline(catalogRepo, jobsRepo, snapshots, logger, cfg.MaxUploadBytes, cfg.ValidateTimeout)
	committer := importer.NewCommitter(catalogRepo, jobsRepo, snapshots, logger)

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, cfg.DefaultPageSize, cfg.MaxPageSize)
	importHandler := handlers.NewImportHandler(pipeline, committer, jobsRepo, cfg.MaxUploadBytes, cfg.DefaultPageSize, cfg.MaxPageSize)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		catalog := v1.Group("/catalog")
		{
			catalog.GET("/brands", catalogHandler.GetBrands)
			catalog.GET("/categories", catalogHandler.GetCategories)
			catalog.GET("/categories/:id/series", catalogHandler.GetSeries)
			catalog.GET("/products", catalogHandler.GetProducts)
			catalog.GET("/products/:id", catalogHandler.GetProduct)

			// Import endpoints are admin-only
			imports := catalog.Group("/import")
			imports.Use(middleware.AdminAuth(cfg.AdminAPIToken))
			{
				imports.GET("/template", importHandler.GetImportTemplate)
				imports.POST("/validate", importHandler.ValidateImport)
				imports.GET("/jobs", importHandler.ListImportJobs)
				imports.GET("/jobs/:id", importHandler.GetImportJob)
				imports.POST("/jobs/:id/commit", importHandler.CommitImport)
			}
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting catalog service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down catalog service")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Catalog service stopped")
}
