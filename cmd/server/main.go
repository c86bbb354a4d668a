package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"casestatus-backend/browser"
	"casestatus-backend/handlers"
	"casestatus-backend/ocr/engines"
	"casestatus-backend/repository"
	"casestatus-backend/service"
	"casestatus-backend/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	// Try current directory first, then project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	// Lookup history is optional
	var lookupRepo *repository.LookupRepository
	if os.Getenv("DATABASE_URL") != "" {
		db, err := initPostgres()
		if err != nil {
			log.Fatal("Failed to initialize Postgres:", err)
		}
		defer db.Close()
		lookupRepo = repository.NewLookupRepository(db)
	} else {
		log.Println("Warning: DATABASE_URL not set, lookup history disabled")
	}

	// Initialize storage
	artifacts, err := storage.NewStorageFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	engine, err := engines.NewEngineFromEnv(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}
	log.Printf("OCR engine: %s", engine.Name())

	opts := []service.CaseLookupServiceOption{
		service.WithLauncher(browser.NewChromeLauncher(browser.ConfigFromEnv())),
		service.WithOCREngine(engine),
		service.WithArtifactStorage(artifacts),
		service.WithPipelineConfig(service.PipelineConfigFromEnv()),
	}
	if url := os.Getenv("CASE_STATUS_URL"); url != "" {
		opts = append(opts, service.WithSearchURL(url))
	}
	if pattern := os.Getenv("CAPTCHA_PATTERN"); pattern != "" {
		acceptor, err := service.NewPatternAcceptor(pattern)
		if err != nil {
			log.Fatalf("Invalid CAPTCHA_PATTERN: %v", err)
		}
		opts = append(opts, service.WithCaptchaAcceptor(acceptor))
	}

	// Keep the handler's reader nil rather than a typed nil pointer
	var lookups handlers.LookupReader
	if lookupRepo != nil {
		opts = append(opts, service.WithLookupRepository(lookupRepo))
		lookups = lookupRepo
	}

	caseService := service.NewCaseLookupService(opts...)
	caseHandler := handlers.NewCaseHandler(caseService, lookups, os.Getenv("HIDE_ERROR_DETAILS") == "true")

	// Setup Gin router
	r := gin.Default()

	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(origin, ","),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Lookup-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	caseHandler.RegisterRoutes(r)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres() (*pgxpool.Pool, error) {
	connString := os.Getenv("DATABASE_URL")

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	log.Println("Postgres connection established")
	return pool, nil
}
