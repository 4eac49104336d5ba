package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"talentmatch/matching-engine/internal/config"
	"talentmatch/matching-engine/internal/handlers"
	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
	"talentmatch/matching-engine/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	candidateRepo := repositories.NewCandidateRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	criterionRepo := repositories.NewCriterionRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	embeddingRepo := repositories.NewEmbeddingRepository(db)
	runRepo := repositories.NewMatchRunRepository(db)
	resultRepo := repositories.NewMatchResultRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize Qdrant
	qdrantService, err := services.NewQdrantService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := qdrantService.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
	}
	log.Println("✅ Qdrant initialized successfully")

	// Initialize scoring services
	embeddingCache := services.NewEmbeddingCacheService(
		embeddingRepo,
		geminiService,
		qdrantService,
		map[string]float64{
			models.VectorFullText:   cfg.Matching.FullTextVecW,
			models.VectorSkills:     cfg.Matching.SkillsVecW,
			models.VectorExperience: cfg.Matching.ExperienceVecW,
		},
	)
	criteriaScorer := services.NewCriteriaScorer(nil)
	ruleEngine := services.NewRuleEngine()

	matcherService := services.NewMatcherService(
		runRepo,
		resultRepo,
		jobRepo,
		candidateRepo,
		criterionRepo,
		ruleRepo,
		embeddingCache,
		qdrantService,
		criteriaScorer,
		ruleEngine,
		cfg.Matching,
		cfg.Worker.Fanout,
	)
	log.Println("✅ Matcher service initialized")

	explainer := services.NewGeminiExplainer(geminiService, cfg.Worker.RetryMaxAttempts, cfg.Worker.RetryInitialDelay)

	// Initialize worker
	worker := services.NewWorker(
		runRepo,
		matcherService,
		cfg.Worker.Concurrency,
		cfg.Worker.RunTimeout,
	)
	log.Println("✅ Worker initialized successfully")

	// Start worker
	ctx := context.Background()
	worker.Start(ctx)
	log.Println("✅ Worker started successfully")

	// Initialize handlers
	criteriaHandler := handlers.NewCriteriaHandler(criterionRepo, jobRepo)
	ruleHandler := handlers.NewRuleHandler(ruleRepo, jobRepo)
	matchHandler := handlers.NewMatchHandler(
		runRepo,
		resultRepo,
		jobRepo,
		candidateRepo,
		matcherService,
		explainer,
		worker,
	)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Candidate Matching Engine API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Criteria configuration
	api.Get("/jobs/:id/criteria", criteriaHandler.HandleGetCriteria)
	api.Put("/jobs/:id/criteria", criteriaHandler.HandleReplaceCriteria)

	// Rule configuration
	api.Post("/rules", ruleHandler.HandleCreateRule)
	api.Get("/rules/:id", ruleHandler.HandleGetRule)
	api.Put("/rules/:id", ruleHandler.HandleUpdateRule)
	api.Delete("/rules/:id", ruleHandler.HandleDeleteRule)
	api.Post("/rules/templates/:templateID/apply/:jobID", ruleHandler.HandleApplyTemplate)

	// Matching
	api.Post("/match", matchHandler.HandleMatch)
	api.Post("/match/single", matchHandler.HandleMatchSingle)
	api.Get("/match/runs/:id", matchHandler.HandleGetRun)
	api.Get("/match/runs/:id/results", matchHandler.HandleGetRunResults)
	api.Get("/match/results/:id/explanation", matchHandler.HandleExplainResult)
	api.Get("/jobs/:id/results", matchHandler.HandleGetJobResults)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Candidate Matching Engine API",
			"version": "1.0.0",
			"endpoints": []string{
				"PUT /api/v1/jobs/:id/criteria",
				"POST /api/v1/rules",
				"POST /api/v1/match",
				"POST /api/v1/match/single",
				"GET /api/v1/match/runs/:id",
				"GET /api/v1/match/runs/:id/results",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
