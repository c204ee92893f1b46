package main

import (
	"tableflow/maitre/internal/chat"
	maitreconfig "tableflow/maitre/internal/config"
	"tableflow/maitre/internal/knowledge"
	"tableflow/maitre/internal/maitre"
	"tableflow/maitre/internal/restaurant"
	"tableflow/maitre/pkg/auth"
	"tableflow/maitre/pkg/config"
	"tableflow/maitre/pkg/database"
	"tableflow/maitre/pkg/llm"
	"tableflow/maitre/pkg/logging"
	"tableflow/maitre/pkg/monitoring"
	"tableflow/maitre/pkg/server"
)

var version = "dev"

func main() {
	logger := logging.NewLoggerWithService("maitre")
	config.LoadEnv(logger)

	cfg := maitreconfig.LoadConfig()
	jwtSecret := []byte(config.RequireEnv("JWT_SECRET"))

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db := database.MustConnect(dbCfg, logger)
	defer db.Close()

	health := monitoring.NewHealthChecker("maitre", version)
	health.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	metrics := monitoring.NewMetricsCollector("maitre", version, config.GetEnv("GIT_COMMIT", "unknown"))

	provider, err := llm.NewProvider(llm.LoadConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}
	utilityProvider, err := llm.NewProvider(llm.LoadUtilityConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create utility LLM provider")
	}
	embeddingClient, err := llm.NewEmbeddingClient(llm.LoadEmbeddingConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create embedding client")
	}

	embedder, err := knowledge.NewEmbedder(embeddingClient,
		knowledge.WithMaxChars(cfg.EmbedMaxChars),
		knowledge.WithBatchSize(cfg.EmbedBatchSize),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create embedder")
	}

	index := knowledge.NewIndex(db)
	entries := knowledge.NewStore(db)

	hyde := chat.NewHyDEGenerator(utilityProvider, embedder, cfg.HydeMaxTokens, cfg.HydeTemperature)
	retriever, err := chat.NewRetriever(embedder, index, entries, hyde, cfg.Retrieval, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create retriever")
	}

	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		LLMProvider:  provider,
		Logger:       logger,
		Retriever:    retriever,
		Reservations: restaurant.NewReservationStore(db),
		Incidents:    restaurant.NewIncidentStore(db),
		Waitlist:     restaurant.NewWaitlistStore(db),
		MaxSteps:     cfg.AgentMaxSteps,
	})

	traces := chat.NewTraceStore(db)
	handler := chat.NewHandler(chat.HandlerConfig{
		Orchestrator:       orchestrator,
		Traces:             traces,
		Logger:             logger,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
	})
	admin := chat.NewAdminHandler(entries, index, embedder, traces, logger)

	router := server.SetupServiceRouter(logger, "maitre", health, metrics)
	api := router.Group("/api")
	api.Use(auth.JWTAuthMiddleware(jwtSecret))
	api.Use(maitre.IdentityMiddleware())
	chat.RegisterRoutes(api, handler, admin)

	srvCfg := server.DefaultConfig("maitre", cfg.Port)
	if err := server.Start(srvCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}
