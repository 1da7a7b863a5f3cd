package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cgigen/internal/adapter/memory"
	"cgigen/internal/adapter/repo"
	"cgigen/internal/domain"
	"cgigen/internal/http/handlers"
	"cgigen/internal/http/httpapi"
	"cgigen/internal/infra"
	"cgigen/internal/pipeline"
	"cgigen/internal/providers/image"
	"cgigen/internal/providers/prompt"
	"cgigen/internal/providers/video"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var (
		users  domain.UserRepository
		ledger domain.CreditLedger
		jobs   domain.JobRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		userRepo := repo.NewUserRepository(pool)
		users = userRepo
		ledger = userRepo
		jobs = repo.NewJobRepository(pool)
		logger.Info().Msg("using postgres stores")
	} else {
		store := memory.NewUserStore()
		users = store
		ledger = store
		jobs = memory.NewJobStore()
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.GeminiAPIKey == "" {
		logger.Fatal().Msg("GEMINI_API_KEY is required")
	}
	if cfg.FalAPIKey == "" {
		logger.Fatal().Msg("FAL_API_KEY is required")
	}

	writer, err := prompt.NewGeminiWriter(prompt.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini writer")
	}

	images, err := image.NewFalGenerator(image.FalOptions{
		APIKey:  cfg.FalAPIKey,
		BaseURL: cfg.FalBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image provider")
	}

	falVideoOpts := video.FalOptions{
		APIKey:  cfg.FalAPIKey,
		BaseURL: cfg.FalBaseURL,
		Timeout: cfg.VideoTimeout,
	}
	primary, err := video.NewKlingGenerator(falVideoOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure primary video provider")
	}
	fallback, err := video.NewMinimaxGenerator(falVideoOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure fallback video provider")
	}
	videos, err := video.NewFailover(primary, fallback)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video failover")
	}

	executor := pipeline.NewExecutor(jobs, ledger, writer, writer, images, videos, logger)
	service := pipeline.NewService(jobs, ledger, executor, logger)

	app := handlers.NewApp(logger, users, ledger, service, cfg.JWTSecret)
	router := httpapi.NewRouter(app, logger, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
