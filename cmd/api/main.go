package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/mirror"
	"server/internal/providers/stability"
	"server/internal/providers/vision"
	"server/internal/service"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	if err := infra.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	generations := repo.NewGenerationRepository(runner)
	statistics := repo.NewStatisticsRepository(runner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	stabilityClient := stability.NewClient(stability.Options{
		APIKey:  cfg.StabilityAPIKey,
		BaseURL: cfg.StabilityBaseURL,
		Timeout: cfg.GenerateTimeout,
		Logger:  &logger,
	})
	if !stabilityClient.HasCredentials() {
		logger.Warn().Msg("stability api key missing, generation requests will fail")
	}

	describer := vision.NewOpenAIDescriber(vision.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Logger:  &logger,
	})

	// Secondary mirror is optional: without REDIS_ADDR the primary store is
	// the only record of generations.
	var (
		async     *mirror.AsyncRecorder
		secondary handlers.Pinger
		mirrorDst service.Mirror
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		recorder := mirror.NewRedisRecorder(redisClient)
		async = mirror.NewAsyncRecorder(recorder, logger, 256, 5*time.Second)
		secondary = recorder
		mirrorDst = async
		defer redisClient.Close()
	}

	var logo []byte
	if cfg.LogoPath != "" {
		logo, err = os.ReadFile(cfg.LogoPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.LogoPath).Msg("logo asset not readable, overlay disabled")
			logo = nil
		}
	}

	generator := service.NewGenerator(service.Options{
		MaxImageBytes: cfg.MaxImageBytes(),
		AllowedTypes:  cfg.AllowedImageTypes,
		MaxDimension:  cfg.MaxImageDimension,
		LogoWidthPct:  cfg.LogoWidthPercent,
		LogoPadding:   cfg.LogoPadding,
	}, generations, stabilityClient, describer, fileStore, mirrorDst, logo, logger)

	app := &handlers.App{
		Logger:         logger,
		Generator:      generator,
		Generations:    generations,
		Statistics:     statistics,
		DB:             dbpool,
		Secondary:      secondary,
		HasUpstreamKey: stabilityClient.HasCredentials(),
		MaxUploadBytes: cfg.MaxImageBytes(),
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORSOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  countryLookup,
		GenerateLimit:  cfg.RateLimitPerMin,
		GenerateWindow: time.Minute,
		StaticDir:      cfg.StoragePath,
	})

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
	if async != nil {
		// Flush queued mirror writes before exit.
		async.Close()
	}
	logger.Info().Msg("server stopped")
}
