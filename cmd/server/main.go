package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/threadfeed/internal/bootstrap"
	"anoa.com/threadfeed/internal/config"
	"anoa.com/threadfeed/internal/middleware"
	searchService "anoa.com/threadfeed/internal/modules/search/service"
	userRepo "anoa.com/threadfeed/internal/modules/user/repository"
	"anoa.com/threadfeed/internal/server"
	"anoa.com/threadfeed/pkg/database"
	"anoa.com/threadfeed/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(cfg.AppEnv, cfg.LogLevel)

	db := database.Connect(cfg.DatabaseURL)
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	if cfg.IsDevelopment() {
		users, err := bootstrap.SeedDevUsers(context.Background(), userRepo.NewUserRepository(db))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to seed dev users")
		}
		auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
		for _, u := range users {
			token, err := auth.SignToken(u.ID, 24*time.Hour)
			if err != nil {
				continue
			}
			logger.Info().Str("username", u.Username).Str("token", token).Msg("dev token")
		}
	}

	redisClient := connectRedis(cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	meili := searchService.NewMeili(cfg.MeiliSearchHost, cfg.MeiliMasterKey)
	if meili == nil {
		logger.Warn().Msg("MEILISEARCH_HOST not set, search falls back to SQL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, db, redisClient, meili)
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

// connectRedis returns nil when redis is not configured or unreachable.
func connectRedis(url string) *redis.Client {
	if url == "" {
		logger.Warn().Msg("REDIS_URL not set, rate limiting and view buffering disabled")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, continuing without it")
		_ = client.Close()
		return nil
	}
	return client
}
