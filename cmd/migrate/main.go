package main

import (
	"context"
	"time"

	"photo-generator/internal/config"
	applog "photo-generator/internal/log"
	"photo-generator/pkg/database/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	log := applog.New(cfg.Environment, cfg.LogLevel).With().Str("service", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewClient(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	log.Info().Msg("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if err := postgres.SeedThemes(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to seed themes")
	}
	log.Info().Msg("migrations finished")
}
