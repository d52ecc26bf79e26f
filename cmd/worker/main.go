package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-generator/internal/app"
	"photo-generator/internal/config"
	applog "photo-generator/internal/log"
	"photo-generator/internal/queue/rabbitmq"
	minioclient "photo-generator/internal/storage/minio"
	"photo-generator/internal/worker"
	"photo-generator/pkg/database/postgres"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	log := applog.New(cfg.Environment, cfg.LogLevel).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.Info().Msg("connecting to PostgreSQL")
	pgPool, err := postgres.NewClient(startCtx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pgPool.Close()

	log.Info().Msg("connecting to MinIO")
	blobs, err := minioclient.NewClient(startCtx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MinIO")
	}

	log.Info().Msg("connecting to RabbitMQ")
	queue, err := rabbitmq.NewClient(cfg.RabbitMQURL, cfg.Worker.PoolSize, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer queue.Close()

	orchestrator, err := app.NewOrchestrator(startCtx, cfg, app.NewRepositories(pgPool), blobs, prometheus.DefaultRegisterer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build generation pipeline")
	}

	deliveries, err := queue.Consume()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start consuming")
	}

	log.Info().Int("pool_size", cfg.Worker.PoolSize).Msg("worker service running")
	pool := worker.NewPool(orchestrator, cfg.Worker.PoolSize, cfg.Worker.JobTimeout, log)
	pool.Run(ctx, deliveries)

	log.Info().Msg("worker service stopped")
}
