package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-generator/internal/app"
	"photo-generator/internal/config"
	"photo-generator/internal/handler"
	"photo-generator/internal/jobs"
	applog "photo-generator/internal/log"
	"photo-generator/internal/payment"
	"photo-generator/internal/queue/rabbitmq"
	"photo-generator/internal/server"
	minioclient "photo-generator/internal/storage/minio"
	"photo-generator/pkg/database/postgres"
	redisclient "photo-generator/pkg/database/redis"
	"photo-generator/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	log := applog.New(cfg.Environment, cfg.LogLevel).With().Str("service", "api-gateway").Logger()

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

	if err := postgres.RunMigrations(startCtx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("connecting to MinIO")
	blobs, err := minioclient.NewClient(startCtx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MinIO")
	}

	log.Info().Msg("connecting to Redis")
	cache, err := redisclient.NewClient(startCtx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer cache.Close()

	log.Info().Msg("connecting to RabbitMQ")
	queue, err := rabbitmq.NewClient(cfg.RabbitMQURL, 0, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer queue.Close()

	repos := app.NewRepositories(pgPool)
	orchestrator, err := app.NewOrchestrator(startCtx, cfg, repos, blobs, prometheus.DefaultRegisterer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build generation pipeline")
	}

	payments := payment.NewService(repos.Orders, payment.NewSnapGateway(cfg.Midtrans), payment.Options{
		ServerKey:       cfg.Midtrans.ServerKey,
		VerifySignature: cfg.Midtrans.VerifySignature,
	}, log.With().Str("component", "payment").Logger())

	var auth gin.HandlerFunc
	if cfg.Auth.Enabled {
		jwks, err := security.NewJWKS(cfg.Auth.JWKSURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load JWKS")
		}
		defer jwks.Close()
		auth = security.AuthMiddleware(jwks.Keyfunc, cfg.Auth.ClientID)
	}

	h := handler.NewHandler(handler.Dependencies{
		Generator: orchestrator,
		Queue:     queue,
		Orders:    repos.Orders,
		Photos:    repos.Photos,
		Artifacts: repos.Artifacts,
		Themes:    repos.Themes,
		Blobs:     blobs,
		Cache:     cache,
		Payments:  payments,
		Checks: map[string]handler.Pinger{
			"database": pgPool,
			"cache":    cache,
			"storage":  blobs,
		},
	}, cfg.Environment, log)

	srv := server.NewHTTPServer(server.Options{
		Addr:        cfg.HTTPAddr,
		Environment: cfg.Environment,
		Auth:        auth,
		Registerer:  prometheus.DefaultRegisterer,
		Gatherer:    prometheus.DefaultGatherer,
	}, log, h)

	sweeper := jobs.NewSweeper(repos.Artifacts, cfg.Generation.StaleAfter, log.With().Str("component", "sweeper").Logger())
	if err := sweeper.Start(cfg.Generation.SweepSchedule); err != nil {
		log.Fatal().Err(err).Msg("failed to start sweeper")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	sweeper.Stop(shutdownCtx)
	log.Info().Msg("api gateway stopped")
}
