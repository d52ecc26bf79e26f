// Package app assembles the generation pipeline shared by the API and worker binaries.
package app

import (
	"context"
	"time"

	"photo-generator/internal/config"
	"photo-generator/internal/generation"
	"photo-generator/internal/repository"
	minioclient "photo-generator/internal/storage/minio"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const themeCacheTTL = 10 * time.Minute

// Repositories groups the Postgres-backed stores.
type Repositories struct {
	Orders    *repository.OrderRepository
	Photos    *repository.PhotoRepository
	Themes    *repository.ThemeRepository
	Artifacts *repository.ArtifactRepository
}

func NewRepositories(db repository.DB) Repositories {
	photos := repository.NewPhotoRepository(db)
	artifacts := repository.NewArtifactRepository(db)
	return Repositories{
		Orders:    repository.NewOrderRepository(db, photos, artifacts),
		Photos:    photos,
		Themes:    repository.NewThemeRepository(db),
		Artifacts: artifacts,
	}
}

// NewOrchestrator wires the Gemini invoker, variant pipeline and stores
// into a generation orchestrator.
func NewOrchestrator(ctx context.Context, cfg *config.Config, repos Repositories, blobs *minioclient.Client, reg prometheus.Registerer, log zerolog.Logger) (*generation.Orchestrator, error) {
	invoker, err := generation.NewGeminiInvoker(ctx, cfg.Gemini)
	if err != nil {
		return nil, err
	}

	variants := generation.NewVariantPipeline(blobs, cfg.Generation.FullResTier, generation.RegionRewrite{
		Enabled:    cfg.Storage.RegionRewrite,
		HostPrefix: cfg.Storage.RegionHostPrefix,
	})

	return generation.NewOrchestrator(generation.Dependencies{
		Orders:    repos.Orders,
		Themes:    repository.NewCachedThemes(repos.Themes, themeCacheTTL),
		Artifacts: repos.Artifacts,
		Blobs:     blobs,
		Generator: invoker,
		Variants:  variants,
		Metrics:   generation.NewMetrics(reg),
	}, generation.Options{
		Models: generation.ModelNames{
			Preserving:  cfg.Gemini.PreservingModel,
			Compositing: cfg.Gemini.CompositingModel,
		},
		Attire:              cfg.Generation.Attire,
		Timeout:             cfg.Generation.Timeout,
		FailureWriteTimeout: cfg.Generation.FailureWriteTimeout,
	}, log.With().Str("component", "generation").Logger()), nil
}
