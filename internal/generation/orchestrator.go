package generation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"photo-generator/internal/models"
	minioclient "photo-generator/internal/storage/minio"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type OrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (models.Order, error)
}

type ThemeReader interface {
	Get(ctx context.Context, id string) (models.Theme, error)
}

type ArtifactStore interface {
	Create(ctx context.Context, a models.GeneratedArtifact) (models.GeneratedArtifact, error)
	Update(ctx context.Context, id uuid.UUID, u models.ArtifactUpdate) error
}

type BlobStore interface {
	Upload(ctx context.Context, data []byte, folder string) (minioclient.UploadResult, error)
	DownloadAsBytes(ctx context.Context, url string) ([]byte, error)
}

type ImageGenerator interface {
	Invoke(ctx context.Context, model string, images []InputImage, instruction string) ([]byte, error)
}

type VariantRunner interface {
	Run(ctx context.Context, src []byte) (models.VariantURLs, error)
}

type Dependencies struct {
	Orders    OrderReader
	Themes    ThemeReader
	Artifacts ArtifactStore
	Blobs     BlobStore
	Generator ImageGenerator
	Variants  VariantRunner
	Metrics   *Metrics
}

type Options struct {
	Models ModelNames
	Attire string
	// Timeout bounds the external steps of one invocation. Zero disables it.
	Timeout time.Duration
	// FailureWriteTimeout bounds each terminal write, which outlives the caller.
	FailureWriteTimeout time.Duration
}

// Result is returned by a successful Generate.
type Result struct {
	GenerationID uuid.UUID          `json:"generationId"`
	URLs         models.VariantURLs `json:"urls"`
}

// Orchestrator runs the order-to-artifact pipeline and owns the artifact
// status transitions generating -> completed|failed.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewOrchestrator(deps Dependencies, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.FailureWriteTimeout <= 0 {
		opts.FailureWriteTimeout = 10 * time.Second
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Generate validates the order, records a generating artifact, runs the
// pipeline and writes exactly one terminal transition before returning.
// On failure the original error is returned after the failed status is stored.
func (o *Orchestrator) Generate(ctx context.Context, orderID uuid.UUID, themeID string) (Result, error) {
	started := o.now()
	log := o.logger.With().Str("order_id", orderID.String()).Str("theme_id", themeID).Logger()

	order, theme, err := o.prepare(ctx, orderID, themeID)
	if err != nil {
		o.deps.Metrics.observe(Classify(err), time.Since(started))
		log.Warn().Err(err).Str("kind", string(Classify(err))).Msg("generation rejected")
		return Result{}, err
	}

	choice := SelectModel(len(order.Photos))
	modelName := o.opts.Models.For(choice)

	artifact, err := o.deps.Artifacts.Create(ctx, models.GeneratedArtifact{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ThemeID:   theme.ID,
		Status:    models.ArtifactStatusGenerating,
		ModelUsed: modelName,
		StartedAt: started.UTC(),
	})
	if err != nil {
		o.deps.Metrics.observe(KindDependency, time.Since(started))
		return Result{}, fmt.Errorf("failed to create generation record: %w", err)
	}

	log = log.With().Str("generation_id", artifact.ID.String()).Str("model", modelName).Logger()
	log.Info().Str("path", choice.String()).Int("photos", len(order.Photos)).Msg("generation started")

	urls, runErr := o.run(ctx, order, theme, choice, modelName)
	return o.settle(ctx, log, artifact.ID, urls, runErr, started)
}

func (o *Orchestrator) prepare(ctx context.Context, orderID uuid.UUID, themeID string) (models.Order, models.Theme, error) {
	order, err := o.deps.Orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, models.Theme{}, err
	}
	if len(order.Photos) == 0 {
		return models.Order{}, models.Theme{}, ErrNoPhotos
	}
	theme, err := o.deps.Themes.Get(ctx, themeID)
	if err != nil {
		return models.Order{}, models.Theme{}, err
	}
	return order, theme, nil
}

func (o *Orchestrator) run(ctx context.Context, order models.Order, theme models.Theme, choice ModelChoice, modelName string) (models.VariantURLs, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	images, err := o.fetchInputs(ctx, order.Photos)
	if err != nil {
		return models.VariantURLs{}, err
	}

	prompt := ComposePrompt(choice, theme, len(images), o.opts.Attire)

	generated, err := o.deps.Generator.Invoke(ctx, modelName, images, prompt)
	if err != nil {
		return models.VariantURLs{}, err
	}

	if _, err := o.deps.Blobs.Upload(ctx, generated, minioclient.FolderGenerated); err != nil {
		return models.VariantURLs{}, fmt.Errorf("failed to upload generated image: %w", err)
	}

	urls, err := o.deps.Variants.Run(ctx, generated)
	if err != nil {
		return models.VariantURLs{}, fmt.Errorf("failed to create variants: %w", err)
	}
	return urls, nil
}

// fetchInputs downloads the order's photos concurrently, preserving their order.
func (o *Orchestrator) fetchInputs(ctx context.Context, photos []models.UploadedPhoto) ([]InputImage, error) {
	images := make([]InputImage, len(photos))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		eg.Go(func() error {
			data, err := o.deps.Blobs.DownloadAsBytes(egCtx, photo.URL)
			if err != nil {
				return fmt.Errorf("failed to download photo %s: %w", photo.ID, err)
			}
			if len(data) == 0 {
				return fmt.Errorf("photo %s is empty", photo.ID)
			}
			images[i] = InputImage{Data: data, MIMEType: http.DetectContentType(data)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// settle issues the terminal write. Both writes are detached from caller
// cancellation so a finished pipeline is recorded even if the caller left.
// A failed completion write falls through to the failure transition so the
// record never stays generating.
func (o *Orchestrator) settle(ctx context.Context, log zerolog.Logger, id uuid.UUID, urls models.VariantURLs, runErr error, started time.Time) (Result, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.FailureWriteTimeout)
	defer cancel()

	if runErr == nil {
		if err := o.deps.Artifacts.Update(writeCtx, id, models.CompletedUpdate(urls, o.now().UTC())); err != nil {
			runErr = fmt.Errorf("failed to record completion: %w", err)
		} else {
			o.deps.Metrics.observe(KindCompleted, time.Since(started))
			log.Info().Dur("elapsed", time.Since(started)).Msg("generation completed")
			return Result{GenerationID: id, URLs: urls}, nil
		}
	}

	kind := Classify(runErr)
	o.deps.Metrics.observe(kind, time.Since(started))
	log.Error().Err(runErr).Str("kind", string(kind)).Msg("generation failed")

	if err := o.deps.Artifacts.Update(writeCtx, id, models.FailedUpdate(runErr)); err != nil {
		log.Error().Err(err).Msg("failed to record generation failure")
	}
	return Result{}, runErr
}
