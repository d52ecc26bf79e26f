package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"photo-generator/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders map[uuid.UUID]models.Order

func (f fakeOrders) Get(_ context.Context, id uuid.UUID) (models.Order, error) {
	o, ok := f[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return o, nil
}

type fakeThemes map[string]models.Theme

func (f fakeThemes) Get(_ context.Context, id string) (models.Theme, error) {
	t, ok := f[id]
	if !ok {
		return models.Theme{}, fmt.Errorf("theme %s: %w", id, models.ErrNotFound)
	}
	return t, nil
}

type fakeArtifacts struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.GeneratedArtifact
	creates   int
	updates   int
	updateErr []error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{rows: map[uuid.UUID]models.GeneratedArtifact{}}
}

func (f *fakeArtifacts) Create(_ context.Context, a models.GeneratedArtifact) (models.GeneratedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.rows[a.ID] = a
	return a, nil
}

func (f *fakeArtifacts) Update(ctx context.Context, id uuid.UUID, u models.ArtifactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.updateErr) > 0 {
		err := f.updateErr[0]
		f.updateErr = f.updateErr[1:]
		if err != nil {
			return err
		}
	}
	a := f.rows[id]
	a.Status = u.Status
	a.Variants = u.Variants
	a.ErrorMessage = u.ErrorMessage
	a.CompletedAt = u.CompletedAt
	f.rows[id] = a
	return nil
}

func (f *fakeArtifacts) only(t *testing.T) models.GeneratedArtifact {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.rows, 1)
	for _, a := range f.rows {
		return a
	}
	return models.GeneratedArtifact{}
}

type fakeGenerator struct {
	mu          sync.Mutex
	calls       int
	models      []string
	instruction string
	imageCount  int
	out         []byte
	err         error
}

func (f *fakeGenerator) Invoke(_ context.Context, model string, images []InputImage, instruction string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.models = append(f.models, model)
	f.instruction = instruction
	f.imageCount = len(images)
	return f.out, f.err
}

type harness struct {
	orch      *Orchestrator
	artifacts *fakeArtifacts
	blobs     *memoryBlobs
	generator *fakeGenerator
	registry  *prometheus.Registry
	orders    fakeOrders
}

var testModels = ModelNames{Preserving: "preserving-model", Compositing: "compositing-model"}

func newHarness(t *testing.T, photoCounts ...int) (*harness, []uuid.UUID) {
	t.Helper()
	blobs := newMemoryBlobs()
	orders := fakeOrders{}
	var ids []uuid.UUID
	for _, n := range photoCounts {
		id := uuid.New()
		order := models.Order{ID: id, Status: models.OrderStatusPaid}
		for i := 0; i < n; i++ {
			u := fmt.Sprintf("https://blobs.example.com/bucket/decrude/uploads/%s-%d.jpg", id, i)
			blobs.put(u, testJPEG(t, 64, 80))
			order.Photos = append(order.Photos, models.UploadedPhoto{ID: uuid.New(), OrderID: id, URL: u})
		}
		orders[id] = order
		ids = append(ids, id)
	}

	registry := prometheus.NewRegistry()
	h := &harness{
		artifacts: newFakeArtifacts(),
		blobs:     blobs,
		generator: &fakeGenerator{out: testJPEG(t, 400, 500)},
		registry:  registry,
		orders:    orders,
	}
	h.orch = NewOrchestrator(Dependencies{
		Orders:    orders,
		Themes:    fakeThemes{"T1": {ID: "T1", Name: "Alpine", Prompt: "Alpine cabin, snow"}},
		Artifacts: h.artifacts,
		Blobs:     blobs,
		Generator: h.generator,
		Variants:  NewVariantPipeline(blobs, TierStandard, RegionRewrite{}),
		Metrics:   NewMetrics(registry),
	}, Options{Models: testModels}, zerolog.Nop())
	return h, ids
}

func (h *harness) outcomes(kind Kind) float64 {
	return testutil.ToFloat64(h.orch.deps.Metrics.outcomes.WithLabelValues(string(kind)))
}

func TestGenerate_SinglePhotoCompletes(t *testing.T) {
	h, ids := newHarness(t, 1)

	res, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.NoError(t, err)

	assert.Equal(t, 1, h.generator.calls)
	assert.Equal(t, []string{"preserving-model"}, h.generator.models)
	assert.Equal(t, 1, h.generator.imageCount)

	a := h.artifacts.only(t)
	assert.Equal(t, res.GenerationID, a.ID)
	assert.Equal(t, models.ArtifactStatusCompleted, a.Status)
	assert.Equal(t, "preserving-model", a.ModelUsed)
	require.NotNil(t, a.Variants)
	assert.True(t, a.Variants.Complete())
	assert.Equal(t, res.URLs, *a.Variants)
	assert.NotNil(t, a.CompletedAt)
	assert.Empty(t, a.ErrorMessage)
	assert.NoError(t, a.Validate())

	assert.Equal(t, 1, h.artifacts.creates)
	assert.Equal(t, 1, h.artifacts.updates)
	assert.Equal(t, 1, h.blobs.uploadedTo("generated/4k"))
	assert.Equal(t, float64(1), h.outcomes(KindCompleted))
}

func TestGenerate_MultiPhotoUsesCompositingModel(t *testing.T) {
	h, ids := newHarness(t, 3)

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.NoError(t, err)

	assert.Equal(t, []string{"compositing-model"}, h.generator.models)
	assert.Equal(t, 3, h.generator.imageCount)
	assert.Contains(t, h.generator.instruction, "3 people")
	assert.Equal(t, "compositing-model", h.artifacts.only(t).ModelUsed)
}

func TestGenerate_ZeroCandidatesMarksFailed(t *testing.T) {
	h, ids := newHarness(t, 1)
	h.generator.err = ErrNoCandidate

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.ErrorIs(t, err, ErrNoCandidate)

	a := h.artifacts.only(t)
	assert.Equal(t, models.ArtifactStatusFailed, a.Status)
	assert.Contains(t, a.ErrorMessage, "no candidate produced")
	assert.Nil(t, a.Variants)
	assert.Equal(t, 1, h.artifacts.updates)
	assert.Equal(t, 0, h.blobs.uploadedTo("generated"))
	assert.Equal(t, float64(1), h.outcomes(KindModelContract))
}

func TestGenerate_VariantFailureLeavesNoPartialRecord(t *testing.T) {
	h, ids := newHarness(t, 2)
	h.blobs.failOn = "generated/whatsapp"

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.Error(t, err)

	a := h.artifacts.only(t)
	assert.Equal(t, models.ArtifactStatusFailed, a.Status)
	assert.Nil(t, a.Variants)
	assert.NotEmpty(t, a.ErrorMessage)
	assert.Equal(t, float64(1), h.outcomes(KindDependency))
}

func TestGenerate_DownloadFailureMarksFailed(t *testing.T) {
	h, ids := newHarness(t, 2)
	cause := errors.New("connection reset")
	h.blobs.download = cause

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 0, h.generator.calls)
	assert.Equal(t, models.ArtifactStatusFailed, h.artifacts.only(t).Status)
}

func TestGenerate_ValidationHappensBeforeAnyRecord(t *testing.T) {
	h, ids := newHarness(t, 0)

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	assert.ErrorIs(t, err, ErrNoPhotos)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = h.orch.Generate(context.Background(), uuid.New(), "T1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	h2, ids2 := newHarness(t, 1)
	_, err = h2.orch.Generate(context.Background(), ids2[0], "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, 0, h.artifacts.creates)
	assert.Equal(t, 0, h2.artifacts.creates)
	assert.Equal(t, 0, h2.generator.calls)
	assert.Equal(t, float64(2), h.outcomes(KindInvalidInput))
}

func TestGenerate_FailureWriteErrorStillReturnsOriginal(t *testing.T) {
	h, ids := newHarness(t, 1)
	cause := errors.New("model offline")
	h.generator.err = fmt.Errorf("%w: %w", ErrGenerationCall, cause)
	h.artifacts.updateErr = []error{errors.New("database down")}

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrGenerationCall)
	assert.Equal(t, 1, h.artifacts.updates)
}

func TestGenerate_CompletionWriteFailureFallsBackToFailed(t *testing.T) {
	h, ids := newHarness(t, 1)
	h.artifacts.updateErr = []error{errors.New("write timeout"), nil}

	_, err := h.orch.Generate(context.Background(), ids[0], "T1")
	require.Error(t, err)

	a := h.artifacts.only(t)
	assert.Equal(t, models.ArtifactStatusFailed, a.Status)
	assert.Contains(t, a.ErrorMessage, "write timeout")
	assert.Nil(t, a.Variants)
}

func TestGenerate_FailureWriteSurvivesCallerCancellation(t *testing.T) {
	h, ids := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	h.generator.err = context.Canceled
	cancel()

	_, err := h.orch.Generate(ctx, ids[0], "T1")
	assert.Error(t, err)
	assert.Equal(t, models.ArtifactStatusFailed, h.artifacts.only(t).Status)
}

// cancelAfterVariants cancels the caller context once every variant is stored.
type cancelAfterVariants struct {
	inner  VariantRunner
	cancel context.CancelFunc
}

func (c cancelAfterVariants) Run(ctx context.Context, src []byte) (models.VariantURLs, error) {
	urls, err := c.inner.Run(ctx, src)
	c.cancel()
	return urls, err
}

func TestGenerate_CompletionSurvivesCallerDisconnect(t *testing.T) {
	h, ids := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch.deps.Variants = cancelAfterVariants{inner: h.orch.deps.Variants, cancel: cancel}

	res, err := h.orch.Generate(ctx, ids[0], "T1")
	require.NoError(t, err)

	a := h.artifacts.only(t)
	assert.Equal(t, models.ArtifactStatusCompleted, a.Status)
	require.NotNil(t, a.Variants)
	assert.Equal(t, res.URLs, *a.Variants)
	assert.Equal(t, 1, h.artifacts.updates)
}
