package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"photo-generator/internal/generation"
	"photo-generator/internal/models"
	"photo-generator/internal/payment"
	"photo-generator/internal/queue/rabbitmq"
	minioclient "photo-generator/internal/storage/minio"
	redisclient "photo-generator/pkg/database/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	res generation.Result
	err error
}

func (s stubGenerator) Generate(context.Context, uuid.UUID, string) (generation.Result, error) {
	return s.res, s.err
}

type recordingQueue struct {
	bodies [][]byte
	err    error
}

func (q *recordingQueue) Publish(_ context.Context, body []byte) error {
	q.bodies = append(q.bodies, body)
	return q.err
}

type memoryOrders map[uuid.UUID]models.Order

func (m memoryOrders) Get(_ context.Context, id uuid.UUID) (models.Order, error) {
	o, ok := m[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return o, nil
}

type memoryPhotos struct {
	mu     sync.Mutex
	stored []models.UploadedPhoto
}

func (m *memoryPhotos) Create(_ context.Context, p models.UploadedPhoto) (models.UploadedPhoto, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, p)
	return p, nil
}

type countingArtifacts struct {
	rows  map[uuid.UUID]models.GeneratedArtifact
	reads int
}

func (c *countingArtifacts) Get(_ context.Context, id uuid.UUID) (models.GeneratedArtifact, error) {
	c.reads++
	a, ok := c.rows[id]
	if !ok {
		return models.GeneratedArtifact{}, models.ErrNotFound
	}
	return a, nil
}

type staticThemes []models.Theme

func (s staticThemes) List(context.Context) ([]models.Theme, error) { return s, nil }

type memoryBlobs struct {
	uploads [][]byte
}

func (m *memoryBlobs) Upload(_ context.Context, data []byte, folder string) (minioclient.UploadResult, error) {
	m.uploads = append(m.uploads, data)
	name := fmt.Sprintf("decrude/%s/%d.jpg", folder, len(m.uploads))
	return minioclient.UploadResult{URL: "http://blobs/decrude/" + name, ObjectID: name}, nil
}

type stubPayments struct {
	created payment.CreatePaymentResult
	result  payment.NotificationResult
	err     error
}

func (s stubPayments) CreatePayment(context.Context, payment.CreatePaymentInput) (payment.CreatePaymentResult, error) {
	return s.created, s.err
}

func (s stubPayments) HandleNotification(context.Context, payment.Notification) (payment.NotificationResult, error) {
	return s.result, s.err
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	engine    *gin.Engine
	deps      Dependencies
	queue     *recordingQueue
	photos    *memoryPhotos
	artifacts *countingArtifacts
	blobs     *memoryBlobs
	orderID   uuid.UUID
}

func newFixture(t *testing.T, mutate func(*Dependencies)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := redisclient.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	f := &fixture{
		queue:     &recordingQueue{},
		photos:    &memoryPhotos{},
		artifacts: &countingArtifacts{rows: map[uuid.UUID]models.GeneratedArtifact{}},
		blobs:     &memoryBlobs{},
		orderID:   uuid.New(),
	}
	f.deps = Dependencies{
		Generator: stubGenerator{},
		Queue:     f.queue,
		Orders:    memoryOrders{f.orderID: {ID: f.orderID, Status: models.OrderStatusPaid}},
		Photos:    f.photos,
		Artifacts: f.artifacts,
		Themes:    staticThemes{{ID: "T1", Name: "Alpine", Prompt: "snow"}},
		Blobs:     f.blobs,
		Cache:     cache,
		Payments:  stubPayments{},
		Checks:    map[string]Pinger{"cache": cache},
	}
	if mutate != nil {
		mutate(&f.deps)
	}

	f.engine = gin.New()
	NewHandler(f.deps, "test", zerolog.Nop()).Register(f.engine)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestGenerate_Success(t *testing.T) {
	id := uuid.New()
	urls := models.VariantURLs{FullRes: "a", Square: "b", Banner: "c", Story: "d"}
	f := newFixture(t, func(d *Dependencies) {
		d.Generator = stubGenerator{res: generation.Result{GenerationID: id, URLs: urls}}
	})

	w := f.do(http.MethodPost, "/api/v1/generations", gin.H{"orderId": f.orderID.String(), "themeId": "T1"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success      bool               `json:"success"`
		GenerationID uuid.UUID          `json:"generationId"`
		URLs         models.VariantURLs `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, id, body.GenerationID)
	assert.Equal(t, urls, body.URLs)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no photos", generation.ErrNoPhotos, http.StatusBadRequest},
		{"unknown theme", fmt.Errorf("theme x: %w", models.ErrNotFound), http.StatusNotFound},
		{"model contract", generation.ErrNoCandidate, http.StatusInternalServerError},
		{"dependency", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(d *Dependencies) { d.Generator = stubGenerator{err: tc.err} })
			w := f.do(http.MethodPost, "/api/v1/generations", gin.H{"orderId": f.orderID.String(), "themeId": "T1"})
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "dial tcp")
			}
		})
	}
}

func TestGenerate_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/generations", gin.H{"orderId": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/generations", gin.H{"orderId": "not-a-uuid", "themeId": "T1"}).Code)
}

func TestQueueGeneration_PublishesJob(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/generations/queue", gin.H{"orderId": f.orderID.String(), "themeId": "T1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.bodies, 1)

	var job rabbitmq.GenerationJob
	require.NoError(t, json.Unmarshal(f.queue.bodies[0], &job))
	assert.Equal(t, f.orderID.String(), job.OrderID)
	assert.Equal(t, "T1", job.ThemeID)
	assert.False(t, job.RequestedAt.IsZero())
}

func TestQueueGeneration_PublishFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.queue.err = errors.New("channel closed")

	w := f.do(http.MethodPost, "/api/v1/generations/queue", gin.H{"orderId": f.orderID.String(), "themeId": "T1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetGeneration_CachesOnlyTerminal(t *testing.T) {
	f := newFixture(t, nil)
	done := time.Now().UTC()
	completed := models.GeneratedArtifact{
		ID: uuid.New(), Status: models.ArtifactStatusCompleted, CompletedAt: &done,
		Variants: &models.VariantURLs{FullRes: "a", Square: "b", Banner: "c", Story: "d"},
	}
	running := models.GeneratedArtifact{ID: uuid.New(), Status: models.ArtifactStatusGenerating}
	f.artifacts.rows[completed.ID] = completed
	f.artifacts.rows[running.ID] = running

	for i := 0; i < 3; i++ {
		w := f.do(http.MethodGet, "/api/v1/generations/"+completed.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
	}
	assert.Equal(t, 1, f.artifacts.reads)

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodGet, "/api/v1/generations/"+running.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 3, f.artifacts.reads)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/generations/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/generations/abc", nil).Code)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadPhotos_CompressesAndStores(t *testing.T) {
	f := newFixture(t, nil)
	req := multipartRequest(t, "/api/v1/orders/"+f.orderID.String()+"/photos", map[string][]byte{
		"wide.png":  pngBytes(t, 3000, 1000),
		"small.png": pngBytes(t, 100, 120),
	})

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, f.photos.stored, 2)
	require.Len(t, f.blobs.uploads, 2)
	for _, data := range f.blobs.uploads {
		assert.Equal(t, "image/jpeg", http.DetectContentType(data))
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.LessOrEqual(t, cfg.Width, uploadMaxEdge)
		assert.LessOrEqual(t, cfg.Height, uploadMaxEdge)
	}
	for _, p := range f.photos.stored {
		assert.Equal(t, f.orderID, p.OrderID)
		assert.Contains(t, p.URL, "/uploads/")
	}
}

func TestUploadPhotos_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/v1/orders/" + f.orderID.String() + "/photos"

	tooMany := map[string][]byte{}
	for i := 0; i < MaxUploadFiles+1; i++ {
		tooMany[fmt.Sprintf("%d.png", i)] = pngBytes(t, 10, 10)
	}

	cases := []struct {
		name  string
		path  string
		files map[string][]byte
		want  int
	}{
		{"no files", path, map[string][]byte{}, http.StatusBadRequest},
		{"too many", path, tooMany, http.StatusBadRequest},
		{"not an image", path, map[string][]byte{"a.txt": []byte("hello world")}, http.StatusBadRequest},
		{"unknown order", "/api/v1/orders/" + uuid.NewString() + "/photos", map[string][]byte{"a.png": pngBytes(t, 10, 10)}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.engine.ServeHTTP(w, multipartRequest(t, tc.path, tc.files))
			assert.Equal(t, tc.want, w.Code)
		})
	}
	assert.Empty(t, f.photos.stored)
}

func TestGetOrderAndThemes(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/orders/"+f.orderID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), f.orderID.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil).Code)

	w = f.do(http.MethodGet, "/api/v1/themes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name_en":"Alpine"`)
}

func TestPayments(t *testing.T) {
	orderID := uuid.New()
	f := newFixture(t, func(d *Dependencies) {
		d.Payments = stubPayments{
			created: payment.CreatePaymentResult{OrderID: orderID, SnapToken: "tok"},
			result:  payment.NotificationResult{Success: true, Status: models.OrderStatusPaid},
		}
	})

	w := f.do(http.MethodPost, "/api/v1/payments", gin.H{"email": "a@b.co", "name": "Ana", "packageTier": "basic"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"snapToken":"tok"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/payments", gin.H{"email": "nope"}).Code)

	w = f.do(http.MethodPost, "/api/v1/payments/webhook", gin.H{"order_id": "DECRUDE-x", "transaction_status": "settlement"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"paid"`)
}

func TestPaymentWebhook_ErrorMapping(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Payments = stubPayments{err: payment.ErrInvalidSignature} })
	w := f.do(http.MethodPost, "/api/v1/payments/webhook", gin.H{"order_id": "DECRUDE-x", "transaction_status": "settlement"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f = newFixture(t, func(d *Dependencies) { d.Payments = stubPayments{err: models.ErrNotFound} })
	w = f.do(http.MethodPost, "/api/v1/payments/webhook", gin.H{"order_id": "DECRUDE-x", "transaction_status": "settlement"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code)

	f = newFixture(t, func(d *Dependencies) {
		d.Checks["database"] = pingFunc(func(context.Context) error { return errors.New("down") })
	})
	w := f.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"error"`)
}

func TestUploadPhotos_LimitCountsExistingPhotos(t *testing.T) {
	f := newFixture(t, nil)
	orders := f.deps.Orders.(memoryOrders)
	order := orders[f.orderID]
	for i := 0; i < MaxUploadFiles-1; i++ {
		order.Photos = append(order.Photos, models.UploadedPhoto{ID: uuid.New(), OrderID: f.orderID})
	}
	orders[f.orderID] = order
	path := "/api/v1/orders/" + f.orderID.String() + "/photos"

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, multipartRequest(t, path, map[string][]byte{
		"a.png": pngBytes(t, 10, 10),
		"b.png": pngBytes(t, 10, 10),
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already uploaded")
	assert.Empty(t, f.blobs.uploads)

	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, multipartRequest(t, path, map[string][]byte{"a.png": pngBytes(t, 10, 10)}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, f.photos.stored, 1)
}
