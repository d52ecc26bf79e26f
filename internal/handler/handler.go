package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"photo-generator/internal/generation"
	"photo-generator/internal/models"
	"photo-generator/internal/payment"
	minioclient "photo-generator/internal/storage/minio"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Generator interface {
	Generate(ctx context.Context, orderID uuid.UUID, themeID string) (generation.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (models.Order, error)
}

type Photos interface {
	Create(ctx context.Context, photo models.UploadedPhoto) (models.UploadedPhoto, error)
}

type Artifacts interface {
	Get(ctx context.Context, id uuid.UUID) (models.GeneratedArtifact, error)
}

type Themes interface {
	List(ctx context.Context) ([]models.Theme, error)
}

type Blobs interface {
	Upload(ctx context.Context, data []byte, folder string) (minioclient.UploadResult, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Payments interface {
	CreatePayment(ctx context.Context, in payment.CreatePaymentInput) (payment.CreatePaymentResult, error)
	HandleNotification(ctx context.Context, n payment.Notification) (payment.NotificationResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds the collaborators behind the HTTP API.
type Dependencies struct {
	Generator Generator
	Queue     Publisher
	Orders    Orders
	Photos    Photos
	Artifacts Artifacts
	Themes    Themes
	Blobs     Blobs
	Cache     Cache
	Payments  Payments
	// Checks are pinged by the health endpoint, keyed by component name.
	Checks map[string]Pinger
}

type Handler struct {
	deps        Dependencies
	environment string
	log         zerolog.Logger
}

func NewHandler(deps Dependencies, environment string, log zerolog.Logger) *Handler {
	return &Handler{
		deps:        deps,
		environment: environment,
		log:         log,
	}
}

// Register mounts the API. protected runs in front of the customer routes;
// the payment webhook and health check stay open.
func (h *Handler) Register(engine *gin.Engine, protected ...gin.HandlerFunc) {
	engine.GET("/healthz", h.Health)

	api := engine.Group("/api/v1")
	api.POST("/payments", h.CreatePayment)
	api.POST("/payments/webhook", h.PaymentWebhook)
	api.GET("/themes", h.ListThemes)

	customer := api.Group("", protected...)
	customer.POST("/generations", h.Generate)
	customer.POST("/generations/queue", h.QueueGeneration)
	customer.GET("/generations/:id", h.GetGeneration)
	customer.GET("/orders/:id", h.GetOrder)
	customer.POST("/orders/:id/photos", h.UploadPhotos)
}

// fail maps err onto a status code. Only validation and lookup errors are
// echoed to the caller.
func (h *Handler) fail(c *gin.Context, err error, safeMessage string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(safeMessage)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": safeMessage})
	}
}

func parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id format"})
		return uuid.Nil, false
	}
	return id, true
}
