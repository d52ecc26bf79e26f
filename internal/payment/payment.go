package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"photo-generator/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

const referencePrefix = "DECRUDE-"

var (
	ErrInvalidTier      = fmt.Errorf("%w: invalid package tier", models.ErrInvalidInput)
	ErrInvalidSignature = fmt.Errorf("%w: notification signature mismatch", models.ErrInvalidInput)
)

var prices = map[models.PackageTier]int64{
	models.PackageTierBasic:   10000,
	models.PackageTierPremium: 15000,
	models.PackageTierFamily:  20000,
}

// Price returns the fixed amount for a package tier.
func Price(tier models.PackageTier) (int64, error) {
	amount, ok := prices[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	return amount, nil
}

type OrderStore interface {
	Create(ctx context.Context, order models.Order) (models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (models.Order, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, update models.OrderPaymentUpdate) (bool, error)
}

type CreatePaymentInput struct {
	Email       string             `json:"email" binding:"required,email"`
	Name        string             `json:"name" binding:"required"`
	PackageTier models.PackageTier `json:"packageTier" binding:"required"`
}

type CreatePaymentResult struct {
	OrderID   uuid.UUID `json:"orderId"`
	SnapToken string    `json:"snapToken"`
	SnapURL   string    `json:"snapUrl"`
}

// Notification is the asynchronous status callback sent by the gateway.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	FraudStatus       string `json:"fraud_status"`
}

type NotificationResult struct {
	Success bool               `json:"success"`
	Status  models.OrderStatus `json:"status"`
}

type Options struct {
	ServerKey       string
	VerifySignature bool
}

type Service struct {
	orders  OrderStore
	gateway Gateway
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(orders OrderStore, gateway Gateway, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		orders:  orders,
		gateway: gateway,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// CreatePayment stores a pending order and opens a gateway transaction for it.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (CreatePaymentResult, error) {
	amount, err := Price(in.PackageTier)
	if err != nil {
		return CreatePaymentResult{}, err
	}

	order, err := s.orders.Create(ctx, models.Order{
		ID:               uuid.New(),
		Email:            in.Email,
		CustomerName:     in.Name,
		PackageTier:      in.PackageTier,
		Amount:           amount,
		Status:           models.OrderStatusPending,
		PaymentReference: referencePrefix + ksuid.New().String(),
	})
	if err != nil {
		return CreatePaymentResult{}, err
	}

	tx, err := s.gateway.CreateTransaction(ctx, TransactionRequest{
		Reference:    order.PaymentReference,
		Amount:       amount,
		Email:        in.Email,
		CustomerName: in.Name,
		ItemID:       string(in.PackageTier),
		ItemName:     fmt.Sprintf("DECRUDE %s Package", strings.ToUpper(string(in.PackageTier))),
	})
	if err != nil {
		return CreatePaymentResult{}, fmt.Errorf("failed to create transaction for order %s: %w", order.ID, err)
	}

	s.logger.Info().Str("order_id", order.ID.String()).Str("reference", order.PaymentReference).
		Int64("amount", amount).Msg("payment created")

	return CreatePaymentResult{
		OrderID:   order.ID,
		SnapToken: tx.Token,
		SnapURL:   tx.RedirectURL,
	}, nil
}

// MapTransactionStatus translates a gateway status into the order status it
// implies. Unknown statuses keep the current status.
func MapTransactionStatus(transactionStatus string, current models.OrderStatus) models.OrderStatus {
	switch transactionStatus {
	case "capture", "settlement":
		return models.OrderStatusPaid
	case "cancel", "deny", "expire":
		return models.OrderStatusFailed
	default:
		return current
	}
}

// HandleNotification applies a status callback. It is idempotent per
// reference: a paid order is never modified again and repeats succeed.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (NotificationResult, error) {
	if s.opts.VerifySignature && !s.validSignature(n) {
		return NotificationResult{}, ErrInvalidSignature
	}

	order, err := s.orders.FindByPaymentReference(ctx, n.OrderID)
	if err != nil {
		return NotificationResult{}, err
	}

	log := s.logger.With().Str("order_id", order.ID.String()).Str("transaction_status", n.TransactionStatus).Logger()

	if order.Status == models.OrderStatusPaid {
		log.Info().Msg("order already paid, notification ignored")
		return NotificationResult{Success: true, Status: order.Status}, nil
	}

	next := MapTransactionStatus(n.TransactionStatus, order.Status)
	if next == order.Status {
		return NotificationResult{Success: true, Status: order.Status}, nil
	}

	update := models.OrderPaymentUpdate{
		Status:        next,
		TransactionID: n.TransactionID,
		PaymentMethod: n.PaymentType,
	}
	if next == models.OrderStatusPaid {
		paidAt := s.now().UTC()
		update.PaidAt = &paidAt
	}

	changed, err := s.orders.UpdatePayment(ctx, order.ID, update)
	if err != nil {
		return NotificationResult{}, err
	}
	if !changed {
		// Lost a race with a concurrent notification that marked the order paid.
		log.Info().Msg("order changed concurrently, notification ignored")
		return NotificationResult{Success: true, Status: models.OrderStatusPaid}, nil
	}

	log.Info().Str("status", string(next)).Msg("order payment status updated")
	return NotificationResult{Success: true, Status: next}, nil
}

func (s *Service) validSignature(n Notification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + s.opts.ServerKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}
