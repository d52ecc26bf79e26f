package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

type PackageTier string

const (
	PackageTierBasic   PackageTier = "basic"
	PackageTierPremium PackageTier = "premium"
	PackageTierFamily  PackageTier = "family"
)

type Order struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	Email            string      `json:"email" db:"email"`
	CustomerName     string      `json:"customer_name" db:"customer_name"`
	PackageTier      PackageTier `json:"package_tier" db:"package_tier"`
	Amount           int64       `json:"amount" db:"amount"`
	Status           OrderStatus `json:"status" db:"status"`
	PaymentReference string      `json:"payment_reference" db:"payment_reference"`
	TransactionID    string      `json:"transaction_id,omitempty" db:"transaction_id"`
	PaymentMethod    string      `json:"payment_method,omitempty" db:"payment_method"`
	PaidAt           *time.Time  `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`

	Photos    []UploadedPhoto     `json:"uploaded_photos"`
	Artifacts []GeneratedArtifact `json:"generated_photos"`
}

// Validate checks the fields every stored order must carry.
func (o Order) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: order without id", ErrDecode)
	}
	switch o.Status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed:
	default:
		return fmt.Errorf("%w: order %s has unknown status %q", ErrDecode, o.ID, o.Status)
	}
	if o.Status == OrderStatusPaid && o.PaidAt == nil {
		return fmt.Errorf("%w: paid order %s without paid_at", ErrDecode, o.ID)
	}
	return nil
}

// OrderPaymentUpdate carries the fields written when a payment notification lands.
type OrderPaymentUpdate struct {
	Status        OrderStatus
	TransactionID string
	PaymentMethod string
	PaidAt        *time.Time
}
