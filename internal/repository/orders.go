package repository

import (
	"context"
	"errors"
	"fmt"

	"photo-generator/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderRepository struct {
	db        DB
	photos    *PhotoRepository
	artifacts *ArtifactRepository
}

func NewOrderRepository(db DB, photos *PhotoRepository, artifacts *ArtifactRepository) *OrderRepository {
	return &OrderRepository{db: db, photos: photos, artifacts: artifacts}
}

const orderColumns = `id, email, customer_name, package_tier, amount, status, payment_reference,
	transaction_id, payment_method, paid_at, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order models.Order) (models.Order, error) {
	query := `
		INSERT INTO orders (id, email, customer_name, package_tier, amount, status, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + orderColumns

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, query,
		order.ID, order.Email, order.CustomerName, order.PackageTier, order.Amount, order.Status, order.PaymentReference)
	created, err := scanOrder(row)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

// Get returns the order with its uploaded photos and generated artifacts.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (models.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return models.Order{}, fmt.Errorf("order %s: %w", id, err)
	}

	if order.Photos, err = r.photos.ListByOrder(ctx, id); err != nil {
		return models.Order{}, err
	}
	if order.Artifacts, err = r.artifacts.ListByOrder(ctx, id); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) FindByPaymentReference(ctx context.Context, reference string) (models.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference)
	order, err := scanOrder(row)
	if err != nil {
		return models.Order{}, fmt.Errorf("order with reference %s: %w", reference, err)
	}
	return order, nil
}

// UpdatePayment applies a payment transition unless the order is already paid.
// It reports whether a row changed.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, update models.OrderPaymentUpdate) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, transaction_id = $3, payment_method = $4, paid_at = $5, updated_at = NOW()
		WHERE id = $1 AND status <> 'paid'
	`
	tag, err := r.db.Exec(ctx, query, id, update.Status, update.TransactionID, update.PaymentMethod, update.PaidAt)
	if err != nil {
		return false, fmt.Errorf("failed to update order payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.Email,
		&o.CustomerName,
		&o.PackageTier,
		&o.Amount,
		&o.Status,
		&o.PaymentReference,
		&o.TransactionID,
		&o.PaymentMethod,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, models.ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	if err := o.Validate(); err != nil {
		return models.Order{}, err
	}
	return o, nil
}
