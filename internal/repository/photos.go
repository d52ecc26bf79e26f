package repository

import (
	"context"
	"fmt"

	"photo-generator/internal/models"

	"github.com/google/uuid"
)

type PhotoRepository struct {
	db DB
}

func NewPhotoRepository(db DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) Create(ctx context.Context, photo models.UploadedPhoto) (models.UploadedPhoto, error) {
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	query := `
		INSERT INTO uploaded_photos (id, order_id, url, object_id, original_filename, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, photo.ID, photo.OrderID, photo.URL, photo.ObjectID, photo.OriginalFilename).
		Scan(&photo.CreatedAt)
	if err != nil {
		return models.UploadedPhoto{}, fmt.Errorf("failed to save uploaded photo: %w", err)
	}
	return photo, nil
}

func (r *PhotoRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.UploadedPhoto, error) {
	query := `
		SELECT id, order_id, url, object_id, original_filename, created_at
		FROM uploaded_photos
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploaded photos: %w", err)
	}
	defer rows.Close()

	var photos []models.UploadedPhoto
	for rows.Next() {
		var p models.UploadedPhoto
		if err := rows.Scan(&p.ID, &p.OrderID, &p.URL, &p.ObjectID, &p.OriginalFilename, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
