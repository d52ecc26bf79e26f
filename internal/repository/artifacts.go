package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-generator/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ArtifactRepository struct {
	db DB
}

func NewArtifactRepository(db DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `id, order_id, theme_id, status, model_used, url_4k, url_instagram, url_facebook,
	url_whatsapp, error_message, generation_started_at, generation_completed_at`

func (r *ArtifactRepository) Create(ctx context.Context, a models.GeneratedArtifact) (models.GeneratedArtifact, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO generated_photos (id, order_id, theme_id, status, model_used, generation_started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Exec(ctx, query, a.ID, a.OrderID, a.ThemeID, a.Status, a.ModelUsed, a.StartedAt); err != nil {
		return models.GeneratedArtifact{}, fmt.Errorf("failed to create generated photo: %w", err)
	}
	return a, nil
}

// Update writes a terminal transition. Only rows still generating are touched.
func (r *ArtifactRepository) Update(ctx context.Context, id uuid.UUID, u models.ArtifactUpdate) error {
	var full, square, banner, story *string
	if u.Variants != nil {
		full, square, banner, story = &u.Variants.FullRes, &u.Variants.Square, &u.Variants.Banner, &u.Variants.Story
	}
	query := `
		UPDATE generated_photos
		SET status = $2, url_4k = $3, url_instagram = $4, url_facebook = $5, url_whatsapp = $6,
		    error_message = $7, generation_completed_at = $8
		WHERE id = $1 AND status = 'generating'
	`
	tag, err := r.db.Exec(ctx, query, id, u.Status, full, square, banner, story, u.ErrorMessage, u.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update generated photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("generated photo %s: %w", id, ErrNotGenerating)
	}
	return nil
}

func (r *ArtifactRepository) Get(ctx context.Context, id uuid.UUID) (models.GeneratedArtifact, error) {
	row := r.db.QueryRow(ctx, `SELECT `+artifactColumns+` FROM generated_photos WHERE id = $1`, id)
	a, err := scanArtifact(row)
	if err != nil {
		return models.GeneratedArtifact{}, fmt.Errorf("generated photo %s: %w", id, err)
	}
	return a, nil
}

func (r *ArtifactRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.GeneratedArtifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM generated_photos WHERE order_id = $1 ORDER BY generation_started_at`
	return r.list(ctx, query, orderID)
}

// ListStale returns artifacts that started before the cutoff and are still generating.
func (r *ArtifactRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.GeneratedArtifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM generated_photos
		WHERE status = 'generating' AND generation_started_at < $1
		ORDER BY generation_started_at
		LIMIT $2`
	return r.list(ctx, query, before, limit)
}

func (r *ArtifactRepository) list(ctx context.Context, query string, args ...any) ([]models.GeneratedArtifact, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated photos: %w", err)
	}
	defer rows.Close()

	var artifacts []models.GeneratedArtifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row pgx.Row) (models.GeneratedArtifact, error) {
	var (
		a                           models.GeneratedArtifact
		full, square, banner, story *string
	)
	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.ThemeID,
		&a.Status,
		&a.ModelUsed,
		&full,
		&square,
		&banner,
		&story,
		&a.ErrorMessage,
		&a.StartedAt,
		&a.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GeneratedArtifact{}, models.ErrNotFound
	}
	if err != nil {
		return models.GeneratedArtifact{}, err
	}
	a.Variants = variantsFromColumns(full, square, banner, story)
	if err := a.Validate(); err != nil {
		return models.GeneratedArtifact{}, err
	}
	return a, nil
}

// variantsFromColumns yields nil unless any url column is set, so a partial
// row surfaces as a decode error instead of silently dropping urls.
func variantsFromColumns(full, square, banner, story *string) *models.VariantURLs {
	if full == nil && square == nil && banner == nil && story == nil {
		return nil
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return &models.VariantURLs{
		FullRes: deref(full),
		Square:  deref(square),
		Banner:  deref(banner),
		Story:   deref(story),
	}
}
