package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-generator/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/patrickmn/go-cache"
)

type ThemeRepository struct {
	db DB
}

func NewThemeRepository(db DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

func (r *ThemeRepository) Get(ctx context.Context, id string) (models.Theme, error) {
	var t models.Theme
	err := r.db.QueryRow(ctx, `SELECT id, name_en, prompt FROM themes WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.Prompt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Theme{}, fmt.Errorf("theme %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Theme{}, fmt.Errorf("theme %s: %w", id, err)
	}
	if err := t.Validate(); err != nil {
		return models.Theme{}, err
	}
	return t, nil
}

func (r *ThemeRepository) List(ctx context.Context) ([]models.Theme, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name_en, prompt FROM themes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		var t models.Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.Prompt); err != nil {
			return nil, err
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

type themeSource interface {
	Get(ctx context.Context, id string) (models.Theme, error)
}

// CachedThemes memoizes theme lookups. Themes are immutable reference data.
type CachedThemes struct {
	source themeSource
	cache  *cache.Cache
}

func NewCachedThemes(source themeSource, ttl time.Duration) *CachedThemes {
	return &CachedThemes{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *CachedThemes) Get(ctx context.Context, id string) (models.Theme, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(models.Theme), nil
	}
	t, err := c.source.Get(ctx, id)
	if err != nil {
		return models.Theme{}, err
	}
	c.cache.SetDefault(id, t)
	return t, nil
}
