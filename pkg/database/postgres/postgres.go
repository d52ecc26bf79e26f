package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewClient(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

var migrations = []struct {
	name  string
	query string
}{
	{"orders", `
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		package_tier TEXT NOT NULL,
		amount BIGINT NOT NULL,
		status TEXT NOT NULL,
		payment_reference TEXT NOT NULL UNIQUE,
		transaction_id TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"uploaded_photos", `
	CREATE TABLE IF NOT EXISTS uploaded_photos (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		object_id TEXT NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS uploaded_photos_order_idx ON uploaded_photos (order_id);`},
	{"themes", `
	CREATE TABLE IF NOT EXISTS themes (
		id TEXT PRIMARY KEY,
		name_en TEXT NOT NULL,
		prompt TEXT NOT NULL
	);`},
	{"generated_photos", `
	CREATE TABLE IF NOT EXISTS generated_photos (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		theme_id TEXT NOT NULL REFERENCES themes(id),
		status TEXT NOT NULL,
		model_used TEXT NOT NULL,
		url_4k TEXT,
		url_instagram TEXT,
		url_facebook TEXT,
		url_whatsapp TEXT,
		error_message TEXT NOT NULL DEFAULT '',
		generation_started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		generation_completed_at TIMESTAMP WITH TIME ZONE
	);
	CREATE INDEX IF NOT EXISTS generated_photos_order_idx ON generated_photos (order_id);
	CREATE INDEX IF NOT EXISTS generated_photos_status_idx ON generated_photos (status, generation_started_at);`},
}

// RunMigrations creates necessary tables if they don't exist
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", m.name, err)
		}
	}
	return nil
}

var defaultThemes = []struct {
	id, name, prompt string
}{
	{"christmas-living-room", "Christmas Living Room", "A warm living room decorated for Christmas, a tall pine tree with golden lights, wrapped gifts and a glowing fireplace"},
	{"snowy-village", "Snowy Village", "An evening street in a snowy European village, string lights between houses, soft snowfall"},
	{"tropical-christmas", "Tropical Christmas", "A beach at sunset with a palm tree decorated with Christmas ornaments and lanterns"},
	{"family-dinner", "Family Dinner", "A festive dining table with candles, red and gold tableware and a Christmas wreath on the wall"},
}

// SeedThemes inserts the default themes. Existing rows are left untouched.
func SeedThemes(ctx context.Context, pool *pgxpool.Pool) error {
	for _, t := range defaultThemes {
		_, err := pool.Exec(ctx, `
			INSERT INTO themes (id, name_en, prompt) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`, t.id, t.name, t.prompt)
		if err != nil {
			return fmt.Errorf("failed to seed theme %s: %w", t.id, err)
		}
	}
	return nil
}
