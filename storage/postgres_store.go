package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"melhor-casa/models"
)

const (
	upsertBatchSize = 50
	propertyColumns = 14
)

// deleteMissingQuery drops every row whose link is absent from $1. An empty
// array clears the table.
const deleteMissingQuery = `DELETE FROM properties WHERE NOT (link = ANY($1))`

// PostgresStore mirrors triaged properties into PostgreSQL, keyed by link.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id            TEXT         PRIMARY KEY,
			link          TEXT         UNIQUE NOT NULL,
			name          TEXT         NOT NULL DEFAULT '',
			price         TEXT         NOT NULL DEFAULT '',
			price_value   BIGINT       NOT NULL DEFAULT 0,
			area_value    BIGINT       NOT NULL DEFAULT 0,
			location      TEXT         NOT NULL DEFAULT '',
			neighborhood  TEXT         NOT NULL DEFAULT '',
			site          TEXT         NOT NULL DEFAULT '',
			latitude      DOUBLE PRECISION,
			longitude     DOUBLE PRECISION,
			geohash       TEXT         NOT NULL DEFAULT '',
			tags          TEXT[]       NOT NULL DEFAULT '{}',
			status        VARCHAR(16)  NOT NULL DEFAULT 'unseen',
			updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_properties_price   ON properties(price_value);
		CREATE INDEX IF NOT EXISTS idx_properties_status  ON properties(status);
		CREATE INDEX IF NOT EXISTS idx_properties_geohash ON properties(geohash);
	`)
	return err
}

// Write upserts props in batches. A link already stored keeps its row and
// takes the new status, tags and derived values.
func (ps *PostgresStore) Write(props []models.Property) error {
	return ps.WriteContext(context.Background(), props)
}

// WriteContext is Write with a context.
func (ps *PostgresStore) WriteContext(ctx context.Context, props []models.Property) error {
	props = uniqueByLink(props)
	for i := 0; i < len(props); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(props) {
			end = len(props)
		}
		if err := ps.upsertBatch(ctx, props[i:end]); err != nil {
			return fmt.Errorf("postgres: upsert: %w", err)
		}
	}
	return nil
}

// DeleteMissing removes the rows whose link is not in links and reports how
// many were removed.
func (ps *PostgresStore) DeleteMissing(ctx context.Context, links []string) (int64, error) {
	if links == nil {
		links = []string{}
	}
	res, err := ps.db.ExecContext(ctx, deleteMissingQuery, pq.Array(links))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete missing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: delete missing: %w", err)
	}
	return n, nil
}

// Sync makes the table hold exactly props: they are upserted and rows for
// links no longer present are deleted.
func (ps *PostgresStore) Sync(ctx context.Context, props []models.Property) (int64, error) {
	props = uniqueByLink(props)
	if err := ps.WriteContext(ctx, props); err != nil {
		return 0, err
	}
	return ps.DeleteMissing(ctx, linksOf(props))
}

func linksOf(props []models.Property) []string {
	links := make([]string, 0, len(props))
	for _, p := range props {
		links = append(links, p.Link)
	}
	return links
}

// uniqueByLink keeps the last record per link; one INSERT cannot touch the
// same conflict key twice.
func uniqueByLink(props []models.Property) []models.Property {
	index := make(map[string]int, len(props))
	out := make([]models.Property, 0, len(props))
	for _, p := range props {
		if i, ok := index[p.Link]; ok {
			out[i] = p
			continue
		}
		index[p.Link] = len(out)
		out = append(out, p)
	}
	return out
}

func upsertQuery(rows int) string {
	valueStrings := make([]string, 0, rows)
	for idx := 0; idx < rows; idx++ {
		base := idx * propertyColumns
		placeholders := make([]string, propertyColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
	}

	return fmt.Sprintf(`
		INSERT INTO properties (id, link, name, price, price_value, area_value, location,
			neighborhood, site, latitude, longitude, geohash, tags, status)
		VALUES %s
		ON CONFLICT (link) DO UPDATE SET
			status      = EXCLUDED.status,
			tags        = EXCLUDED.tags,
			price_value = EXCLUDED.price_value,
			area_value  = EXCLUDED.area_value,
			latitude    = EXCLUDED.latitude,
			longitude   = EXCLUDED.longitude,
			geohash     = EXCLUDED.geohash,
			updated_at  = NOW()
	`, strings.Join(valueStrings, ","))
}

func (ps *PostgresStore) upsertBatch(ctx context.Context, batch []models.Property) error {
	args := make([]interface{}, 0, len(batch)*propertyColumns)
	for _, p := range batch {
		status := p.Status
		if status == "" {
			status = models.StatusUnseen
		}
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		args = append(args,
			p.ID, p.Link, p.Name, p.Price, p.PriceValue, p.AreaValue, p.Location,
			p.Neighborhood, p.Site, p.Latitude, p.Longitude, p.Geohash, pq.Array(tags), string(status))
	}

	_, err := ps.db.ExecContext(ctx, upsertQuery(len(batch)), args...)
	return err
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// FetchAll retrieves all stored properties, used by the insights command.
func (ps *PostgresStore) FetchAll(ctx context.Context) ([]models.Property, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, link, name, price, price_value, area_value, location,
		       neighborhood, site, latitude, longitude, geohash, tags, status
		FROM properties
		ORDER BY updated_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		var p models.Property
		var lat, lon sql.NullFloat64
		var status string
		if err := rows.Scan(
			&p.ID, &p.Link, &p.Name, &p.Price, &p.PriceValue, &p.AreaValue, &p.Location,
			&p.Neighborhood, &p.Site, &lat, &lon, &p.Geohash, pq.Array(&p.Tags), &status,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if lat.Valid && lon.Valid {
			p.Latitude, p.Longitude = &lat.Float64, &lon.Float64
		}
		p.Status = models.Status(status)
		props = append(props, p)
	}
	return props, rows.Err()
}
