package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

// pgQuerier is the subset of *pgxpool.Pool used by PostgresRecordStore
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRecordStore saves records into a PostgreSQL table, one row per source page
type PostgresRecordStore struct {
	db    pgQuerier
	table string // Sanitized identifier
	log   *logrus.Entry
}

// NewPostgresRecordStore connects to dsn and ensures the record table exists
func NewPostgresRecordStore(ctx context.Context, dsn, table string, log *logrus.Entry) (*PostgresRecordStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %w", utils.ErrDatabase, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %w", utils.ErrDatabase, err)
	}

	store := newPostgresRecordStore(pool, table, log)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newPostgresRecordStore(db pgQuerier, table string, log *logrus.Entry) *PostgresRecordStore {
	return &PostgresRecordStore{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		log:   log,
	}
}

// EnsureSchema creates the record table if it does not exist
func (s *PostgresRecordStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			season TEXT NOT NULL DEFAULT '',
			img TEXT NOT NULL DEFAULT '',
			family TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			site_chars JSONB,
			plant_traits JSONB,
			special_cons JSONB,
			growing_infos JSONB,
			varieties JSONB,
			crawled_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: creating table %s: %w", utils.ErrDatabase, s.table, err)
	}
	return nil
}

// Save implements RecordStore. Saving a source again updates its row and keeps its id.
func (s *PostgresRecordStore) Save(ctx context.Context, rec *models.Record) (string, error) {
	grouped := make([][]byte, 0, 5)
	for _, v := range []any{rec.SiteCharacteristics, rec.PlantTraits, rec.SpecialConsiderations, rec.GrowingInfo, rec.Varieties} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %w: encoding JSON column for %s: %w", utils.ErrSave, utils.ErrParsing, rec.Source, err)
		}
		grouped = append(grouped, b)
	}

	query := `
		INSERT INTO ` + s.table + ` (source, name, season, img, family, description,
			site_chars, plant_traits, special_cons, growing_infos, varieties, crawled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (source) DO UPDATE SET
			name = EXCLUDED.name,
			season = EXCLUDED.season,
			img = EXCLUDED.img,
			family = EXCLUDED.family,
			description = EXCLUDED.description,
			site_chars = EXCLUDED.site_chars,
			plant_traits = EXCLUDED.plant_traits,
			special_cons = EXCLUDED.special_cons,
			growing_infos = EXCLUDED.growing_infos,
			varieties = EXCLUDED.varieties,
			crawled_at = EXCLUDED.crawled_at
		RETURNING id;
	`

	var id int64
	err := s.db.QueryRow(ctx, query,
		rec.Source,
		rec.Name,
		rec.Season,
		rec.Image,
		rec.Family,
		rec.Description,
		grouped[0],
		grouped[1],
		grouped[2],
		grouped[3],
		grouped[4],
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: %w: inserting %s: %w", utils.ErrSave, utils.ErrDatabase, rec.Source, err)
	}

	s.log.WithFields(logrus.Fields{"source": rec.Source, "record_id": id}).Debug("Record saved")
	return strconv.FormatInt(id, 10), nil
}

// Close implements RecordStore
func (s *PostgresRecordStore) Close() error {
	s.db.Close()
	return nil
}
