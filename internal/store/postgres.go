package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS chat_messages (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		content    TEXT NOT NULL,
		author     TEXT NOT NULL,
		type_code  SMALLINT NOT NULL,
		owner_id   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)
`

// Postgres stores records in a shared PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenPostgres(ctx context.Context, databaseURL string, log zerolog.Logger) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("postgres store ready")
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) SaveMessage(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO chat_messages (id, content, author, type_code, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := p.pool.Exec(ctx, query, r.ID, r.Content, r.Author, r.TypeCode, r.OwnerID, r.CreatedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) FetchLatest(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, content, author, type_code, owner_id, created_at FROM (
			SELECT * FROM chat_messages ORDER BY seq DESC LIMIT $1
		) latest ORDER BY seq ASC
	`
	var arg any = limit
	if limit <= 0 {
		arg = nil // LIMIT NULL is LIMIT ALL
	}
	rows, err := p.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var typeCode int16
		if err := rows.Scan(&r.ID, &r.Content, &r.Author, &typeCode, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TypeCode = int(typeCode)
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Postgres) Health(ctx context.Context) bool {
	return p.pool.Ping(ctx) == nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
