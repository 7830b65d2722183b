package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS candidates (
	seq      BIGSERIAL PRIMARY KEY,
	id       UUID NOT NULL UNIQUE,
	payload  JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps records in a candidates table.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  Clock
}

// OpenPostgres connects, verifies the connection and ensures the table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create candidates table: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Append inserts rec and returns the stamped copy.
func (s *PostgresStore) Append(ctx context.Context, rec candidate.Record) (candidate.Record, error) {
	stamped := rec.Stamp(s.now())

	payload, err := json.Marshal(stamped)
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO candidates (id, payload, saved_at) VALUES ($1, $2, $3)`,
		uuid.New(), payload, stamped.CompletedAt,
	)
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return stamped, nil
}

// List returns every record ordered by insertion.
func (s *PostgresStore) List(ctx context.Context) ([]candidate.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload::text FROM candidates ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []candidate.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec candidate.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
