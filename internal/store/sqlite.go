package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS candidates (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	payload  TEXT NOT NULL,
	saved_at TEXT NOT NULL
)`

// SQLiteStore keeps one row per record with the JSON document in payload.
type SQLiteStore struct {
	db  *sql.DB
	now Clock
}

// OpenSQLite opens (or creates) the database at path and ensures the table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// 单连接即可，避免 SQLITE_BUSY。
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create candidates table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// WithClock replaces the time source.
func (s *SQLiteStore) WithClock(now Clock) *SQLiteStore {
	s.now = now
	return s
}

func (s *SQLiteStore) Append(ctx context.Context, rec candidate.Record) (candidate.Record, error) {
	stamped := rec.Stamp(s.now())

	payload, err := json.Marshal(stamped)
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (payload, saved_at) VALUES (?, ?)`,
		string(payload), stamped.CompletedAt.Format(candidate.TimestampLayout),
	)
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return stamped, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]candidate.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM candidates ORDER BY id`)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
