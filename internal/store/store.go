// Package store persists completed candidate records.
//
// Every backend keeps the records in save order and stamps each one with the
// UTC time of the save. A record is never updated once written.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("record store is closed")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// RecordStore appends candidate records and lists them back in save order.
type RecordStore interface {
	// Append stamps rec with the current UTC time, persists it and returns the stamped copy.
	Append(ctx context.Context, rec candidate.Record) (candidate.Record, error)
	// List returns all persisted records, oldest first.
	List(ctx context.Context) ([]candidate.Record, error)
	Close() error
}

// Clock returns the current time. Tests replace it to get stable timestamps.
type Clock func() time.Time

// Open creates the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (RecordStore, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Path, logger), nil
	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendS3:
		s, err := OpenS3(ctx, cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
