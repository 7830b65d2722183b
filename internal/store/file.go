package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

// FileStore keeps every record in one pretty-printed JSON array.
type FileStore struct {
	mu     sync.Mutex
	path   string
	now    Clock
	logger *zap.Logger
	closed bool
}

// NewFileStore returns a store backed by the JSON file at path. The file is created on first save.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		now:    time.Now,
		logger: logging.OrNop(logger).Named("store"),
	}
}

// WithClock replaces the time source.
func (s *FileStore) WithClock(now Clock) *FileStore {
	s.now = now
	return s
}

// Append reads the current array, appends rec and rewrites the file through a temp file and rename.
// A missing or unreadable array is treated as empty.
func (s *FileStore) Append(_ context.Context, rec candidate.Record) (candidate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return candidate.Record{}, ErrClosed
	}

	records, err := s.load()
	if err != nil {
		return candidate.Record{}, err
	}

	stamped := rec.Stamp(s.now())
	records = append(records, stamped)

	if err := s.write(records); err != nil {
		return candidate.Record{}, err
	}

	s.logger.Info("saved candidate record", zap.String("path", s.path), zap.Int("total", len(records)))
	return stamped, nil
}

// List returns the records currently on disk.
func (s *FileStore) List(_ context.Context) ([]candidate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.load()
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) load() ([]candidate.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []candidate.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var records []candidate.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("existing record file is not a valid array, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return []candidate.Record{}, nil
	}
	if records == nil {
		records = []candidate.Record{}
	}
	return records, nil
}

func (s *FileStore) write(records []candidate.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
