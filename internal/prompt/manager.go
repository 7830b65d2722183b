package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Manager hands out the active prompt set and swaps it when the source file changes.
type Manager struct {
	current atomic.Pointer[Set]
	path    string
	logger  *zap.Logger
}

// NewManager returns a manager serving the set loaded from path, or the embedded
// default when path is empty.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		set = loaded
	}

	m := &Manager{path: path, logger: logger.Named("prompt")}
	m.current.Store(set)
	m.logger.Info("prompt set loaded", zap.String("version", set.Version), zap.String("path", path))
	return m, nil
}

// Static wraps a fixed prompt set.
func Static(set *Set) *Manager {
	m := &Manager{logger: zap.NewNop()}
	m.current.Store(set)
	return m
}

// Current returns the active prompt set.
func (m *Manager) Current() *Set {
	return m.current.Load()
}

// Reload re-reads the source file. A broken file leaves the active set untouched.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	set, err := LoadFile(m.path)
	if err != nil {
		return err
	}
	prev := m.current.Swap(set)
	m.logger.Info("prompt set reloaded",
		zap.String("from", prev.Version),
		zap.String("to", set.Version))
	return nil
}

// Watch reloads the prompt file on every write until ctx is done.
// The parent directory is watched so editors that replace the file are picked up.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.path, err)
	}

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := m.Reload(); err != nil {
				m.logger.Warn("prompt reload rejected", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}
