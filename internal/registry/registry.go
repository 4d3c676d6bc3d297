// Package registry persists the set of patent identifiers flagged to be
// bypassed.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// FileName is the registry file kept under the base directory.
const FileName = "skipped_patents.json"

// Registry is a set of identifiers mirrored to a JSON array on disk. The
// in-memory set is authoritative; failed writes are logged and ignored.
type Registry struct {
	mu     sync.RWMutex
	path   string
	ids    map[string]struct{}
	logger *zap.Logger
}

// Load reads the registry at path. A missing or malformed file yields an
// empty registry.
func Load(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		path:   path,
		ids:    make(map[string]struct{}),
		logger: logger,
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("skip registry unreadable; starting empty", zap.String("path", path), zap.Error(err))
		}
		return r
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		logger.Warn("skip registry malformed; starting empty", zap.String("path", path), zap.Error(err))
		return r
	}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Add registers id and persists the set. It reports whether the set changed.
func (r *Registry) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	r.saveLocked()
	return true
}

// Remove unregisters id and persists the set. It reports whether the set changed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	r.saveLocked()
	return true
}

// List returns the registered identifiers in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Registry) sortedLocked() []string {
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) saveLocked() {
	if err := r.writeLocked(); err != nil {
		r.logger.Warn("skip registry save failed", zap.String("path", r.path), zap.Error(err))
	}
}

func (r *Registry) writeLocked() error {
	payload, err := json.Marshal(r.sortedLocked())
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".skipped-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp registry: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
