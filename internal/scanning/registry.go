package scanning

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/portscope/internal/errors"
)

// Registry tracks the cancellation flag of every running scan. Entries are
// created when a scan starts and removed when it finishes, however it ends.
type Registry interface {
	// Register creates a not-cancelled entry for scanID. It fails with a
	// CONFLICT error if the id is already in use.
	Register(ctx context.Context, scanID string) error

	// Cancel sets the flag for scanID. Unknown ids are ignored.
	Cancel(ctx context.Context, scanID string) error

	// Cancelled reports whether scanID has been cancelled. Unknown ids are
	// not cancelled.
	Cancelled(ctx context.Context, scanID string) bool

	// Remove deletes the entry for scanID.
	Remove(ctx context.Context, scanID string) error

	// Active returns the ids of all registered scans, sorted.
	Active(ctx context.Context) ([]string, error)
}

type registryEntry struct {
	cancelled atomic.Bool
	started   time.Time
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mutex sync.RWMutex
	scans map[string]*registryEntry
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		scans: make(map[string]*registryEntry),
	}
}

// Register implements Registry.
func (r *MemoryRegistry) Register(_ context.Context, scanID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.scans[scanID]; exists {
		return errors.ErrScanConflict(scanID)
	}
	r.scans[scanID] = &registryEntry{started: time.Now()}
	return nil
}

// Cancel implements Registry.
func (r *MemoryRegistry) Cancel(_ context.Context, scanID string) error {
	r.mutex.RLock()
	entry, exists := r.scans[scanID]
	r.mutex.RUnlock()

	if exists {
		entry.cancelled.Store(true)
	}
	return nil
}

// Cancelled implements Registry.
func (r *MemoryRegistry) Cancelled(_ context.Context, scanID string) bool {
	r.mutex.RLock()
	entry, exists := r.scans[scanID]
	r.mutex.RUnlock()

	return exists && entry.cancelled.Load()
}

// Remove implements Registry.
func (r *MemoryRegistry) Remove(_ context.Context, scanID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.scans, scanID)
	return nil
}

// Active implements Registry.
func (r *MemoryRegistry) Active(_ context.Context) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.scans))
	for id := range r.scans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of registered scans.
func (r *MemoryRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.scans)
}

// Started returns when scanID was registered.
func (r *MemoryRegistry) Started(scanID string) (time.Time, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entry, exists := r.scans[scanID]
	if !exists {
		return time.Time{}, false
	}
	return entry.started, true
}
