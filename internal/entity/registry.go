package entity

import (
	"hash/fnv"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// shardCount is the number of independent registry shards. Power of two so
// the shard index is a cheap mask of the id hash.
const shardCount = 16

// Registry is the concurrent-safe in-memory store of registered entities.
//
// State is sharded by id hash: operations on different ids proceed on
// different shards without contending, while operations on the same id
// serialize on one shard mutex. The registry is purely in-memory and is
// rebuilt from scratch on process restart.
//
// Failure semantics: duplicate registration and missing-id operations are
// reported as boolean/ok returns, never as errors. The registry is a data
// structure, not an error-propagating service.
//
// All public methods are thread-safe. Entities are deep-copied on the way
// in and out, so callers can never mutate registry state through a
// returned pointer.
type Registry struct {
	shards [shardCount]registryShard
	logger Logger
}

type registryShard struct {
	mu      sync.RWMutex
	entries map[string]*Entity
}

// NewRegistry creates an empty entity registry.
func NewRegistry() *Registry {
	r := &Registry{logger: noopLogger{}}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*Entity)
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *Registry) shardFor(id string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(id)) //nolint:errcheck // fnv never fails
	return &r.shards[h.Sum32()&(shardCount-1)]
}

// Register inserts the entity iff its id is not already present.
// Returns false without any mutation when the id exists; concurrent calls
// with the same id resolve so exactly one insertion wins.
//
// The caller is expected to have normalized and validated the entity first.
func (r *Registry) Register(e *Entity) bool {
	if e == nil || e.ID == "" {
		return false
	}

	stored := e.DeepCopy()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	// A fresh registration is never running.
	stored.IsRunning = false
	stored.StartedAt = nil

	s := r.shardFor(e.ID)
	s.mu.Lock()
	if _, exists := s.entries[e.ID]; exists {
		s.mu.Unlock()
		return false
	}
	s.entries[e.ID] = stored
	s.mu.Unlock()

	r.logger.Debug("entity registered", "id", e.ID, "kind", e.Kind, "mode", e.Mode)
	return true
}

// Unregister removes the entity and returns true iff it was present.
// Safe to call while a start/stop for the same id is in flight: the map
// entry ends up fully absent regardless of which writer goes last.
func (r *Registry) Unregister(id string) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	_, existed := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if existed {
		r.logger.Debug("entity unregistered", "id", id)
	}
	return existed
}

// Get retrieves a deep copy of the entity by id.
func (r *Registry) Get(id string) (*Entity, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	e, ok := s.entries[id]
	var cpy *Entity
	if ok {
		cpy = e.DeepCopy()
	}
	s.mu.RUnlock()
	return cpy, ok
}

// List returns deep copies of all registered entities.
// Iteration order is not significant.
func (r *Registry) List() []Entity {
	var out []Entity
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			out = append(out, *e.DeepCopy())
		}
		s.mu.RUnlock()
	}
	return out
}

// SetRunning atomically sets the running flag and the started-at stamp
// together: a concurrent reader never observes one changed without the
// other. Returns false (no-op) when the id is absent.
func (r *Registry) SetRunning(id string, running bool) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	// Replace with an updated copy so a reader holding a previously
	// returned copy never sees a half-applied update.
	updated := e.DeepCopy()
	updated.IsRunning = running
	if running {
		now := time.Now().UTC()
		updated.StartedAt = &now
	} else {
		updated.StartedAt = nil
	}
	s.entries[id] = updated
	s.mu.Unlock()

	r.logger.Debug("entity running state changed", "id", id, "running", running)
	return true
}

// SetCallbackID updates the stored correlation tag for an entity.
// Returns false when the id is absent.
func (r *Registry) SetCallbackID(id, callbackID string) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		updated := e.DeepCopy()
		updated.CallbackID = callbackID
		s.entries[id] = updated
	}
	s.mu.Unlock()
	return ok
}

// UpdateNotification replaces the notification spec of a registered task.
// Returns false when the id is absent or the entity is not a task.
func (r *Registry) UpdateNotification(id string, n *NotificationSpec) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.Config.Task == nil {
		s.mu.Unlock()
		return false
	}
	updated := e.DeepCopy()
	updated.Config.Task.Notification = n
	s.entries[id] = updated
	s.mu.Unlock()

	r.logger.Debug("entity notification updated", "id", id)
	return true
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// HasRunning reports whether any registered entity is currently running.
// The disposal sweep consults this before tearing down the hosting
// execution context.
func (r *Registry) HasRunning() bool {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			if e.IsRunning {
				s.mu.RUnlock()
				return true
			}
		}
		s.mu.RUnlock()
	}
	return false
}

// HasRunningKind reports whether any entity of the given kind is running.
func (r *Registry) HasRunningKind(k Kind) bool {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			if e.Kind == k && e.IsRunning {
				s.mu.RUnlock()
				return true
			}
		}
		s.mu.RUnlock()
	}
	return false
}

// Clear removes every entity. Used by the disposal sweep.
func (r *Registry) Clear() {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]*Entity)
		s.mu.Unlock()
	}
	r.logger.Debug("registry cleared")
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	Total   int
	Running int
	ByKind  map[Kind]int
	ByMode  map[Mode]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	stats := Stats{
		ByKind: make(map[Kind]int),
		ByMode: make(map[Mode]int),
	}
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			stats.Total++
			if e.IsRunning {
				stats.Running++
			}
			stats.ByKind[e.Kind]++
			stats.ByMode[e.Mode]++
		}
		s.mu.RUnlock()
	}
	return stats
}
