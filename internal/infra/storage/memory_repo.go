package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/events"
)

// MemorySaveRepository keeps save blobs in process memory.
type MemorySaveRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemorySaveRepository() *MemorySaveRepository {
	return &MemorySaveRepository{blobs: make(map[string][]byte)}
}

func (r *MemorySaveRepository) Load(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (r *MemorySaveRepository) Store(_ context.Context, key string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (r *MemorySaveRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, key)
	return nil
}

// MemoryEventRepository keeps the most recent ledger entries in process
// memory. Older entries are dropped once the limit is reached.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events []GameEvent
	limit  int
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{limit: events.DefaultWindow}
}

// SetLimit caps how many entries are kept. n <= 0 keeps the default.
func (r *MemoryEventRepository) SetLimit(n int) {
	if n <= 0 {
		n = events.DefaultWindow
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = n
	r.trim()
}

func (r *MemoryEventRepository) Append(_ context.Context, event GameEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.trim()
	return nil
}

func (r *MemoryEventRepository) trim() {
	if over := len(r.events) - r.limit; over > 0 {
		clear(r.events[:over])
		r.events = r.events[over:]
	}
}

func (r *MemoryEventRepository) filter(keep func(GameEvent) bool) []GameEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []GameEvent
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (r *MemoryEventRepository) GetByGameID(_ context.Context, gameID string) ([]GameEvent, error) {
	return r.filter(func(e GameEvent) bool { return e.GameID == gameID }), nil
}

func (r *MemoryEventRepository) GetByEventType(_ context.Context, gameID string, eventType string) ([]GameEvent, error) {
	return r.filter(func(e GameEvent) bool {
		return e.GameID == gameID && e.EventType == eventType
	}), nil
}

func (r *MemoryEventRepository) GetSince(_ context.Context, gameID string, since time.Time) ([]GameEvent, error) {
	return r.filter(func(e GameEvent) bool {
		return e.GameID == gameID && !e.Timestamp.Before(since)
	}), nil
}
