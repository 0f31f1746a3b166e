// Package inmemory keeps the most recent uploads in fixed size rings.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/gnss-relay/model"
	"github.com/and161185/gnss-relay/storage"
)

const (
	DefaultCapacity = 100000
	navCapacity     = 4096
	seenCapacity    = 65536
)

// ring is a fixed size FIFO that overwrites its oldest element.
type ring[T any] struct {
	items []T
	next  int
	full  bool
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.items[r.next] = v
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// last returns up to n newest items, oldest first.
func (r *ring[T]) last(n int) []T {
	size := r.len()
	if n > size {
		n = size
	}
	out := make([]T, n)
	start := r.next - n
	if start < 0 {
		start += len(r.items)
	}
	for i := 0; i < n; i++ {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

// MemStorage is a storage.Storage that forgets the oldest records once full.
type MemStorage struct {
	mu           sync.RWMutex
	measurements ring[model.StoredMeasurement]
	nav          ring[model.StoredNavMessage]

	seen      map[string]struct{}
	seenOrder ring[string]

	now func() time.Time
}

var _ storage.Storage = (*MemStorage)(nil)

// NewMemStorage creates a store holding at most capacity measurements.
func NewMemStorage(capacity int) *MemStorage {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemStorage{
		measurements: newRing[model.StoredMeasurement](capacity),
		nav:          newRing[model.StoredNavMessage](navCapacity),
		seen:         make(map[string]struct{}),
		seenOrder:    newRing[string](seenCapacity),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// markSeen records batchID and reports whether it was new. Caller holds mu.
func (store *MemStorage) markSeen(batchID string) bool {
	if batchID == "" {
		return true
	}
	if _, ok := store.seen[batchID]; ok {
		return false
	}
	if store.seenOrder.full {
		delete(store.seen, store.seenOrder.items[store.seenOrder.next])
	}
	store.seenOrder.push(batchID)
	store.seen[batchID] = struct{}{}
	return true
}

func (store *MemStorage) SaveMeasurements(ctx context.Context, batchID string, records []model.Measurement) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if len(records) == 0 {
		return 0, false, storage.ErrEmptyBatch
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if !store.markSeen(batchID) {
		return 0, true, nil
	}
	at := store.now()
	for _, r := range records {
		store.measurements.push(model.StoredMeasurement{BatchID: batchID, ReceivedAt: at, Record: r})
	}
	return len(records), false, nil
}

func (store *MemStorage) SaveNavMessage(ctx context.Context, batchID string, msg model.NavMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if !store.markSeen(batchID) {
		return true, nil
	}
	store.nav.push(model.StoredNavMessage{BatchID: batchID, ReceivedAt: store.now(), Message: msg})
	return false, nil
}

func (store *MemStorage) Recent(ctx context.Context, limit int) ([]model.StoredMeasurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.measurements.last(storage.ClampLimit(limit)), nil
}

func (store *MemStorage) RecentNav(ctx context.Context, limit int) ([]model.StoredNavMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.nav.last(storage.ClampLimit(limit)), nil
}

// Len returns the number of measurements held.
func (store *MemStorage) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.measurements.len()
}

func (store *MemStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}
