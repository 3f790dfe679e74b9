package notify

import (
	"context"
	"sync"
	"time"
)

// DedupTTL is how long a handled event id is remembered.
const DedupTTL = 48 * time.Hour

// Deduper remembers which event ids were already handled. Consumers check
// Seen before handling and Mark only once the handling has committed.
type Deduper interface {
	// Seen reports whether id was already handled.
	Seen(ctx context.Context, id string) (bool, error)
	// Mark records id as handled.
	Mark(ctx context.Context, id string) error
}

// MemoryDeduper is a process-local Deduper.
type MemoryDeduper struct {
	TTL time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDeduper returns a MemoryDeduper that forgets ids after ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{TTL: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// Seen implements Deduper.
func (m *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, at := range m.seen {
		if now.Sub(at) > m.TTL {
			delete(m.seen, k)
		}
	}
	_, ok := m.seen[id]
	return ok, nil
}

// Mark implements Deduper.
func (m *MemoryDeduper) Mark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[id] = m.now()
	return nil
}
