// Package realtime consumes the backend's passive update channels. Nothing
// here is required for correctness: views still refetch to see changes.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Update is one payload received from a feed.
type Update struct {
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Feed is a long running consumer that appends updates to a Buffer until its
// context ends.
type Feed interface {
	Run(ctx context.Context) error
}

// Buffer is an append-only, bounded list of updates. When full the oldest
// entries are dropped.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	items    []Update
	total    int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &Buffer{capacity: capacity}
}

func (b *Buffer) Append(u Update) {
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, u)
	if len(b.items) > b.capacity {
		b.items = append([]Update(nil), b.items[len(b.items)-b.capacity:]...)
	}
	b.total++
}

// Snapshot returns a copy of the buffered updates, oldest first.
func (b *Buffer) Snapshot() []Update {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Update(nil), b.items...)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Total counts every update ever appended, including dropped ones.
func (b *Buffer) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}
