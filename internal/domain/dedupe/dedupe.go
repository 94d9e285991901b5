// Package dedupe tracks submission idempotency keys so a resubmitted match
// (double click, client retry) is recorded once.
package dedupe

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrDuplicate reports a submission whose key was already claimed.
var ErrDuplicate = errors.New("submission already recorded")

// defaultMaxKeys bounds the remembered keys when no option is given.
const defaultMaxKeys = 50_000

// Tracker records claimed submission keys.
type Tracker interface {
	// Claim atomically checks whether key was already claimed and claims it if not.
	// Returns true if the key was already claimed.
	Claim(ctx context.Context, key string) bool

	// Release forgets a key so a failed submission can be retried.
	Release(ctx context.Context, key string)

	// Size returns the number of remembered keys.
	Size() int
}

// memoryTracker remembers up to maxKeys keys and forgets the oldest first.
// maxKeys <= 0 means unbounded.
type memoryTracker struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List // front = newest
	maxKeys int
}

// NewMemoryTracker creates an in-memory tracker with configuration options.
func NewMemoryTracker(opts ...Option) Tracker {
	t := &memoryTracker{
		keys:    make(map[string]*list.Element),
		order:   list.New(),
		maxKeys: defaultMaxKeys,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *memoryTracker) Claim(_ context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[key]; ok {
		return true
	}
	if t.maxKeys > 0 && t.order.Len() >= t.maxKeys {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.keys, oldest.Value.(string))
	}
	t.keys[key] = t.order.PushFront(key)
	return false
}

func (t *memoryTracker) Release(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.keys[key]; ok {
		t.order.Remove(el)
		delete(t.keys, key)
	}
}

func (t *memoryTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
