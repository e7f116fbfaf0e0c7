package locking

import (
	"errors"
	"fmt"
	"sync"
)

var ErrHeld = errors.New("lock: already held")

// Registry tracks which files are held by an open handle in this process.
// A second open of the same file must fail instead of sharing a writer.
type Registry struct {
	mu   sync.Mutex
	held map[any]struct{}
}

func NewRegistry() *Registry {
	return &Registry{held: make(map[any]struct{})}
}

// Acquire marks key as held. key must be comparable.
func (r *Registry) Acquire(key any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[key]; ok {
		return fmt.Errorf("%w: %v", ErrHeld, key)
	}
	r.held[key] = struct{}{}
	return nil
}

func (r *Registry) Release(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, key)
}

func (r *Registry) Held(key any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[key]
	return ok
}
