package catalog

import (
	"context"
	"sync"
)

// lazy holds the in-memory copy of one row. The whole row is loaded on the
// first access through ensure; a failed load is retried on the next access.
type lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	load   func(ctx context.Context) (T, error)
}

func (l *lazy[T]) ensureLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	v, err := l.load(ctx)
	if err != nil {
		return err
	}
	l.value = v
	l.loaded = true
	return nil
}

// ensure loads the row if it has not been loaded yet.
func (l *lazy[T]) ensure(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLocked(ctx)
}

// read returns a copy of the loaded row.
func (l *lazy[T]) read(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLocked(ctx); err != nil {
		var zero T
		return zero, err
	}
	return l.value, nil
}

// edit applies fn to the in-memory copy after loading it.
func (l *lazy[T]) edit(ctx context.Context, fn func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLocked(ctx); err != nil {
		return err
	}
	fn(&l.value)
	return nil
}

// patch applies fn only if the row is already in memory. Used to mirror a
// write that went straight to storage.
func (l *lazy[T]) patch(fn func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		fn(&l.value)
	}
}

// set marks the row loaded with v.
func (l *lazy[T]) set(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v
	l.loaded = true
}

// reset drops the in-memory copy so the next access reloads it.
func (l *lazy[T]) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.value = zero
	l.loaded = false
}

func (l *lazy[T]) isLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// field reads one field of a lazily loaded row.
func field[T, F any](ctx context.Context, l *lazy[T], pick func(*T) F) (F, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLocked(ctx); err != nil {
		var zero F
		return zero, err
	}
	return pick(&l.value), nil
}
