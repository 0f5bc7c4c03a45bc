package mutate

import (
	"context"
	"errors"
	"sync"

	"mockmate/internal/cache"
)

// ErrInFlight means a mutation for the same logical target has not
// resolved yet. Callers treat it as a no-op: the first mutation's
// outcome is the one that counts.
var ErrInFlight = errors.New("mutation already in flight for this target")

// Reconcile replaces the optimistic cache state with the
// server-confirmed one after a successful call.
type Reconcile func(store *cache.Store)

// Mutation describes one write operation against the backend.
//
// Keys lists every cache key the optimistic change touches; they are
// snapshotted before Optimistic runs and restored verbatim if Call
// fails. CascadeScopes names parent ids whose dependent entries are
// invalidated after success (deleting an application drops its session
// list and match result).
//
// Target is the unit of serialization: duplicates of one logical
// operation are rejected, but two different targets may run
// concurrently even when their Keys overlap (create and delete both
// rewrite the owner's application list). A failing mutation's restore
// would then clobber the other's confirmed write. The driving loop is
// a single interactive caller that issues one mutation at a time, so
// overlapping-key mutations are never actually concurrent; callers
// embedding this elsewhere must serialize on the shared key
// themselves.
type Mutation struct {
	Target        string
	Keys          []cache.Key
	Optimistic    func(store *cache.Store)
	Call          func(ctx context.Context) (Reconcile, error)
	CascadeScopes []string
}

// Coordinator executes mutations with optimistic cache updates and full
// rollback on failure. Outside the optimistic window the cache never
// shows a state the server did not confirm.
type Coordinator struct {
	store *cache.Store

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoordinator wires a coordinator to the shared cache store.
func NewCoordinator(store *cache.Store) *Coordinator {
	return &Coordinator{
		store:    store,
		inflight: make(map[string]struct{}),
	}
}

func (c *Coordinator) acquire(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[target]; busy {
		return false
	}
	c.inflight[target] = struct{}{}
	return true
}

func (c *Coordinator) release(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, target)
}

// Do runs one mutation: snapshot, optimistic apply, network call, then
// reconcile on success or exact restore on failure. At most one
// mutation per target runs at a time; a concurrent duplicate gets
// ErrInFlight without touching the cache or the network.
func (c *Coordinator) Do(ctx context.Context, m Mutation) error {
	if !c.acquire(m.Target) {
		return ErrInFlight
	}
	defer c.release(m.Target)

	snapshot := c.store.Snapshot(m.Keys...)
	if m.Optimistic != nil {
		m.Optimistic(c.store)
	}

	reconcile, err := m.Call(ctx)
	if err != nil {
		c.store.Restore(snapshot)
		return err
	}

	if reconcile != nil {
		reconcile(c.store)
	}
	for _, scope := range m.CascadeScopes {
		c.store.InvalidateScope(scope)
	}
	return nil
}
