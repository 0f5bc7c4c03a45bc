package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Spill is an optional persistence hook so a restarted client can reuse
// entries that are pinned until explicit invalidation.
type Spill interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Subscriber observes cache changes. Invalidation is delivered with a
// nil value.
type Subscriber func(key Key, value any)

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
}

// Store is the process-wide keyed cache of server entities. It is the
// only shared mutable state in the client; all mutation goes through
// Write/Update so subscriber notification stays consistent.
//
// Values must be treated as immutable: Update transforms must return a
// new value rather than mutating the current one in place. That is what
// makes mutation rollback an exact restore.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]entry
	subs    map[int]Subscriber
	nextSub int

	sessionListMaxAge time.Duration
	group             singleflight.Group
	spill             Spill
	now               func() time.Time
}

// Option customizes the store.
type Option func(*Store)

// WithSessionListMaxAge overrides the session-list freshness window.
func WithSessionListMaxAge(d time.Duration) Option {
	return func(s *Store) { s.sessionListMaxAge = d }
}

// WithSpill persists pinned kinds (resume, applications, match) across
// client restarts.
func WithSpill(spill Spill) Option {
	return func(s *Store) { s.spill = spill }
}

func withNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore constructs an empty cache store. One store is built at
// startup and injected into every component that needs it.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:           make(map[Key]entry),
		subs:              make(map[int]Subscriber),
		sessionListMaxAge: 5 * time.Minute,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// spilled reports whether a kind is pinned until explicit invalidation
// and therefore worth persisting.
func spilled(kind Kind) bool {
	switch kind {
	case KindResume, KindApplications, KindMatch:
		return true
	}
	return false
}

// fresh reports whether an entry can be served without a refetch.
// Chat history is always stale: every consumer binds a fresh fetch and
// the chat controller maintains the entry by explicit writes between
// fetches. Session lists age out; everything else is pinned.
func (s *Store) fresh(key Key, e entry) bool {
	if !e.hasValue {
		return false
	}
	switch key.Kind {
	case KindChat:
		return false
	case KindSessions:
		return s.now().Sub(e.fetchedAt) < s.sessionListMaxAge
	default:
		return true
	}
}

// Read returns the last known value for key. It never blocks and never
// fetches; stale values are still returned so consumers can render
// something while a refresh runs.
func (s *Store) Read(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Write replaces the cached value unconditionally and notifies
// subscribers.
func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, hasValue: true, fetchedAt: s.now()}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.persist(key, value)
	for _, sub := range subs {
		sub(key, value)
	}
}

// Update applies a pure transformation to the current value (ok is
// false when the key is absent) and stores the result. The readers of
// the store never observe a half-applied update.
func (s *Store) Update(key Key, fn func(cur any, ok bool) any) {
	s.mu.Lock()
	e, ok := s.entries[key]
	var cur any
	if ok && e.hasValue {
		cur = e.value
	}
	next := fn(cur, ok && e.hasValue)
	fetchedAt := e.fetchedAt
	if !ok || !e.hasValue {
		fetchedAt = s.now()
	}
	s.entries[key] = entry{value: next, hasValue: true, fetchedAt: fetchedAt}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.persist(key, next)
	for _, sub := range subs {
		sub(key, next)
	}
}

// Invalidate drops entries so the next access refetches. Keys for
// deleted entities must not keep serving a last known value, so
// invalidation removes rather than marks.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, key := range keys {
		if s.spill != nil && spilled(key.Kind) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.spill.Delete(ctx, key.String()); err != nil {
				slog.Warn("cache spill delete failed", "key", key.String(), "err", err)
			}
			cancel()
		}
		for _, sub := range subs {
			sub(key, nil)
		}
	}
}

// InvalidateScope drops every entry scoped under the given parent id.
// Deleting an application cascades to its session list and match result
// this way.
func (s *Store) InvalidateScope(scope string) {
	s.mu.Lock()
	var dropped []Key
	for key := range s.entries {
		if key.Scope == scope {
			dropped = append(dropped, key)
		}
	}
	for _, key := range dropped {
		delete(s.entries, key)
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, key := range dropped {
		if s.spill != nil && spilled(key.Kind) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.spill.Delete(ctx, key.String()); err != nil {
				slog.Warn("cache spill delete failed", "key", key.String(), "err", err)
			}
			cancel()
		}
		for _, sub := range subs {
			sub(key, nil)
		}
	}
}

// GetOrFetch returns a fresh value for key, fetching at most once no
// matter how many callers arrive concurrently. All waiters observe the
// same fetched value or the same error.
func (s *Store) GetOrFetch(ctx context.Context, key Key, fetch func(ctx context.Context) (any, error)) (any, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && s.fresh(key, e) {
		return e.value, nil
	}

	value, err, _ := s.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a concurrent Write may have
		// landed between the miss and this call.
		s.mu.RLock()
		e, ok := s.entries[key]
		s.mu.RUnlock()
		if ok && s.fresh(key, e) {
			return e.value, nil
		}
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.Write(key, fetched)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Subscribe registers a change observer and returns its cancel func.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotSubs() []Subscriber {
	subs := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (s *Store) persist(key Key, value any) {
	if s.spill == nil || !spilled(key.Kind) {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache spill marshal failed", "key", key.String(), "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.spill.Save(ctx, key.String(), data); err != nil {
		slog.Warn("cache spill save failed", "key", key.String(), "err", err)
	}
}

// Seed restores a previously spilled entry into the in-memory cache.
// out must be a non-nil pointer to the entry's concrete type; on
// success the pointed-to value is written to the store.
func (s *Store) Seed(ctx context.Context, key Key, out any) bool {
	if s.spill == nil || !spilled(key.Kind) {
		return false
	}
	data, ok, err := s.spill.Load(ctx, key.String())
	if err != nil {
		slog.Warn("cache spill load failed", "key", key.String(), "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("cache spill decode failed", "key", key.String(), "err", err)
		return false
	}
	s.Write(key, reflect.ValueOf(out).Elem().Interface())
	return true
}

// SnapshotEntry captures one key's exact state for rollback.
type SnapshotEntry struct {
	Value  any
	Exists bool
}

// Snapshot records the current state of the given keys. Restore puts it
// back verbatim, re-creating absence where a key did not exist.
func (s *Store) Snapshot(keys ...Key) map[Key]SnapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[Key]SnapshotEntry, len(keys))
	for _, key := range keys {
		e, ok := s.entries[key]
		if ok && e.hasValue {
			snap[key] = SnapshotEntry{Value: e.value, Exists: true}
		} else {
			snap[key] = SnapshotEntry{}
		}
	}
	return snap
}

// Restore reverts keys to a snapshot taken before a failed mutation.
func (s *Store) Restore(snap map[Key]SnapshotEntry) {
	for key, se := range snap {
		if se.Exists {
			s.Write(key, se.Value)
		} else {
			s.Invalidate(key)
		}
	}
}
