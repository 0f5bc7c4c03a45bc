package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mockmate/pkg/domain"
)

func TestGetOrFetchDeduplicatesConcurrentReaders(t *testing.T) {
	store := NewStore()
	key := ApplicationsKey("user-1")

	var fetches int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return []domain.Application{{ID: "app-1"}}, nil
	}

	const readers = 8
	results := make([]any, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := store.GetOrFetch(context.Background(), key, fetch)
			if err != nil {
				t.Errorf("reader %d: %v", i, err)
				return
			}
			results[i] = value
		}(i)
	}
	// Give the readers time to pile onto the same flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("fetch count = %d, want 1", n)
	}
	first := results[0]
	for i, r := range results {
		apps, ok := r.([]domain.Application)
		if !ok || len(apps) != 1 || apps[0].ID != "app-1" {
			t.Fatalf("reader %d observed %v", i, r)
		}
		if &apps[0] != &first.([]domain.Application)[0] {
			t.Fatalf("reader %d observed a different value instance", i)
		}
	}
}

func TestGetOrFetchServesFreshPinnedEntryWithoutFetch(t *testing.T) {
	store := NewStore()
	key := ResumeKey("user-1")
	store.Write(key, domain.Resume{ID: "res-1"})

	value, err := store.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
		t.Fatalf("pinned fresh entry must not refetch")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value.(domain.Resume).ID != "res-1" {
		t.Fatalf("unexpected value %v", value)
	}
}

func TestChatHistoryAlwaysRefetches(t *testing.T) {
	store := NewStore()
	key := ChatKey("sess-1")
	store.Write(key, domain.ChatHistory{TotalRound: 1})

	var fetches int
	for i := 0; i < 2; i++ {
		_, err := store.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
			fetches++
			return domain.ChatHistory{TotalRound: fetches + 1}, nil
		})
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if fetches != 2 {
		t.Fatalf("fetches = %d, want 2 (chat is always stale)", fetches)
	}
}

func TestSessionListAgesOut(t *testing.T) {
	current := time.Now()
	store := NewStore(
		WithSessionListMaxAge(5*time.Minute),
		withNow(func() time.Time { return current }),
	)
	key := SessionsKey("app-1")
	store.Write(key, []domain.Session{{ID: "sess-1"}})

	fetched := false
	_, err := store.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
		fetched = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched {
		t.Fatalf("fresh session list refetched")
	}

	current = current.Add(6 * time.Minute)
	_, err = store.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
		fetched = true
		return []domain.Session{{ID: "sess-2"}}, nil
	})
	if err != nil {
		t.Fatalf("get after aging: %v", err)
	}
	if !fetched {
		t.Fatalf("aged session list was not refetched")
	}
}

func TestInvalidateDropsEntry(t *testing.T) {
	store := NewStore()
	key := ResumeKey("user-1")
	store.Write(key, domain.Resume{ID: "res-1"})

	store.Invalidate(key)

	if _, ok := store.Read(key); ok {
		t.Fatalf("invalidated entry still readable")
	}
	fetched := false
	_, err := store.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
		fetched = true
		return domain.Resume{ID: "res-1"}, nil
	})
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if !fetched {
		t.Fatalf("invalidated entry served without refetch")
	}
}

func TestInvalidateScopeDropsDependentKeys(t *testing.T) {
	store := NewStore()
	store.Write(SessionsKey("app-1"), []domain.Session{{ID: "sess-1"}})
	store.Write(MatchKey("app-1"), domain.MatchAnalysis{Score: 7})
	store.Write(SessionsKey("app-2"), []domain.Session{{ID: "sess-2"}})

	store.InvalidateScope("app-1")

	if _, ok := store.Read(SessionsKey("app-1")); ok {
		t.Fatalf("session list for deleted application still cached")
	}
	if _, ok := store.Read(MatchKey("app-1")); ok {
		t.Fatalf("match result for deleted application still cached")
	}
	if _, ok := store.Read(SessionsKey("app-2")); !ok {
		t.Fatalf("unrelated scope was invalidated")
	}
}

func TestUpdateTransformsAbsentValue(t *testing.T) {
	store := NewStore()
	key := ApplicationsKey("user-1")
	store.Update(key, func(cur any, ok bool) any {
		if ok {
			t.Fatalf("expected absent value")
		}
		return []domain.Application{{ID: "app-1"}}
	})
	value, ok := store.Read(key)
	if !ok || len(value.([]domain.Application)) != 1 {
		t.Fatalf("update on absent key did not store value")
	}
}

func TestSubscribersSeeWritesAndInvalidations(t *testing.T) {
	store := NewStore()
	key := ResumeKey("user-1")

	var mu sync.Mutex
	var events []string
	cancel := store.Subscribe(func(k Key, v any) {
		mu.Lock()
		defer mu.Unlock()
		if v == nil {
			events = append(events, "drop:"+k.String())
		} else {
			events = append(events, "write:"+k.String())
		}
	})

	store.Write(key, domain.Resume{ID: "res-1"})
	store.Invalidate(key)
	cancel()
	store.Write(key, domain.Resume{ID: "res-2"})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"write:resume/user-1", "drop:resume/user-1"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestSnapshotRestoreIsExact(t *testing.T) {
	store := NewStore()
	present := ApplicationsKey("user-1")
	absent := MatchKey("app-1")
	original := []domain.Application{{ID: "app-1"}, {ID: "app-2"}}
	store.Write(present, original)

	snap := store.Snapshot(present, absent)

	store.Update(present, func(cur any, ok bool) any {
		return append([]domain.Application{{ID: "tmp"}}, cur.([]domain.Application)...)
	})
	store.Write(absent, domain.MatchAnalysis{Score: 3})

	store.Restore(snap)

	value, ok := store.Read(present)
	if !ok {
		t.Fatalf("restored key missing")
	}
	apps := value.([]domain.Application)
	if len(apps) != 2 || apps[0].ID != "app-1" || apps[1].ID != "app-2" {
		t.Fatalf("restore not exact: %v", apps)
	}
	if _, ok := store.Read(absent); ok {
		t.Fatalf("restore did not re-create absence")
	}
}
