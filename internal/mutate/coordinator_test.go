package mutate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"mockmate/internal/cache"
	"mockmate/internal/gateway"
	"mockmate/pkg/domain"
)

type fakeBackend struct {
	mu sync.Mutex

	createAppErr    error
	deleteAppErr    error
	deleteAppCalls  int
	deleteAppBlock  chan struct{}
	createdApp      domain.Application
	createdSession  domain.Session
	createSessErr   error
	deleteSessErr   error
	deleteSessCalls int
}

func (f *fakeBackend) CreateApplication(ctx context.Context, create gateway.CreateApplicationRequest) (domain.Application, error) {
	if f.createAppErr != nil {
		return domain.Application{}, f.createAppErr
	}
	return f.createdApp, nil
}

func (f *fakeBackend) DeleteApplication(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleteAppCalls++
	block := f.deleteAppBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.deleteAppErr
}

func (f *fakeBackend) CreateSession(ctx context.Context, create gateway.CreateSessionRequest) (domain.Session, error) {
	if f.createSessErr != nil {
		return domain.Session{}, f.createSessErr
	}
	return f.createdSession, nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleteSessCalls++
	f.mu.Unlock()
	return f.deleteSessErr
}

func (f *fakeBackend) UpdateResume(ctx context.Context, userID string, update gateway.ResumeUpdate) (domain.Resume, error) {
	return domain.Resume{ID: "res-1", UserID: userID, Status: domain.ResumeCompleted}, nil
}

func (f *fakeBackend) RunMatchAnalysis(ctx context.Context, userID, applicationID string) (domain.MatchAnalysis, error) {
	return domain.MatchAnalysis{Score: 8, Label: "Strong Match"}, nil
}

func newOps(backend *fakeBackend) (*Ops, *cache.Store) {
	store := cache.NewStore()
	return NewOps(NewCoordinator(store), backend), store
}

func TestCreateApplicationReconcilesWithServerRecord(t *testing.T) {
	backend := &fakeBackend{createdApp: domain.Application{ID: "app-42", UserID: "user-1", CompanyName: "Acme", JobTitle: "SWE"}}
	ops, store := newOps(backend)
	listKey := cache.ApplicationsKey("user-1")
	store.Write(listKey, []domain.Application{{ID: "app-1"}})

	created, err := ops.CreateApplication(context.Background(), gateway.CreateApplicationRequest{
		UserID:      "user-1",
		CompanyName: "Acme",
		JobTitle:    "SWE",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "app-42" {
		t.Fatalf("created id = %q, want server id", created.ID)
	}

	value, _ := store.Read(listKey)
	apps := value.([]domain.Application)
	if len(apps) != 2 {
		t.Fatalf("list length = %d, want 2", len(apps))
	}
	if apps[0].ID != "app-42" {
		t.Fatalf("head = %q, want server-confirmed app-42", apps[0].ID)
	}
	for _, a := range apps {
		if strings.HasPrefix(a.ID, "tmp-") {
			t.Fatalf("provisional id survived reconciliation: %q", a.ID)
		}
	}
}

func TestFailedMutationRestoresExactState(t *testing.T) {
	backend := &fakeBackend{createAppErr: errors.New("boom")}
	ops, store := newOps(backend)
	listKey := cache.ApplicationsKey("user-1")
	before := []domain.Application{{ID: "app-1", CompanyName: "First"}, {ID: "app-2", CompanyName: "Second"}}
	store.Write(listKey, before)

	_, err := ops.CreateApplication(context.Background(), gateway.CreateApplicationRequest{
		UserID:      "user-1",
		CompanyName: "Acme",
		JobTitle:    "SWE",
	})
	if err == nil {
		t.Fatalf("expected error")
	}

	value, ok := store.Read(listKey)
	if !ok {
		t.Fatalf("list dropped on rollback")
	}
	if !reflect.DeepEqual(value, before) {
		t.Fatalf("rollback not exact: %v", value)
	}
}

func TestFailedDeleteOnAbsentKeyRestoresAbsence(t *testing.T) {
	backend := &fakeBackend{deleteAppErr: errors.New("network down")}
	ops, store := newOps(backend)

	err := ops.DeleteApplication(context.Background(), "user-1", "app-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.Read(cache.ApplicationsKey("user-1")); ok {
		t.Fatalf("rollback left a value where there was none")
	}
}

func TestDeleteApplicationCascadesInvalidation(t *testing.T) {
	backend := &fakeBackend{}
	ops, store := newOps(backend)
	store.Write(cache.ApplicationsKey("user-1"), []domain.Application{{ID: "app-1"}, {ID: "app-2"}})
	store.Write(cache.SessionsKey("app-1"), []domain.Session{{ID: "sess-1"}})
	store.Write(cache.MatchKey("app-1"), domain.MatchAnalysis{Score: 6})

	if err := ops.DeleteApplication(context.Background(), "user-1", "app-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	value, _ := store.Read(cache.ApplicationsKey("user-1"))
	apps := value.([]domain.Application)
	if len(apps) != 1 || apps[0].ID != "app-2" {
		t.Fatalf("application list after delete: %v", apps)
	}
	if _, ok := store.Read(cache.SessionsKey("app-1")); ok {
		t.Fatalf("session list survived cascade")
	}
	if _, ok := store.Read(cache.MatchKey("app-1")); ok {
		t.Fatalf("match result survived cascade")
	}
}

func TestDeleteSessionInvalidatesChatHistory(t *testing.T) {
	backend := &fakeBackend{}
	ops, store := newOps(backend)
	store.Write(cache.SessionsKey("app-1"), []domain.Session{{ID: "sess-1"}})
	store.Write(cache.ChatKey("sess-1"), domain.ChatHistory{TotalRound: 4})

	if err := ops.DeleteSession(context.Background(), "app-1", "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Read(cache.ChatKey("sess-1")); ok {
		t.Fatalf("chat history survived session delete")
	}
}

func TestSecondDeleteForSameTargetIsRejectedWhileInFlight(t *testing.T) {
	backend := &fakeBackend{deleteAppBlock: make(chan struct{})}
	ops, store := newOps(backend)
	store.Write(cache.ApplicationsKey("user-1"), []domain.Application{{ID: "app-1"}})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- ops.DeleteApplication(context.Background(), "user-1", "app-1")
	}()

	// Wait until the first delete reaches the backend.
	for {
		backend.mu.Lock()
		calls := backend.deleteAppCalls
		backend.mu.Unlock()
		if calls == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := ops.DeleteApplication(context.Background(), "user-1", "app-1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second delete: %v, want ErrInFlight", err)
	}

	close(backend.deleteAppBlock)
	if err := <-firstDone; err != nil {
		t.Fatalf("first delete: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.deleteAppCalls != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.deleteAppCalls)
	}
}

func TestSaveResumeWritesConfirmedCopyOnly(t *testing.T) {
	backend := &fakeBackend{}
	ops, store := newOps(backend)
	key := cache.ResumeKey("user-1")

	saved, err := ops.SaveResume(context.Background(), "user-1", gateway.ResumeUpdate{ProfessionalSummary: "Engineer."})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Status != domain.ResumeCompleted {
		t.Fatalf("saved status = %q", saved.Status)
	}
	value, ok := store.Read(key)
	if !ok || value.(domain.Resume).ID != "res-1" {
		t.Fatalf("cache missing confirmed resume: %v", value)
	}
}

func TestRunMatchAnalysisReplacesCachedResult(t *testing.T) {
	backend := &fakeBackend{}
	ops, store := newOps(backend)
	key := cache.MatchKey("app-1")
	store.Write(key, domain.MatchAnalysis{Score: 2, Label: "Needs Work"})

	result, err := ops.RunMatchAnalysis(context.Background(), "user-1", "app-1")
	if err != nil {
		t.Fatalf("run match: %v", err)
	}
	if result.Score != 8 {
		t.Fatalf("score = %d", result.Score)
	}
	value, _ := store.Read(key)
	if value.(domain.MatchAnalysis).Label != "Strong Match" {
		t.Fatalf("cached result not replaced: %v", value)
	}
}
