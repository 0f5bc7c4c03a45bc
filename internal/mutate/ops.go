package mutate

import (
	"context"
	"time"

	"mockmate/internal/cache"
	"mockmate/internal/gateway"
	"mockmate/internal/util"
	"mockmate/pkg/domain"
)

// Backend is the slice of the remote gateway the mutation operations
// need. *gateway.Client satisfies it.
type Backend interface {
	CreateApplication(ctx context.Context, create gateway.CreateApplicationRequest) (domain.Application, error)
	DeleteApplication(ctx context.Context, id string) error
	CreateSession(ctx context.Context, create gateway.CreateSessionRequest) (domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateResume(ctx context.Context, userID string, update gateway.ResumeUpdate) (domain.Resume, error)
	RunMatchAnalysis(ctx context.Context, userID, applicationID string) (domain.MatchAnalysis, error)
}

// Ops bundles the write operations of the client: each one goes through
// the coordinator's optimistic protocol.
type Ops struct {
	coord   *Coordinator
	backend Backend
}

// NewOps wires mutation operations to a coordinator and gateway.
func NewOps(coord *Coordinator, backend Backend) *Ops {
	return &Ops{coord: coord, backend: backend}
}

func asApplications(cur any, ok bool) []domain.Application {
	if !ok {
		return nil
	}
	apps, _ := cur.([]domain.Application)
	return apps
}

func asSessions(cur any, ok bool) []domain.Session {
	if !ok {
		return nil
	}
	sessions, _ := cur.([]domain.Session)
	return sessions
}

// CreateApplication prepends a provisional application to the cached
// list, then swaps in the server-confirmed record (server-assigned id
// and timestamps) once the call succeeds.
func (o *Ops) CreateApplication(ctx context.Context, create gateway.CreateApplicationRequest) (domain.Application, error) {
	listKey := cache.ApplicationsKey(create.UserID)
	provisionalID := util.ProvisionalID()
	var created domain.Application

	err := o.coord.Do(ctx, Mutation{
		Target: "application/create/" + create.UserID,
		Keys:   []cache.Key{listKey},
		Optimistic: func(store *cache.Store) {
			store.Update(listKey, func(cur any, ok bool) any {
				provisional := domain.Application{
					ID:          provisionalID,
					UserID:      create.UserID,
					CompanyName: create.CompanyName,
					JobTitle:    create.JobTitle,
					CreatedAt:   time.Now().UTC(),
				}
				return append([]domain.Application{provisional}, asApplications(cur, ok)...)
			})
		},
		Call: func(ctx context.Context) (Reconcile, error) {
			app, err := o.backend.CreateApplication(ctx, create)
			if err != nil {
				return nil, err
			}
			created = app
			return func(store *cache.Store) {
				store.Update(listKey, func(cur any, ok bool) any {
					apps := asApplications(cur, ok)
					out := make([]domain.Application, 0, len(apps))
					for _, a := range apps {
						if a.ID == provisionalID {
							out = append(out, app)
						} else {
							out = append(out, a)
						}
					}
					return out
				})
			}, nil
		},
	})
	if err != nil {
		return domain.Application{}, err
	}
	return created, nil
}

// DeleteApplication removes the application optimistically and, once
// the server confirms, invalidates every entry scoped under it.
func (o *Ops) DeleteApplication(ctx context.Context, userID, applicationID string) error {
	listKey := cache.ApplicationsKey(userID)
	return o.coord.Do(ctx, Mutation{
		Target: "application/" + applicationID,
		Keys:   []cache.Key{listKey},
		Optimistic: func(store *cache.Store) {
			store.Update(listKey, func(cur any, ok bool) any {
				apps := asApplications(cur, ok)
				out := make([]domain.Application, 0, len(apps))
				for _, a := range apps {
					if a.ID != applicationID {
						out = append(out, a)
					}
				}
				return out
			})
		},
		Call: func(ctx context.Context) (Reconcile, error) {
			if err := o.backend.DeleteApplication(ctx, applicationID); err != nil {
				return nil, err
			}
			return nil, nil
		},
		CascadeScopes: []string{applicationID},
	})
}

// CreateSession prepends a provisional session to the application's
// cached list and reconciles with the server record.
func (o *Ops) CreateSession(ctx context.Context, create gateway.CreateSessionRequest) (domain.Session, error) {
	listKey := cache.SessionsKey(create.ApplicationID)
	provisionalID := util.ProvisionalID()
	var created domain.Session

	err := o.coord.Do(ctx, Mutation{
		Target: "session/create/" + create.ApplicationID,
		Keys:   []cache.Key{listKey},
		Optimistic: func(store *cache.Store) {
			store.Update(listKey, func(cur any, ok bool) any {
				now := time.Now().UTC()
				provisional := domain.Session{
					ID:               provisionalID,
					ApplicationID:    create.ApplicationID,
					UserID:           create.UserID,
					Type:             create.Type,
					Mode:             create.Mode,
					MustAskQuestions: create.MustAskQuestions,
					Status:           domain.SessionActive,
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				return append([]domain.Session{provisional}, asSessions(cur, ok)...)
			})
		},
		Call: func(ctx context.Context) (Reconcile, error) {
			session, err := o.backend.CreateSession(ctx, create)
			if err != nil {
				return nil, err
			}
			created = session
			return func(store *cache.Store) {
				store.Update(listKey, func(cur any, ok bool) any {
					sessions := asSessions(cur, ok)
					out := make([]domain.Session, 0, len(sessions))
					for _, s := range sessions {
						if s.ID == provisionalID {
							out = append(out, session)
						} else {
							out = append(out, s)
						}
					}
					return out
				})
			}, nil
		},
	})
	if err != nil {
		return domain.Session{}, err
	}
	return created, nil
}

// DeleteSession removes the session optimistically; on success its chat
// history is invalidated along with anything else scoped to it.
func (o *Ops) DeleteSession(ctx context.Context, applicationID, sessionID string) error {
	listKey := cache.SessionsKey(applicationID)
	return o.coord.Do(ctx, Mutation{
		Target: "session/" + sessionID,
		Keys:   []cache.Key{listKey},
		Optimistic: func(store *cache.Store) {
			store.Update(listKey, func(cur any, ok bool) any {
				sessions := asSessions(cur, ok)
				out := make([]domain.Session, 0, len(sessions))
				for _, s := range sessions {
					if s.ID != sessionID {
						out = append(out, s)
					}
				}
				return out
			})
		},
		Call: func(ctx context.Context) (Reconcile, error) {
			if err := o.backend.DeleteSession(ctx, sessionID); err != nil {
				return nil, err
			}
			return nil, nil
		},
		CascadeScopes: []string{sessionID},
	})
}

// SaveResume commits a drafted resume edit. There is no optimistic
// write: draft fields shadow the committed copy in the editor until the
// server confirms, so the cache only ever holds confirmed resumes.
func (o *Ops) SaveResume(ctx context.Context, userID string, update gateway.ResumeUpdate) (domain.Resume, error) {
	key := cache.ResumeKey(userID)
	var saved domain.Resume
	err := o.coord.Do(ctx, Mutation{
		Target: "resume/" + userID,
		Keys:   []cache.Key{key},
		Call: func(ctx context.Context) (Reconcile, error) {
			resume, err := o.backend.UpdateResume(ctx, userID, update)
			if err != nil {
				return nil, err
			}
			saved = resume
			return func(store *cache.Store) {
				store.Write(key, resume)
			}, nil
		},
	})
	if err != nil {
		return domain.Resume{}, err
	}
	return saved, nil
}

// RunMatchAnalysis recomputes resume-job fit and replaces the cached
// result wholesale.
func (o *Ops) RunMatchAnalysis(ctx context.Context, userID, applicationID string) (domain.MatchAnalysis, error) {
	key := cache.MatchKey(applicationID)
	var result domain.MatchAnalysis
	err := o.coord.Do(ctx, Mutation{
		Target: "match/" + applicationID,
		Keys:   []cache.Key{key},
		Call: func(ctx context.Context) (Reconcile, error) {
			analysis, err := o.backend.RunMatchAnalysis(ctx, userID, applicationID)
			if err != nil {
				return nil, err
			}
			result = analysis
			return func(store *cache.Store) {
				store.Write(key, analysis)
			}, nil
		},
	})
	if err != nil {
		return domain.MatchAnalysis{}, err
	}
	return result, nil
}
