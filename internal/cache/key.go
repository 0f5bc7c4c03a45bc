package cache

// Kind identifies the entity type a cache entry holds. Together with a
// scope (user id, application id, or session id) it forms a Key.
type Kind string

const (
	KindResume       Kind = "resume"
	KindApplications Kind = "applications"
	KindSessions     Kind = "sessions"
	KindChat         Kind = "chat"
	KindMatch        Kind = "match"
)

// Key addresses one cached entity.
type Key struct {
	Kind  Kind
	Scope string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Scope
}

// ResumeKey caches the single resume for a user.
func ResumeKey(userID string) Key {
	return Key{Kind: KindResume, Scope: userID}
}

// ApplicationsKey caches the application list for a user.
func ApplicationsKey(userID string) Key {
	return Key{Kind: KindApplications, Scope: userID}
}

// SessionsKey caches the session list for an application.
func SessionsKey(applicationID string) Key {
	return Key{Kind: KindSessions, Scope: applicationID}
}

// ChatKey caches the chat history for a session.
func ChatKey(sessionID string) Key {
	return Key{Kind: KindChat, Scope: sessionID}
}

// MatchKey caches the fit analysis for an application.
func MatchKey(applicationID string) Key {
	return Key{Kind: KindMatch, Scope: applicationID}
}
