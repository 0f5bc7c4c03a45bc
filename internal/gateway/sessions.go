package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"mockmate/pkg/domain"
)

// CreateSessionRequest starts a new interview session record.
type CreateSessionRequest struct {
	ApplicationID    string             `json:"application_id"`
	UserID           string             `json:"user_id"`
	Type             domain.SessionType `json:"type"`
	Mode             domain.SessionMode `json:"mode"`
	TechnicalLevel   string             `json:"technical_level,omitempty"`
	InterviewerName  string             `json:"interviewer_name,omitempty"`
	AdditionalNotes  string             `json:"additional_notes,omitempty"`
	MustAskQuestions []string           `json:"must_ask_questions"`
}

// UpdateSessionRequest edits an active session. Nil fields are omitted
// from the request and left unchanged server-side.
type UpdateSessionRequest struct {
	Status           *domain.SessionStatus `json:"status,omitempty"`
	InterviewerName  *string               `json:"interviewer_name,omitempty"`
	AdditionalNotes  *string               `json:"additional_notes,omitempty"`
	MustAskQuestions []string              `json:"must_ask_questions,omitempty"`
}

func validateMustAsk(questions []string) error {
	if len(questions) > domain.MaxMustAskQuestions {
		return fmt.Errorf("must-ask questions cannot exceed %d", domain.MaxMustAskQuestions)
	}
	for _, q := range questions {
		if utf8.RuneCountInString(q) > domain.MaxMustAskQuestionLen {
			return fmt.Errorf("must-ask question exceeds %d characters", domain.MaxMustAskQuestionLen)
		}
	}
	return nil
}

// ListSessions fetches all sessions for an application, newest first.
func (c *Client) ListSessions(ctx context.Context, applicationID string) ([]domain.Session, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/sessions/"+url.PathEscape(applicationID), nil)
	if err != nil {
		return nil, err
	}
	var sessions []domain.Session
	if err := c.do(c.crud, req, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession creates an active session. Must-ask questions are
// validated client-side before any request is issued.
func (c *Client) CreateSession(ctx context.Context, create CreateSessionRequest) (domain.Session, error) {
	if err := validateMustAsk(create.MustAskQuestions); err != nil {
		return domain.Session{}, err
	}
	if create.MustAskQuestions == nil {
		create.MustAskQuestions = []string{}
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/session", create)
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := c.do(c.crud, req, &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// UpdateSession edits session fields while the session is active.
func (c *Client) UpdateSession(ctx context.Context, id string, update UpdateSessionRequest) (domain.Session, error) {
	if err := validateMustAsk(update.MustAskQuestions); err != nil {
		return domain.Session{}, err
	}
	req, err := c.newJSONRequest(ctx, http.MethodPut, "/session/"+url.PathEscape(id), update)
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := c.do(c.crud, req, &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// DeleteSession removes a session and its server-side conversation state.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/session/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(c.crud, req, nil)
}
