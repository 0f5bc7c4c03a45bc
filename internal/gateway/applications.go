package gateway

import (
	"context"
	"net/http"
	"net/url"

	"mockmate/pkg/domain"
)

// CreateApplicationRequest creates a target company record.
type CreateApplicationRequest struct {
	UserID         string `json:"user_id"`
	CompanyName    string `json:"company_name"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description,omitempty"`
	Industry       string `json:"industry,omitempty"`
	JobGrade       string `json:"job_grade,omitempty"`
}

// ListApplications fetches all applications owned by a user.
func (c *Client) ListApplications(ctx context.Context, userID string) ([]domain.Application, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/applications/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	var apps []domain.Application
	if err := c.do(c.crud, req, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateApplication registers a new target company + job description.
func (c *Client) CreateApplication(ctx context.Context, create CreateApplicationRequest) (domain.Application, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/application", create)
	if err != nil {
		return domain.Application{}, err
	}
	var app domain.Application
	if err := c.do(c.crud, req, &app); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// DeleteApplication removes an application. Dependent sessions and the
// match result are dropped server-side; the caller cascades locally.
func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/application/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(c.crud, req, nil)
}

// GetMatchAnalysis returns the stored fit analysis for an application,
// or nil when none has been computed yet.
func (c *Client) GetMatchAnalysis(ctx context.Context, applicationID string) (*domain.MatchAnalysis, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/match/"+url.PathEscape(applicationID), nil)
	if err != nil {
		return nil, err
	}
	var result *domain.MatchAnalysis
	if err := c.do(c.crud, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RunMatchAnalysis computes resume-job fit. Recomputation replaces any
// previous result wholesale.
func (c *Client) RunMatchAnalysis(ctx context.Context, userID, applicationID string) (domain.MatchAnalysis, error) {
	payload := struct {
		UserID        string `json:"user_id"`
		ApplicationID string `json:"application_id"`
	}{UserID: userID, ApplicationID: applicationID}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/match", payload)
	if err != nil {
		return domain.MatchAnalysis{}, err
	}
	c.addKey(req)
	var result domain.MatchAnalysis
	if err := c.do(c.llm, req, &result); err != nil {
		return domain.MatchAnalysis{}, err
	}
	return result, nil
}
