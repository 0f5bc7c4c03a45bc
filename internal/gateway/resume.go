package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"mockmate/pkg/domain"
)

// ResumeUpdate carries the editable resume fields for a manual edit.
// Nil slices and empty strings are sent as-is: the backend replaces the
// stored resume wholesale on save.
type ResumeUpdate struct {
	BasicInfo           domain.BasicInfo        `json:"basic_info"`
	ProfessionalSummary string                  `json:"professional_summary"`
	InterviewHooks      []domain.InterviewHook  `json:"interview_hooks"`
	WorkExperience      []domain.WorkExperience `json:"work_experience"`
	Projects            []domain.Project        `json:"projects"`
	Education           []domain.Education      `json:"education"`
}

// GetResume fetches the resume for a user.
func (c *Client) GetResume(ctx context.Context, userID string) (domain.Resume, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/resume/"+url.PathEscape(userID), nil)
	if err != nil {
		return domain.Resume{}, err
	}
	var resume domain.Resume
	if err := c.do(c.crud, req, &resume); err != nil {
		return domain.Resume{}, err
	}
	return resume, nil
}

// UploadResume sends a PDF for parsing. The backend parses it with the
// user's own key and returns the completed resume record.
func (c *Client) UploadResume(ctx context.Context, userID, filename string, pdf io.Reader) (domain.Resume, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return domain.Resume{}, err
	}
	if _, err := io.Copy(part, pdf); err != nil {
		return domain.Resume{}, fmt.Errorf("read resume file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.Resume{}, err
	}

	target := c.baseURL + "/resume?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return domain.Resume{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.addKey(req)

	var resume domain.Resume
	if err := c.do(c.llm, req, &resume); err != nil {
		return domain.Resume{}, err
	}
	return resume, nil
}

// UpdateResume commits a locally drafted edit to the canonical copy.
func (c *Client) UpdateResume(ctx context.Context, userID string, update ResumeUpdate) (domain.Resume, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPut, "/resume/"+url.PathEscape(userID), update)
	if err != nil {
		return domain.Resume{}, err
	}
	var resume domain.Resume
	if err := c.do(c.crud, req, &resume); err != nil {
		return domain.Resume{}, err
	}
	return resume, nil
}
