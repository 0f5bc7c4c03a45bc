package gateway

import (
	"context"
	"net/http"
	"net/url"

	"mockmate/pkg/domain"
)

// StartInterview initializes the server-side interview graph for a
// session and returns the interviewer's opening turn.
func (c *Client) StartInterview(ctx context.Context, sessionID string) (domain.InterviewTurn, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/chat/"+url.PathEscape(sessionID)+"/start", nil)
	if err != nil {
		return domain.InterviewTurn{}, err
	}
	c.addKey(req)
	var turn domain.InterviewTurn
	if err := c.do(c.llm, req, &turn); err != nil {
		return domain.InterviewTurn{}, err
	}
	return turn, nil
}

// SendMessage delivers a user answer and returns the interviewer's
// next turn. TotalRound in the reply is authoritative.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string) (domain.InterviewTurn, error) {
	payload := struct {
		Message string `json:"message"`
	}{Message: message}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/chat/"+url.PathEscape(sessionID), payload)
	if err != nil {
		return domain.InterviewTurn{}, err
	}
	c.addKey(req)
	var turn domain.InterviewTurn
	if err := c.do(c.llm, req, &turn); err != nil {
		return domain.InterviewTurn{}, err
	}
	return turn, nil
}

// GetChatHistory fetches the full ordered message log for a session.
func (c *Client) GetChatHistory(ctx context.Context, sessionID string) (domain.ChatHistory, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/chat/"+url.PathEscape(sessionID)+"/history", nil)
	if err != nil {
		return domain.ChatHistory{}, err
	}
	var history domain.ChatHistory
	if err := c.do(c.crud, req, &history); err != nil {
		return domain.ChatHistory{}, err
	}
	return history, nil
}

// ScoreRequest asks for a grade of one user answer with its question
// context. Topic and instruction may be empty when no assistant turn
// preceded the answer.
type ScoreRequest struct {
	SessionID       string `json:"session_id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	TaskTopic       string `json:"task_topic"`
	TaskInstruction string `json:"task_instruction"`
}

// GrammarFeedback requests a grammar-corrected version of a user answer.
func (c *Client) GrammarFeedback(ctx context.Context, text string) (domain.GrammarFeedback, error) {
	payload := struct {
		Text string `json:"text"`
	}{Text: text}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/feedback/grammar", payload)
	if err != nil {
		return domain.GrammarFeedback{}, err
	}
	c.addKey(req)
	var fb domain.GrammarFeedback
	if err := c.do(c.llm, req, &fb); err != nil {
		return domain.GrammarFeedback{}, err
	}
	return fb, nil
}

// ScoreFeedback requests a score and improved version of a user answer.
func (c *Client) ScoreFeedback(ctx context.Context, score ScoreRequest) (domain.ScoreFeedback, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/feedback/score", score)
	if err != nil {
		return domain.ScoreFeedback{}, err
	}
	c.addKey(req)
	var fb domain.ScoreFeedback
	if err := c.do(c.llm, req, &fb); err != nil {
		return domain.ScoreFeedback{}, err
	}
	return fb, nil
}
