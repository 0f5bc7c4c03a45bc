package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mockmate/internal/cache"
	"mockmate/internal/gateway"
	"mockmate/pkg/domain"
)

// State of one session's turn-taking machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingFirst State = "awaiting_first_response"
	StateIdle          State = "idle"
	StateAwaiting      State = "awaiting_response"
	StateCompleted     State = "completed"
)

var (
	// ErrSendInFlight rejects a send while one is outstanding. Sends
	// are rejected, never queued, so the log order matches call order.
	ErrSendInFlight = errors.New("a message is already awaiting a response")
	// ErrSessionCompleted rejects sends after the server reported the
	// interview finished.
	ErrSessionCompleted = errors.New("interview is completed")
	// ErrNotStarted rejects sends before the opening turn arrived.
	ErrNotStarted = errors.New("interview has not been started")
	// ErrAlreadyStarted rejects a second start call.
	ErrAlreadyStarted = errors.New("interview was already started")
)

// SendError wraps a failed send. The optimistic user message has been
// rolled back; Draft preserves the typed answer so the caller can put
// it back in the input instead of losing it.
type SendError struct {
	Draft string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// TaskContext is the topic/instruction pair an assistant message
// carries; it contextualizes scoring of the next user answer.
type TaskContext struct {
	Topic       string
	Instruction string
}

// Gateway is the slice of the remote gateway the controller needs.
// *gateway.Client satisfies it.
type Gateway interface {
	StartInterview(ctx context.Context, sessionID string) (domain.InterviewTurn, error)
	SendMessage(ctx context.Context, sessionID, message string) (domain.InterviewTurn, error)
	GetChatHistory(ctx context.Context, sessionID string) (domain.ChatHistory, error)
	GrammarFeedback(ctx context.Context, text string) (domain.GrammarFeedback, error)
	ScoreFeedback(ctx context.Context, score gateway.ScoreRequest) (domain.ScoreFeedback, error)
}

// Controller orchestrates one interview conversation: message ordering,
// optimistic user-message insertion, assistant reconciliation, round
// counting, and completion detection. The message log itself lives in
// the shared cache store under the session's chat key, so any view
// observing the store sees every append.
type Controller struct {
	sessionID string
	gw        Gateway
	store     *cache.Store
	chatKey   cache.Key

	mu     sync.Mutex
	state  State
	topics map[int]TaskContext

	feedback *feedbackMemo
}

// Option customizes controller construction.
type Option func(*Controller)

// WithCompleted marks the session terminal from the start; used when
// reopening a session whose record says completed.
func WithCompleted() Option {
	return func(c *Controller) { c.state = StateCompleted }
}

// NewController builds the controller for one session.
func NewController(gw Gateway, store *cache.Store, sessionID string, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		gw:        gw,
		store:     store,
		chatKey:   cache.ChatKey(sessionID),
		state:     StateUninitialized,
		topics:    make(map[int]TaskContext),
	}
	c.feedback = newFeedbackMemo(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the current message log and round counter.
func (c *Controller) History() domain.ChatHistory {
	value, ok := c.store.Read(c.chatKey)
	if !ok {
		return domain.ChatHistory{}
	}
	history, _ := value.(domain.ChatHistory)
	return history
}

// Hydrate loads the server-side log into the cache and aligns machine
// state with it: a non-empty log means the interview is underway.
func (c *Controller) Hydrate(ctx context.Context) (domain.ChatHistory, error) {
	value, err := c.store.GetOrFetch(ctx, c.chatKey, func(ctx context.Context) (any, error) {
		return c.gw.GetChatHistory(ctx, c.sessionID)
	})
	if err != nil {
		return domain.ChatHistory{}, err
	}
	history, _ := value.(domain.ChatHistory)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized && len(history.Messages) > 0 {
		c.state = StateIdle
	}
	return history, nil
}

// Start triggers the interviewer's opening question. On failure the
// machine returns to uninitialized so start can be retried.
func (c *Controller) Start(ctx context.Context) (domain.InterviewTurn, error) {
	c.mu.Lock()
	switch c.state {
	case StateCompleted:
		c.mu.Unlock()
		return domain.InterviewTurn{}, ErrSessionCompleted
	case StateUninitialized:
	default:
		c.mu.Unlock()
		return domain.InterviewTurn{}, ErrAlreadyStarted
	}
	c.state = StateAwaitingFirst
	c.mu.Unlock()

	turn, err := c.gw.StartInterview(ctx, c.sessionID)
	if err != nil {
		c.mu.Lock()
		c.state = StateUninitialized
		c.mu.Unlock()
		return domain.InterviewTurn{}, err
	}

	c.mu.Lock()
	c.appendAssistantLocked(turn)
	c.mu.Unlock()
	return turn, nil
}

// Send delivers a user answer. The user message is appended
// optimistically before the network call; on failure it is rolled back
// and the draft is preserved inside the returned *SendError.
func (c *Controller) Send(ctx context.Context, text string) (domain.InterviewTurn, error) {
	c.mu.Lock()
	switch c.state {
	case StateCompleted:
		c.mu.Unlock()
		return domain.InterviewTurn{}, ErrSessionCompleted
	case StateUninitialized:
		c.mu.Unlock()
		return domain.InterviewTurn{}, ErrNotStarted
	case StateAwaiting, StateAwaitingFirst:
		c.mu.Unlock()
		return domain.InterviewTurn{}, ErrSendInFlight
	}
	c.state = StateAwaiting
	snapshot := c.store.Snapshot(c.chatKey)
	c.store.Update(c.chatKey, func(cur any, ok bool) any {
		history, _ := cur.(domain.ChatHistory)
		messages := append(append([]domain.Message{}, history.Messages...), domain.Message{Role: "user", Content: text})
		return domain.ChatHistory{Messages: messages, TotalRound: history.TotalRound}
	})
	c.mu.Unlock()

	turn, err := c.gw.SendMessage(ctx, c.sessionID, text)
	if err != nil {
		c.mu.Lock()
		c.store.Restore(snapshot)
		c.state = StateIdle
		c.mu.Unlock()
		return domain.InterviewTurn{}, &SendError{Draft: text, Err: err}
	}

	c.mu.Lock()
	c.appendAssistantLocked(turn)
	c.mu.Unlock()
	return turn, nil
}

// appendAssistantLocked appends the assistant reply, records its task
// context keyed by the position the message occupies in the final log,
// adopts the server round counter, and resolves the next state.
func (c *Controller) appendAssistantLocked(turn domain.InterviewTurn) {
	var index int
	c.store.Update(c.chatKey, func(cur any, ok bool) any {
		history, _ := cur.(domain.ChatHistory)
		messages := append(append([]domain.Message{}, history.Messages...), domain.Message{Role: "assistant", Content: turn.Response})
		index = len(messages) - 1
		return domain.ChatHistory{Messages: messages, TotalRound: turn.TotalRound}
	})
	if turn.TaskTopic != "" || turn.TaskInstruction != "" {
		c.topics[index] = TaskContext{Topic: turn.TaskTopic, Instruction: turn.TaskInstruction}
	}
	if turn.Finished {
		c.state = StateCompleted
	} else {
		c.state = StateIdle
	}
}

// taskContextAt resolves the question and topic context for the user
// message at index by scanning backward for the nearest assistant
// message. With no preceding assistant message the context is empty
// rather than an error.
func (c *Controller) taskContextAt(index int) (question string, tc TaskContext) {
	history := c.History()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := index - 1; i >= 0; i-- {
		if i >= len(history.Messages) {
			continue
		}
		if history.Messages[i].Role == "assistant" {
			question = history.Messages[i].Content
			tc = c.topics[i]
			return question, tc
		}
	}
	return "", TaskContext{}
}

// Grammar returns grammar feedback for the user message at index,
// memoized per index.
func (c *Controller) Grammar(ctx context.Context, index int) (domain.GrammarFeedback, error) {
	return c.feedback.grammar(ctx, index)
}

// Score returns score feedback for the user message at index, memoized
// per index.
func (c *Controller) Score(ctx context.Context, index int) (domain.ScoreFeedback, error) {
	return c.feedback.score(ctx, index)
}

// userMessageAt validates that index addresses a user message.
func (c *Controller) userMessageAt(index int) (domain.Message, error) {
	history := c.History()
	if index < 0 || index >= len(history.Messages) {
		return domain.Message{}, fmt.Errorf("message index %d out of range", index)
	}
	msg := history.Messages[index]
	if msg.Role != "user" {
		return domain.Message{}, fmt.Errorf("message %d is not a user message", index)
	}
	return msg, nil
}
