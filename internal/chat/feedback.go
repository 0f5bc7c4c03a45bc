package chat

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"mockmate/internal/gateway"
	"mockmate/pkg/domain"
)

// feedbackMemo computes grammar and score feedback at most once per
// message index. A duplicate request while one is pending joins the
// in-flight call; afterwards the resolved result is served from memory.
// Failures are not memoized so an explicit retry stays possible.
type feedbackMemo struct {
	c *Controller

	mu       sync.Mutex
	grammars map[int]domain.GrammarFeedback
	scores   map[int]domain.ScoreFeedback
	group    singleflight.Group
}

func newFeedbackMemo(c *Controller) *feedbackMemo {
	return &feedbackMemo{
		c:        c,
		grammars: make(map[int]domain.GrammarFeedback),
		scores:   make(map[int]domain.ScoreFeedback),
	}
}

func (f *feedbackMemo) grammarKey(index int) string {
	return fmt.Sprintf("grammar/%d", index)
}

func (f *feedbackMemo) scoreKey(index int) string {
	return fmt.Sprintf("score/%d", index)
}

func (f *feedbackMemo) grammar(ctx context.Context, index int) (domain.GrammarFeedback, error) {
	f.mu.Lock()
	if fb, ok := f.grammars[index]; ok {
		f.mu.Unlock()
		return fb, nil
	}
	f.mu.Unlock()

	msg, err := f.c.userMessageAt(index)
	if err != nil {
		return domain.GrammarFeedback{}, err
	}

	value, err, _ := f.group.Do(f.grammarKey(index), func() (any, error) {
		f.mu.Lock()
		if fb, ok := f.grammars[index]; ok {
			f.mu.Unlock()
			return fb, nil
		}
		f.mu.Unlock()

		fb, err := f.c.gw.GrammarFeedback(ctx, msg.Content)
		if err != nil {
			return domain.GrammarFeedback{}, err
		}
		f.mu.Lock()
		f.grammars[index] = fb
		f.mu.Unlock()
		return fb, nil
	})
	if err != nil {
		return domain.GrammarFeedback{}, err
	}
	return value.(domain.GrammarFeedback), nil
}

func (f *feedbackMemo) score(ctx context.Context, index int) (domain.ScoreFeedback, error) {
	f.mu.Lock()
	if fb, ok := f.scores[index]; ok {
		f.mu.Unlock()
		return fb, nil
	}
	f.mu.Unlock()

	msg, err := f.c.userMessageAt(index)
	if err != nil {
		return domain.ScoreFeedback{}, err
	}
	question, tc := f.c.taskContextAt(index)

	value, err, _ := f.group.Do(f.scoreKey(index), func() (any, error) {
		f.mu.Lock()
		if fb, ok := f.scores[index]; ok {
			f.mu.Unlock()
			return fb, nil
		}
		f.mu.Unlock()

		fb, err := f.c.gw.ScoreFeedback(ctx, gateway.ScoreRequest{
			SessionID:       f.c.sessionID,
			Question:        question,
			Answer:          msg.Content,
			TaskTopic:       tc.Topic,
			TaskInstruction: tc.Instruction,
		})
		if err != nil {
			return domain.ScoreFeedback{}, err
		}
		f.mu.Lock()
		f.scores[index] = fb
		f.mu.Unlock()
		return fb, nil
	})
	if err != nil {
		return domain.ScoreFeedback{}, err
	}
	return value.(domain.ScoreFeedback), nil
}
