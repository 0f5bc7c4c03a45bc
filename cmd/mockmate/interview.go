package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mockmate/internal/chat"
	"mockmate/pkg/domain"
)

// cmdInterview runs the conversational loop for one session. Typed
// lines are answers; slash commands control audio and feedback.
func (c *cli) cmdInterview(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "usage: interview <app-id> <session-id>")
		return
	}
	if !c.requireKey() {
		return
	}
	appID, sessionID := args[0], args[1]
	ctx := context.Background()

	sessions, err := c.loadSessions(ctx, appID)
	if err != nil {
		c.fail(err)
		return
	}
	var record *domain.Session
	for i := range sessions {
		if sessions[i].ID == sessionID {
			record = &sessions[i]
			break
		}
	}
	if record == nil {
		fmt.Fprintf(c.out, "no session %s under application %s\n", sessionID, appID)
		return
	}

	var opts []chat.Option
	if record.Status == domain.SessionCompleted {
		opts = append(opts, chat.WithCompleted())
	}
	ctrl := chat.NewController(c.client, c.store, sessionID, opts...)
	history, err := ctrl.Hydrate(ctx)
	if err != nil {
		c.fail(err)
		return
	}

	if ctrl.State() == chat.StateUninitialized {
		fmt.Fprintln(c.out, "starting interview...")
		turn, err := ctrl.Start(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.showTurn(turn)
	} else {
		fmt.Fprintf(c.out, "resuming interview (round %d)\n", history.TotalRound)
		for i, m := range ctrl.History().Messages {
			c.showMessage(i, m)
		}
	}
	fmt.Fprintln(c.out, "type your answer, or /record, /replay, /grammar <n>, /score <n>, /quit")

	for {
		if ctrl.State() == chat.StateCompleted {
			fmt.Fprintln(c.out, "interview completed")
			c.player.Stop()
			return
		}
		fmt.Fprint(c.out, "you> ")
		if !c.in.Scan() {
			c.player.Stop()
			return
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if c.interviewCommand(ctx, ctrl, line) {
				return
			}
			continue
		}
		c.sendAnswer(ctx, ctrl, line)
	}
}

// interviewCommand handles one slash command; it reports whether the
// loop should exit.
func (c *cli) interviewCommand(ctx context.Context, ctrl *chat.Controller, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		c.player.Stop()
		return true
	case "/record":
		c.recordAnswer(ctx, ctrl)
	case "/replay":
		c.replayLastQuestion(ctx, ctrl)
	case "/grammar":
		index, ok := c.parseIndex(fields)
		if !ok {
			return false
		}
		fb, err := ctrl.Grammar(ctx, index)
		if err != nil {
			c.fail(err)
			return false
		}
		fmt.Fprintf(c.out, "corrected: %s\n", fb.CorrectedVersion)
	case "/score":
		index, ok := c.parseIndex(fields)
		if !ok {
			return false
		}
		fb, err := ctrl.Score(ctx, index)
		if err != nil {
			c.fail(err)
			return false
		}
		fmt.Fprintf(c.out, "score %d/10: %s\nbetter: %s\n", fb.Score, fb.Reasoning, fb.BetterVersion)
	default:
		fmt.Fprintf(c.out, "unknown command %q\n", fields[0])
	}
	return false
}

func (c *cli) parseIndex(fields []string) (int, bool) {
	if len(fields) != 2 {
		fmt.Fprintf(c.out, "usage: %s <message-index>\n", fields[0])
		return 0, false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintf(c.out, "bad index %q\n", fields[1])
		return 0, false
	}
	return index, true
}

func (c *cli) sendAnswer(ctx context.Context, ctrl *chat.Controller, text string) {
	turn, err := ctrl.Send(ctx, text)
	if err != nil {
		var sendErr *chat.SendError
		if errors.As(err, &sendErr) {
			fmt.Fprintf(c.out, "send failed (%v); your answer was kept:\n  %s\n", sendErr.Err, sendErr.Draft)
			return
		}
		c.fail(err)
		return
	}
	c.showTurn(turn)
}

// recordAnswer captures a spoken answer, transcribes it, and sends the
// transcript after the user confirms.
func (c *cli) recordAnswer(ctx context.Context, ctrl *chat.Controller) {
	if err := c.recorder.Start(ctx); err != nil {
		c.fail(err)
		return
	}
	fmt.Fprint(c.out, "recording... press enter to stop, type 'cancel' to discard: ")
	if !c.in.Scan() || strings.TrimSpace(c.in.Text()) == "cancel" {
		c.recorder.Cancel()
		fmt.Fprintln(c.out, "discarded")
		return
	}
	fmt.Fprintf(c.out, "captured %ds, transcribing...\n", c.recorder.Seconds())
	text, err := c.recorder.Confirm(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	if text == "" {
		fmt.Fprintln(c.out, "nothing captured")
		return
	}
	fmt.Fprintf(c.out, "transcript: %s\n", text)
	if c.prompt("send it? (y/n)") != "y" {
		return
	}
	c.sendAnswer(ctx, ctrl, text)
}

// replayLastQuestion speaks the most recent interviewer message. A
// repeat replay plays from the local clip cache without a second
// synthesis call.
func (c *cli) replayLastQuestion(ctx context.Context, ctrl *chat.Controller) {
	messages := ctrl.History().Messages
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			if err := c.player.Play(ctx, messages[i].Content); err != nil {
				c.fail(err)
			}
			return
		}
	}
	fmt.Fprintln(c.out, "nothing to replay yet")
}

func (c *cli) showTurn(turn domain.InterviewTurn) {
	fmt.Fprintf(c.out, "\ninterviewer (round %d)> %s\n", turn.TotalRound, turn.Response)
	if turn.TaskTopic != "" {
		fmt.Fprintf(c.out, "  [topic: %s]\n", turn.TaskTopic)
	}
	if err := c.player.Play(context.Background(), turn.Response); err != nil {
		c.logger.Warn("speech playback unavailable", "err", err)
	}
}

func (c *cli) showMessage(index int, m domain.Message) {
	role := m.Role
	if role == "assistant" {
		role = "interviewer"
	}
	fmt.Fprintf(c.out, "[%d] %s> %s\n", index, role, m.Content)
}
