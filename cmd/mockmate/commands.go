package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mockmate/internal/audio"
	"mockmate/internal/cache"
	"mockmate/internal/config"
	"mockmate/internal/gateway"
	"mockmate/internal/keybox"
	"mockmate/internal/mutate"
	"mockmate/internal/pdfcheck"
	"mockmate/pkg/domain"
)

type cli struct {
	cfg      config.FileConfig
	logger   *slog.Logger
	box      *keybox.Box
	userID   string
	client   *gateway.Client
	store    *cache.Store
	ops      *mutate.Ops
	player   *audio.Player
	recorder *audio.Recorder
	in       *bufio.Scanner
	out      io.Writer
}

// warmCache seeds the in-memory cache from the spill so a restarted
// client shows data before its first network round trip.
func (c *cli) warmCache() {
	ctx := context.Background()
	if c.store.Seed(ctx, cache.ResumeKey(c.userID), &domain.Resume{}) {
		c.logger.Debug("resume seeded from spill")
	}
	if c.store.Seed(ctx, cache.ApplicationsKey(c.userID), &[]domain.Application{}) {
		c.logger.Debug("applications seeded from spill")
	}
}

func (c *cli) run() {
	for {
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			return
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		switch args[0] {
		case "quit", "exit":
			return
		case "help":
			c.printHelp()
		case "key":
			c.cmdKey(args[1:])
		case "resume":
			c.cmdResume(args[1:])
		case "apps":
			c.cmdListApplications()
		case "app":
			c.cmdApp(args[1:])
		case "match":
			c.cmdMatch(args[1:])
		case "sessions":
			c.cmdListSessions(args[1:])
		case "session":
			c.cmdSession(args[1:])
		case "interview":
			c.cmdInterview(args[1:])
		default:
			fmt.Fprintf(c.out, "unknown command %q, try 'help'\n", args[0])
		}
	}
}

func (c *cli) printHelp() {
	fmt.Fprint(c.out, `commands:
  key set <api-key> | key verify | key status | key clear
  resume | resume upload <file.pdf> | resume summary <text...>
  apps | app add | app rm <app-id>
  match <app-id> | match run <app-id>
  sessions <app-id>
  session add <app-id> | session rm <app-id> <session-id>
  session notes <session-id> <text...>
  interview <app-id> <session-id>
  quit
`)
}

// prompt reads one line of free-form input.
func (c *cli) prompt(label string) string {
	fmt.Fprintf(c.out, "%s: ", label)
	if !c.in.Scan() {
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *cli) fail(err error) {
	var apiErr *gateway.APIError
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(c.out, "error: server said %q (HTTP %d)\n", apiErr.Message, apiErr.Status)
	case errors.Is(err, mutate.ErrInFlight):
		fmt.Fprintln(c.out, "error: a matching operation is still in flight, try again in a moment")
	default:
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

// requireKey gates LLM-backed operations on a stored API key.
func (c *cli) requireKey() bool {
	if c.box.HasAPIKey() {
		return true
	}
	fmt.Fprintln(c.out, "this needs an OpenAI API key; run 'key set <api-key>' first")
	return false
}

func (c *cli) cmdKey(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: key set|verify|status|clear")
		return
	}
	switch args[0] {
	case "set":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: key set <api-key>")
			return
		}
		if err := c.box.SetAPIKey(args[1]); err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintln(c.out, "key stored")
	case "verify":
		if !c.requireKey() {
			return
		}
		if err := c.client.VerifyKey(context.Background()); err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintln(c.out, "key verified")
	case "status":
		if c.box.HasAPIKey() {
			fmt.Fprintln(c.out, "a key is stored")
		} else {
			fmt.Fprintln(c.out, "no key stored")
		}
	case "clear":
		if err := c.box.ClearAPIKey(); err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintln(c.out, "key cleared")
	default:
		fmt.Fprintln(c.out, "usage: key set|verify|status|clear")
	}
}

func (c *cli) loadResume(ctx context.Context) (domain.Resume, error) {
	v, err := c.store.GetOrFetch(ctx, cache.ResumeKey(c.userID), func(ctx context.Context) (any, error) {
		return c.client.GetResume(ctx, c.userID)
	})
	if err != nil {
		return domain.Resume{}, err
	}
	return v.(domain.Resume), nil
}

func (c *cli) cmdResume(args []string) {
	ctx := context.Background()
	if len(args) == 0 {
		resume, err := c.loadResume(ctx)
		if err != nil {
			var apiErr *gateway.APIError
			if errors.As(err, &apiErr) && apiErr.Status == 404 {
				fmt.Fprintln(c.out, "no resume yet; run 'resume upload <file.pdf>'")
				return
			}
			c.fail(err)
			return
		}
		c.printResume(resume)
		return
	}
	switch args[0] {
	case "upload":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: resume upload <file.pdf>")
			return
		}
		c.uploadResume(ctx, args[1])
	case "summary":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "usage: resume summary <text...>")
			return
		}
		c.editSummary(ctx, strings.Join(args[1:], " "))
	default:
		fmt.Fprintln(c.out, "usage: resume | resume upload <file.pdf> | resume summary <text...>")
	}
}

func (c *cli) uploadResume(ctx context.Context, path string) {
	if !c.requireKey() {
		return
	}
	info, err := pdfcheck.CheckFile(path)
	if err != nil {
		c.fail(err)
		return
	}
	c.logger.Info("uploading resume", "path", path, "pages", info.Pages, "bytes", info.Size)
	f, err := os.Open(path)
	if err != nil {
		c.fail(err)
		return
	}
	defer f.Close()
	resume, err := c.client.UploadResume(ctx, c.userID, filepath.Base(path), f)
	if err != nil {
		c.fail(err)
		return
	}
	c.store.Write(cache.ResumeKey(c.userID), resume)
	fmt.Fprintf(c.out, "resume parsed: %d hooks, %d roles, status %s\n",
		len(resume.InterviewHooks), len(resume.WorkExperience), resume.Status)
}

func (c *cli) editSummary(ctx context.Context, summary string) {
	current, err := c.loadResume(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	saved, err := c.ops.SaveResume(ctx, c.userID, gateway.ResumeUpdate{
		BasicInfo:           current.BasicInfo,
		ProfessionalSummary: summary,
		InterviewHooks:      current.InterviewHooks,
		WorkExperience:      current.WorkExperience,
		Projects:            current.Projects,
		Education:           current.Education,
	})
	if err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "summary saved: %s\n", saved.ProfessionalSummary)
}

func (c *cli) printResume(r domain.Resume) {
	fmt.Fprintf(c.out, "%s (%s) status=%s\n", r.BasicInfo.Name, r.BasicInfo.Location, r.Status)
	if r.ProfessionalSummary != "" {
		fmt.Fprintf(c.out, "  %s\n", r.ProfessionalSummary)
	}
	for _, w := range r.WorkExperience {
		fmt.Fprintf(c.out, "  %s at %s (%s)\n", w.Role, w.Company, w.DateRange)
	}
	for _, h := range r.InterviewHooks {
		fmt.Fprintf(c.out, "  hook: %s [%s]\n", h.TopicName, h.SourceType)
	}
}

func (c *cli) loadApplications(ctx context.Context) ([]domain.Application, error) {
	v, err := c.store.GetOrFetch(ctx, cache.ApplicationsKey(c.userID), func(ctx context.Context) (any, error) {
		return c.client.ListApplications(ctx, c.userID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Application), nil
}

func (c *cli) cmdListApplications() {
	apps, err := c.loadApplications(context.Background())
	if err != nil {
		c.fail(err)
		return
	}
	if len(apps) == 0 {
		fmt.Fprintln(c.out, "no applications; run 'app add'")
		return
	}
	for _, a := range apps {
		fmt.Fprintf(c.out, "%s  %s / %s\n", a.ID, a.CompanyName, a.JobTitle)
	}
}

func (c *cli) cmdApp(args []string) {
	ctx := context.Background()
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: app add | app rm <app-id>")
		return
	}
	switch args[0] {
	case "add":
		company := c.prompt("company")
		title := c.prompt("job title")
		if company == "" || title == "" {
			fmt.Fprintln(c.out, "company and job title are required")
			return
		}
		created, err := c.ops.CreateApplication(ctx, gateway.CreateApplicationRequest{
			UserID:         c.userID,
			CompanyName:    company,
			JobTitle:       title,
			JobDescription: c.prompt("job description (optional)"),
			Industry:       c.prompt("industry (optional)"),
			JobGrade:       c.prompt("job grade (optional)"),
		})
		if err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintf(c.out, "created application %s\n", created.ID)
	case "rm":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: app rm <app-id>")
			return
		}
		if err := c.ops.DeleteApplication(ctx, c.userID, args[1]); err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintln(c.out, "deleted")
	default:
		fmt.Fprintln(c.out, "usage: app add | app rm <app-id>")
	}
}

func (c *cli) cmdMatch(args []string) {
	ctx := context.Background()
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: match <app-id> | match run <app-id>")
		return
	}
	if args[0] == "run" {
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: match run <app-id>")
			return
		}
		if !c.requireKey() {
			return
		}
		fmt.Fprintln(c.out, "analyzing fit, this can take a while...")
		analysis, err := c.ops.RunMatchAnalysis(ctx, c.userID, args[1])
		if err != nil {
			c.fail(err)
			return
		}
		c.printMatch(analysis)
		return
	}
	appID := args[0]
	v, err := c.store.GetOrFetch(ctx, cache.MatchKey(appID), func(ctx context.Context) (any, error) {
		return c.client.GetMatchAnalysis(ctx, appID)
	})
	if err != nil {
		c.fail(err)
		return
	}
	switch m := v.(type) {
	case *domain.MatchAnalysis:
		if m == nil {
			fmt.Fprintln(c.out, "no analysis yet; run 'match run <app-id>'")
			return
		}
		c.printMatch(*m)
	case domain.MatchAnalysis:
		c.printMatch(m)
	}
}

func (c *cli) printMatch(m domain.MatchAnalysis) {
	fmt.Fprintf(c.out, "match %d/10 (%s)\n  %s\n", m.Score, m.Label, m.ScoreReason)
}

func (c *cli) loadSessions(ctx context.Context, appID string) ([]domain.Session, error) {
	v, err := c.store.GetOrFetch(ctx, cache.SessionsKey(appID), func(ctx context.Context) (any, error) {
		return c.client.ListSessions(ctx, appID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Session), nil
}

func (c *cli) cmdListSessions(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "usage: sessions <app-id>")
		return
	}
	sessions, err := c.loadSessions(context.Background(), args[0])
	if err != nil {
		c.fail(err)
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "no sessions; run 'session add <app-id>'")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(c.out, "%s  %s/%s  %s\n", s.ID, s.Type, s.Mode, s.Status)
	}
}

func (c *cli) cmdSession(args []string) {
	ctx := context.Background()
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: session add|rm|notes ...")
		return
	}
	switch args[0] {
	case "add":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: session add <app-id>")
			return
		}
		c.addSession(ctx, args[1])
	case "rm":
		if len(args) != 3 {
			fmt.Fprintln(c.out, "usage: session rm <app-id> <session-id>")
			return
		}
		if err := c.ops.DeleteSession(ctx, args[1], args[2]); err != nil {
			c.fail(err)
			return
		}
		fmt.Fprintln(c.out, "deleted")
	case "notes":
		if len(args) < 3 {
			fmt.Fprintln(c.out, "usage: session notes <session-id> <text...>")
			return
		}
		notes := strings.Join(args[2:], " ")
		updated, err := c.client.UpdateSession(ctx, args[1], gateway.UpdateSessionRequest{
			AdditionalNotes: &notes,
		})
		if err != nil {
			c.fail(err)
			return
		}
		c.store.Invalidate(cache.SessionsKey(updated.ApplicationID))
		fmt.Fprintln(c.out, "notes saved")
	default:
		fmt.Fprintln(c.out, "usage: session add|rm|notes ...")
	}
}

func (c *cli) addSession(ctx context.Context, appID string) {
	sessionType := domain.SessionType(c.prompt("type (recruiter|technical|behavioral|hiring_manager)"))
	mode := domain.SessionMode(c.prompt("mode (practice|real)"))
	create := gateway.CreateSessionRequest{
		ApplicationID:   appID,
		UserID:          c.userID,
		Type:            sessionType,
		Mode:            mode,
		InterviewerName: c.prompt("interviewer name (optional)"),
	}
	if sessionType == domain.SessionTechnical {
		create.TechnicalLevel = c.prompt("technical level (beginner|intermediate|advanced)")
	}
	for i := 0; i < domain.MaxMustAskQuestions; i++ {
		q := c.prompt("must-ask question (empty to finish)")
		if q == "" {
			break
		}
		create.MustAskQuestions = append(create.MustAskQuestions, q)
	}
	created, err := c.ops.CreateSession(ctx, create)
	if err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "created session %s; run 'interview %s %s'\n", created.ID, appID, created.ID)
}
