package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mockmate/pkg/domain"
)

func TestSendMessageDecodesTurnAndSendsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/sess-1" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get(KeyHeader); got != "sk-test" {
			t.Fatalf("key header = %q, want sk-test", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"response":"Tell me more","finished":false,"total_round":3,"task_topic":"leadership","task_instruction":"probe specifics"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithKeyProvider(func() string { return "sk-test" }))
	turn, err := client.SendMessage(context.Background(), "sess-1", "I led a team of 5 engineers.")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if turn.Response != "Tell me more" || turn.TotalRound != 3 {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if turn.TaskTopic != "leadership" || turn.TaskInstruction != "probe specifics" {
		t.Fatalf("task context not decoded: %+v", turn)
	}
}

func TestDoDecodesDetailError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Session not found"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetChatHistory(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "Session not found" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestCreateSessionRejectsTooManyQuestionsWithoutRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateSession(context.Background(), CreateSessionRequest{
		ApplicationID:    "app-1",
		UserID:           "user-1",
		Type:             domain.SessionRecruiter,
		Mode:             domain.ModePractice,
		MustAskQuestions: []string{"a", "b", "c", "d", "e", "f"},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if called {
		t.Fatalf("request was issued despite precondition failure")
	}
}

func TestCreateSessionRejectsLongQuestion(t *testing.T) {
	client := NewClient("http://127.0.0.1:0")
	_, err := client.CreateSession(context.Background(), CreateSessionRequest{
		ApplicationID:    "app-1",
		UserID:           "user-1",
		Type:             domain.SessionTechnical,
		Mode:             domain.ModeReal,
		MustAskQuestions: []string{strings.Repeat("x", 51)},
	})
	if err == nil {
		t.Fatalf("expected validation error for question over 50 chars")
	}
}

func TestGetMatchAnalysisNullResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `null`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	result, err := client.GetMatchAnalysis(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("get match analysis: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for null body, got %+v", result)
	}
}

func TestTranscribeSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "answer.wav" {
			t.Fatalf("filename = %q, want answer.wav", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Fatalf("part content type = %q, want audio/wav", ct)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFFdata" {
			t.Fatalf("unexpected audio payload %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"I led a team."}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	transcript, err := client.Transcribe(context.Background(), "answer.wav", "audio/wav", strings.NewReader("RIFFdata"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if transcript.Text != "I led a team." {
		t.Fatalf("transcript = %q", transcript.Text)
	}
}

func TestSynthesizeSpeechStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "mp3-bytes")
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	stream, err := client.SynthesizeSpeech(context.Background(), "Hello", "alloy")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("stream = %q", data)
	}
}

func TestSynthesizeSpeechErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"OpenAI API key required"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.SynthesizeSpeech(context.Background(), "Hello", ""); err == nil {
		t.Fatalf("expected error for 401 response")
	}
}
