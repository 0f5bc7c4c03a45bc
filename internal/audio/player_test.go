package audio

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSynth struct {
	calls int32
	err   error
	body  string
}

func (f *fakeSynth) SynthesizeSpeech(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	body := f.body
	if body == "" {
		body = "mp3:" + text
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// fakeOutput drains the stream synchronously and finishes playback when
// told to, mimicking a device that pulls the reader in the background.
type fakeOutput struct {
	mu        sync.Mutex
	playErr   error
	drain     bool
	playbacks []*fakePlayback
}

type fakePlayback struct {
	data    []byte
	done    chan struct{}
	stopped bool
	once    sync.Once
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Stop() {
	p.once.Do(func() {
		p.stopped = true
		close(p.done)
	})
}

func (p *fakePlayback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (o *fakeOutput) Play(r io.Reader) (Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playErr != nil {
		return nil, o.playErr
	}
	pb := &fakePlayback{done: make(chan struct{})}
	if o.drain {
		pb.data, _ = io.ReadAll(r)
	}
	o.playbacks = append(o.playbacks, pb)
	return pb, nil
}

func (o *fakeOutput) last() *fakePlayback {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playbacks[len(o.playbacks)-1]
}

func waitState(t *testing.T, p *Player, want PlayerState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for p.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %q, want %q", p.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlayTwiceSynthesizesOnce(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{drain: true}
	player := NewPlayer(synth, out, "alloy")

	if err := player.Play(context.Background(), "Hello there"); err != nil {
		t.Fatalf("first play: %v", err)
	}
	first := out.last()
	if string(first.data) != "mp3:Hello there" {
		t.Fatalf("device received %q", first.data)
	}
	first.finish()
	waitState(t, player, PlayerIdle)
	if !player.Cached("Hello there") {
		t.Fatalf("fully played clip was not cached")
	}

	if err := player.Play(context.Background(), "Hello there"); err != nil {
		t.Fatalf("second play: %v", err)
	}
	if player.State() != PlayerPlaying {
		t.Fatalf("cache hit should go straight to playing, state = %q", player.State())
	}
	if n := atomic.LoadInt32(&synth.calls); n != 1 {
		t.Fatalf("synthesis calls = %d, want 1", n)
	}
	second := out.last()
	if string(second.data) != "mp3:Hello there" {
		t.Fatalf("replay bytes = %q", second.data)
	}
}

func TestStopIsSafeInAnyState(t *testing.T) {
	player := NewPlayer(&fakeSynth{}, &fakeOutput{}, "alloy")
	player.Stop()
	player.Stop()
	if player.State() != PlayerIdle {
		t.Fatalf("state = %q", player.State())
	}

	if err := player.Play(context.Background(), "text"); err != nil {
		t.Fatalf("play: %v", err)
	}
	player.Stop()
	if player.State() != PlayerIdle {
		t.Fatalf("state after stop = %q", player.State())
	}
	if player.Cached("text") {
		t.Fatalf("interrupted stream must not be cached")
	}
}

func TestNewPlaySupersedesPrevious(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{drain: true}
	player := NewPlayer(synth, out, "alloy")

	if err := player.Play(context.Background(), "first"); err != nil {
		t.Fatalf("play first: %v", err)
	}
	first := out.last()
	if err := player.Play(context.Background(), "second"); err != nil {
		t.Fatalf("play second: %v", err)
	}
	if !first.stopped {
		t.Fatalf("previous playback was not released")
	}
	if player.State() != PlayerPlaying {
		t.Fatalf("state = %q", player.State())
	}
	// The superseded playback finishing must not disturb the new one.
	first.finish()
	time.Sleep(10 * time.Millisecond)
	if player.State() != PlayerPlaying {
		t.Fatalf("stale completion mutated state to %q", player.State())
	}
}

func TestSynthesisFailureReturnsToIdle(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no key")}
	player := NewPlayer(synth, &fakeOutput{}, "alloy")
	if err := player.Play(context.Background(), "text"); err == nil {
		t.Fatalf("expected synthesis error")
	}
	if player.State() != PlayerIdle {
		t.Fatalf("state = %q, want idle", player.State())
	}
}
