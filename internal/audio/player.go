package audio

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// PlayerState reflects the playback machine.
type PlayerState string

const (
	PlayerIdle    PlayerState = "idle"
	PlayerLoading PlayerState = "loading"
	PlayerPlaying PlayerState = "playing"
)

// Player speaks synthesized text. Audio bytes are cached per exact
// text for the life of the process, so replaying an interviewer
// question costs no second synthesis call.
//
// Only one playback is active at a time: starting a new one, or calling
// Stop, cancels any in-flight fetch and releases the previous device
// handle. Every async completion is guarded by a generation counter so
// a superseded stream can never mutate current state.
type Player struct {
	synth Synthesizer
	out   Output
	voice string

	mu         sync.Mutex
	state      PlayerState
	generation uint64
	cancel     context.CancelFunc
	playback   Playback
	cache      map[string][]byte
}

// NewPlayer builds a playback pipeline over a synthesizer and output
// device.
func NewPlayer(synth Synthesizer, out Output, voice string) *Player {
	return &Player{
		synth: synth,
		out:   out,
		voice: voice,
		state: PlayerIdle,
		cache: make(map[string][]byte),
	}
}

// State returns the current playback state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stop cancels any in-flight synthesis stream and halts playback. It is
// safe in any state, including before any audio has started, and is
// idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state = PlayerIdle
}

func (p *Player) stopLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.playback != nil {
		p.playback.Stop()
		p.playback = nil
	}
}

// eofTracker records whether the underlying stream was fully consumed,
// so a cancelled stream never populates the cache with a truncated clip.
type eofTracker struct {
	r   io.Reader
	eof bool
}

func (t *eofTracker) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err == io.EOF {
		t.eof = true
	}
	return n, err
}

// Play speaks text. A cache hit plays immediately; a miss streams the
// synthesis response into the device as it arrives while accumulating
// the full clip for future replays.
func (p *Player) Play(ctx context.Context, text string) error {
	p.mu.Lock()
	p.stopLocked()
	gen := p.generation

	if clip, ok := p.cache[text]; ok {
		playback, err := p.out.Play(bytes.NewReader(clip))
		if err != nil {
			p.state = PlayerIdle
			p.mu.Unlock()
			return err
		}
		p.playback = playback
		p.state = PlayerPlaying
		p.mu.Unlock()
		go p.awaitDone(gen, playback)
		return nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = PlayerLoading
	p.mu.Unlock()

	stream, err := p.synth.SynthesizeSpeech(fetchCtx, text, p.voice)
	if err != nil {
		p.mu.Lock()
		if gen == p.generation {
			p.state = PlayerIdle
			p.cancel = nil
		}
		p.mu.Unlock()
		return err
	}

	var clip bytes.Buffer
	tracker := &eofTracker{r: io.TeeReader(stream, &clip)}
	playback, err := p.out.Play(tracker)
	if err != nil {
		stream.Close()
		p.mu.Lock()
		if gen == p.generation {
			p.state = PlayerIdle
			p.cancel = nil
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	if gen != p.generation {
		// A newer playback superseded this one while the request was
		// in flight.
		p.mu.Unlock()
		playback.Stop()
		stream.Close()
		return nil
	}
	p.playback = playback
	p.state = PlayerPlaying
	p.mu.Unlock()

	go func() {
		<-playback.Done()
		stream.Close()
		p.mu.Lock()
		defer p.mu.Unlock()
		if tracker.eof {
			p.cache[text] = clip.Bytes()
		}
		if gen != p.generation {
			return
		}
		p.playback = nil
		p.cancel = nil
		p.state = PlayerIdle
	}()
	return nil
}

func (p *Player) awaitDone(gen uint64, playback Playback) {
	<-playback.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.playback = nil
	p.state = PlayerIdle
}

// Cached reports whether a clip for the exact text is available
// without synthesis.
func (p *Player) Cached(text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[text]
	return ok
}
