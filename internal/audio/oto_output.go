package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"
)

// OtoOutput plays MP3 streams through the system audio device. The
// underlying context is process-wide and created lazily from the first
// clip's sample rate; the backend serves one voice at fixed rate, so
// later clips are expected to match.
type OtoOutput struct {
	mu  sync.Mutex
	ctx *oto.Context
}

// NewOtoOutput returns an uninitialized output; the device is opened on
// first play.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{}
}

func (o *OtoOutput) context(sampleRate int) (*oto.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return o.ctx, nil
	}
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	o.ctx = ctx
	return ctx, nil
}

// Play decodes the MP3 stream incrementally and starts playback as soon
// as the device has its first samples.
func (o *OtoOutput) Play(r io.Reader) (Playback, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	ctx, err := o.context(decoder.SampleRate())
	if err != nil {
		return nil, err
	}
	player := ctx.NewPlayer(decoder)
	player.Play()

	pb := &otoPlayback{player: player, done: make(chan struct{})}
	go pb.watch()
	return pb, nil
}

type otoPlayback struct {
	player   *oto.Player
	done     chan struct{}
	stopOnce sync.Once
}

func (p *otoPlayback) Done() <-chan struct{} {
	return p.done
}

// watch closes done when the player drains its source.
func (p *otoPlayback) watch() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.player.IsPlaying() {
				p.Stop()
				return
			}
		}
	}
}

func (p *otoPlayback) Stop() {
	p.stopOnce.Do(func() {
		_ = p.player.Close()
		close(p.done)
	})
}
