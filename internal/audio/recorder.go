package audio

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// RecorderState reflects the capture machine.
type RecorderState string

const (
	RecorderIdle         RecorderState = "idle"
	RecorderRecording    RecorderState = "recording"
	RecorderTranscribing RecorderState = "transcribing"
)

// Recorder captures a spoken answer and transcribes it. The machine is
// idle → recording → transcribing → idle, with a recording → idle
// cancel path. The microphone is singly owned: it is released on every
// exit path, including errors.
type Recorder struct {
	mic  Microphone
	tr   Transcriber
	tick time.Duration

	mu       sync.Mutex
	state    RecorderState
	capture  Capture
	seconds  int
	stopTick chan struct{}
}

// RecorderOption customizes the recorder.
type RecorderOption func(*Recorder)

// withTick overrides the duration-counter interval in tests.
func withTick(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.tick = d }
}

// NewRecorder builds a capture pipeline over a microphone and
// transcriber.
func NewRecorder(mic Microphone, tr Transcriber, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		mic:   mic,
		tr:    tr,
		tick:  time.Second,
		state: RecorderIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current machine state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Seconds returns the elapsed recording duration counter. It resets to
// zero on every transition into recording.
func (r *Recorder) Seconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seconds
}

// Start acquires the microphone and begins capturing. On device error
// or permission denial the recorder stays idle and the error is
// returned for the caller to ignore or surface.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderIdle {
		return nil
	}
	capture, err := r.mic.Start(ctx)
	if err != nil {
		return err
	}
	r.capture = capture
	r.state = RecorderRecording
	r.seconds = 0
	r.stopTick = make(chan struct{})
	go r.countSeconds(r.stopTick)
	return nil
}

func (r *Recorder) countSeconds(stop chan struct{}) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state == RecorderRecording {
				r.seconds++
			}
			r.mu.Unlock()
		}
	}
}

// Cancel stops capturing and releases the microphone immediately,
// discarding anything captured. Safe to call in any state.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return
	}
	close(r.stopTick)
	r.capture.Discard()
	r.capture = nil
	r.state = RecorderIdle
}

// Confirm stops capturing and submits the captured audio for
// transcription. An empty capture returns directly to idle with empty
// text and no network call; the state returns to idle on every
// outcome.
func (r *Recorder) Confirm(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state != RecorderRecording {
		r.mu.Unlock()
		return "", nil
	}
	close(r.stopTick)
	capture := r.capture
	r.capture = nil
	data, err := capture.Stop()
	if err != nil || len(data) == 0 {
		r.state = RecorderIdle
		r.mu.Unlock()
		return "", err
	}
	r.state = RecorderTranscribing
	r.mu.Unlock()

	transcript, err := r.tr.Transcribe(ctx, "answer.wav", "audio/wav", bytes.NewReader(data))

	r.mu.Lock()
	r.state = RecorderIdle
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	return transcript.Text, nil
}
