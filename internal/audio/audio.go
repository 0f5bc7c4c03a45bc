// Package audio implements the client's speech pipeline: streaming
// text-to-speech playback with a per-process byte cache, and
// push-to-record capture feeding transcription.
package audio

import (
	"context"
	"io"

	"mockmate/pkg/domain"
)

// Synthesizer turns text into an MP3 byte stream. *gateway.Client
// satisfies it.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// Transcriber turns captured audio into text. *gateway.Client
// satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (domain.Transcript, error)
}

// Output is the audio output device. At most one playback handle is
// live at a time; acquiring a new one implies the previous was stopped.
type Output interface {
	// Play begins playing the MP3 stream read from r and returns once
	// audible output has started. The device keeps reading r in the
	// background until EOF or Stop.
	Play(r io.Reader) (Playback, error)
}

// Playback is a handle on one active playback.
type Playback interface {
	// Done is closed when playback ends, naturally or by Stop.
	Done() <-chan struct{}
	// Stop halts playback and releases the device resource. Safe to
	// call more than once.
	Stop()
}

// Microphone acquires the capture device.
type Microphone interface {
	// Start begins capturing. It fails without side effects when the
	// device is unavailable or permission is denied.
	Start(ctx context.Context) (Capture, error)
}

// Capture is one active recording.
type Capture interface {
	// Stop ends the capture, releases the microphone, and returns the
	// captured audio as a single WAV unit.
	Stop() ([]byte, error)
	// Discard ends the capture and releases the microphone, dropping
	// anything captured.
	Discard()
}
