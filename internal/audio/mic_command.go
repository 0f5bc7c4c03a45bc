package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultRecordCommand captures CD-quality WAV to stdout until
// interrupted.
const DefaultRecordCommand = "arecord -q -f cd -t wav -"

// CommandMicrophone captures audio by running an external recorder
// process (arecord, ffmpeg, sox) that writes WAV bytes to stdout. It
// avoids a cgo capture dependency and lets users plug in whatever their
// platform provides.
type CommandMicrophone struct {
	name string
	args []string
}

// NewCommandMicrophone parses a recorder command line. An empty command
// falls back to DefaultRecordCommand.
func NewCommandMicrophone(command string) (*CommandMicrophone, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultRecordCommand
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty record command")
	}
	return &CommandMicrophone{name: fields[0], args: fields[1:]}, nil
}

// Start launches the recorder process. A missing binary or device error
// surfaces here, before any state change in the caller.
func (m *CommandMicrophone) Start(ctx context.Context) (Capture, error) {
	cmd := exec.CommandContext(ctx, m.name, m.args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &commandCapture{cmd: cmd, buf: &buf}, nil
}

type commandCapture struct {
	cmd *exec.Cmd
	buf *bytes.Buffer
}

// halt asks the recorder to finish, escalating to a kill if it ignores
// the interrupt. arecord and ffmpeg both finalize the WAV container on
// SIGINT.
func (c *commandCapture) halt() {
	_ = c.cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		_ = c.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = c.cmd.Process.Kill()
		<-done
	}
}

func (c *commandCapture) Stop() ([]byte, error) {
	c.halt()
	return c.buf.Bytes(), nil
}

func (c *commandCapture) Discard() {
	c.halt()
}
