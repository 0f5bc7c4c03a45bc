package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"mockmate/pkg/domain"
)

// SynthesizeSpeech requests text-to-speech audio and returns the raw
// MP3 byte stream. The response is not buffered: callers can begin
// playback as soon as the first chunk arrives and must close the
// reader. Cancellation goes through the context.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	payload := struct {
		Text  string `json:"text"`
		Voice string `json:"voice,omitempty"`
	}{Text: text, Voice: voice}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/speech/synthesize", payload)
	if err != nil {
		return nil, err
	}
	c.addKey(req)
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

// Transcribe submits captured audio for speech-to-text.
func (c *Client) Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (domain.Transcript, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.Transcript{}, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return domain.Transcript{}, fmt.Errorf("read audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech/transcribe", &body)
	if err != nil {
		return domain.Transcript{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.addKey(req)

	var transcript domain.Transcript
	if err := c.do(c.llm, req, &transcript); err != nil {
		return domain.Transcript{}, err
	}
	return transcript, nil
}
