// Package transcription turns recorded answers into text.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"voice-forms-go/internal/logger"
)

// Whisper transcribes audio through the OpenAI audio transcription endpoint.
type Whisper struct {
	client       *openai.Client
	model        string
	maxRetryTime time.Duration
	log          *logger.Logger
}

func NewWhisper(apiKey, model string, log *logger.Logger, opts ...option.RequestOption) *Whisper {
	if model == "" {
		model = "whisper-1"
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Whisper{
		client:       &client,
		model:        model,
		maxRetryTime: 30 * time.Second,
		log:          log.With(map[string]any{"module": "transcription"}),
	}
}

// namedReader lets the multipart encoder send a real file name and type,
// which the endpoint uses to detect the audio format.
type namedReader struct {
	*bytes.Reader
	name        string
	contentType string
}

func (n namedReader) Filename() string    { return n.name }
func (n namedReader) ContentType() string { return n.contentType }

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}
	if filename == "" {
		filename = "audio.webm"
	}
	ctype := mime.TypeByExtension(filepath.Ext(filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	var text string
	var lastErr error
	op := func() error {
		params := openai.AudioTranscriptionNewParams{
			File:  namedReader{Reader: bytes.NewReader(audio), name: filename, contentType: ctype},
			Model: openai.AudioModel(w.model),
		}
		res, err := w.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			lastErr = err
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
				apiErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			w.log.WithError(err).Warn("transcription request failed")
			return err
		}
		text = strings.TrimSpace(res.Text)
		if text == "" {
			lastErr = errors.New("empty transcript")
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = w.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr != nil {
			return "", fmt.Errorf("transcribe %s: %w", filename, lastErr)
		}
		return "", err
	}

	w.log.WithField("file", filename).WithField("chars", len(text)).Debug("transcription done")
	return text, nil
}

// Mock returns a fixed transcript for any non-empty audio. Used with
// USE_MOCK_TRANSCRIBE.
type Mock struct {
	Text string
}

func (m Mock) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "MOCK TRANSCRIPT: delivery was late and the package arrived damaged.", nil
}
