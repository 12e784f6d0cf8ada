package capability

import (
	"context"
	"errors"
	"strings"
)

// FallbackTranscriber tries each transcriber in order and returns the first
// non-empty transcript.
type FallbackTranscriber []Transcriber

func (f FallbackTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(f) == 0 {
		return "", errNoProvider
	}
	var errs []error
	for _, t := range f {
		text, err := t.Transcribe(ctx, audio, filename)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
