package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/types"
)

var errNoProvider = errors.New("no provider configured")

type GuardOptions struct {
	// Timeout bounds each provider call, including the rate limiter wait.
	Timeout time.Duration
	// RPS caps provider calls per second across all capabilities. 0 means unlimited.
	RPS float64
}

// Guard wraps Providers so that a call never returns an error: failures,
// timeouts and panics are logged and replaced by the capability's default.
type Guard struct {
	p       Providers
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewGuard(p Providers, opts GuardOptions, log *logger.Logger) *Guard {
	g := &Guard{p: p, timeout: opts.Timeout, log: log}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	if opts.RPS > 0 {
		burst := max(int(opts.RPS), 1)
		g.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return g
}

// Transcribe returns the transcript, or ok=false when none was produced.
func (g *Guard) Transcribe(ctx context.Context, audio []byte, filename string) (text string, ok bool) {
	if g.p.Transcriber == nil {
		return "", false
	}
	text, err := call(ctx, g, func(ctx context.Context) (string, error) {
		return g.p.Transcriber.Transcribe(ctx, audio, filename)
	})
	if err != nil {
		g.fail(ctx, "transcribe", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// TranslateDetect falls back to "no translation, language en".
func (g *Guard) TranslateDetect(ctx context.Context, text string) Translation {
	def := Translation{Language: types.DefaultLanguage}
	if g.p.Translator == nil {
		return def
	}
	tr, err := call(ctx, g, func(ctx context.Context) (Translation, error) {
		return g.p.Translator.TranslateDetect(ctx, text)
	})
	if err != nil {
		g.fail(ctx, "translate", err)
		return def
	}
	if tr.Language == "" {
		tr.Language = types.DefaultLanguage
	}
	if !tr.Translated || strings.TrimSpace(tr.Text) == "" {
		tr.Text, tr.Translated = "", false
	}
	return tr
}

// Sentiment falls back to neutral.
func (g *Guard) Sentiment(ctx context.Context, text string) types.Sentiment {
	if g.p.Sentiment == nil {
		return types.SentimentNeutral
	}
	s, err := call(ctx, g, func(ctx context.Context) (types.Sentiment, error) {
		return g.p.Sentiment.Sentiment(ctx, text)
	})
	if err != nil {
		g.fail(ctx, "sentiment", err)
		return types.SentimentNeutral
	}
	return types.NormalizeSentiment(string(s))
}

// ExtractCategories falls back to no categories.
func (g *Guard) ExtractCategories(ctx context.Context, text string) []types.RawCategory {
	return g.ExtractCategoriesWithHints(ctx, text, nil)
}

// ExtractCategoriesWithHints passes known to providers that implement
// CategoryHinter. Other providers only see text.
func (g *Guard) ExtractCategoriesWithHints(ctx context.Context, text string, known []types.Category) []types.RawCategory {
	if g.p.Categories == nil {
		return nil
	}
	cats, err := call(ctx, g, func(ctx context.Context) ([]types.RawCategory, error) {
		if h, ok := g.p.Categories.(CategoryHinter); ok && len(known) > 0 {
			return h.ExtractCategoriesWithHints(ctx, text, known)
		}
		return g.p.Categories.ExtractCategories(ctx, text)
	})
	if err != nil {
		g.fail(ctx, "categories", err)
		return nil
	}
	return cats
}

// fail logs through the caller's logger when ctx carries one, so the line
// keeps its form, answer and stage fields.
func (g *Guard) fail(ctx context.Context, capability string, err error) {
	logger.FromContext(ctx, g.log).WithError(err).WithField("capability", capability).Warn("provider call failed, using default")
}

// call runs fn in its own goroutine so a provider that ignores ctx still
// cannot hold the caller past the timeout.
func call[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limit: %w", err)
		}
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
