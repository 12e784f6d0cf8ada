// Package capability defines the provider-neutral AI operations the
// enrichment pipeline depends on, and a Guard that turns any provider
// failure into a neutral default.
package capability

import (
	"context"

	"voice-forms-go/internal/types"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Translation is the result of TranslateDetect. Text is set only when the
// input was not English and a translation was produced.
type Translation struct {
	Text       string
	Translated bool
	Language   string
}

type Translator interface {
	TranslateDetect(ctx context.Context, text string) (Translation, error)
}

type SentimentAnalyzer interface {
	Sentiment(ctx context.Context, text string) (types.Sentiment, error)
}

type CategoryExtractor interface {
	ExtractCategories(ctx context.Context, text string) ([]types.RawCategory, error)
}

// CategoryHinter is implemented by extractors that can be shown the
// categories a form already tracks, so they reuse those names instead of
// coining near duplicates.
type CategoryHinter interface {
	ExtractCategoriesWithHints(ctx context.Context, text string, known []types.Category) ([]types.RawCategory, error)
}

// Providers bundles one implementation per capability. Any field may be nil,
// in which case the Guard always answers with the default.
type Providers struct {
	Transcriber Transcriber
	Translator  Translator
	Sentiment   SentimentAnalyzer
	Categories  CategoryExtractor
}
