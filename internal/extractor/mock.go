package extractor

import (
	"context"
	"strings"

	"voice-forms-go/internal/capability"
	"voice-forms-go/internal/types"
)

// Mock is a deterministic keyword analyzer used with USE_MOCK_LLM and in
// tests. It never fails and never translates.
type Mock struct{}

type mockTheme struct {
	name     string
	keywords []string
}

var mockThemes = []mockTheme{
	{"Delivery Speed", []string{"late", "delay", "slow", "shipping", "delivery"}},
	{"Packaging", []string{"package", "packaging", "damaged", "box"}},
	{"Pricing", []string{"price", "expensive", "cheap", "cost", "refund"}},
	{"Customer Support", []string{"support", "agent", "help", "service"}},
	{"Product Quality", []string{"quality", "broken", "works", "great product"}},
}

var (
	positiveWords = []string{"great", "love", "excellent", "good", "happy", "fast", "helpful"}
	negativeWords = []string{"bad", "late", "slow", "broken", "damaged", "expensive", "angry", "terrible", "refund"}
)

func (Mock) TranslateDetect(context.Context, string) (capability.Translation, error) {
	return capability.Translation{Language: types.DefaultLanguage}, nil
}

func (Mock) Sentiment(_ context.Context, text string) (types.Sentiment, error) {
	return mockSentiment(strings.ToLower(text)), nil
}

func (Mock) ExtractCategories(_ context.Context, text string) ([]types.RawCategory, error) {
	lower := strings.ToLower(text)
	var out []types.RawCategory
	for _, theme := range mockThemes {
		var hits []string
		for _, kw := range theme.keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		out = append(out, types.RawCategory{
			Name:       theme.name,
			Confidence: min(0.5+0.1*float64(len(hits)), 0.95),
			Keywords:   hits,
			Sentiment:  mockSentiment(lower),
		})
	}
	return out, nil
}

func mockSentiment(lower string) types.Sentiment {
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return types.SentimentPositive
	case score < 0:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}
