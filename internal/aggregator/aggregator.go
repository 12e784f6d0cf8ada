package aggregator

import (
	"time"

	"voice-forms-go/internal/types"
)

type Summary struct {
	FormID                int64              `json:"form_id"`
	TotalCategories       int                `json:"total_categories"`
	TotalResponses        int                `json:"total_responses"`
	SentimentDistribution map[string]float64 `json:"sentiment_distribution"`
	CategoryCounts        map[string]int     `json:"category_counts"`
	Categories            []types.Category   `json:"categories"`
	LastUpdated           time.Time          `json:"last_updated"`
}

// Summarize derives the dashboard view of an aggregate. The sentiment
// distribution is the share of categories carrying each label, in percent.
func Summarize(fa types.FormAnalytics) Summary {
	dist := map[string]float64{
		string(types.SentimentPositive): 0,
		string(types.SentimentNegative): 0,
		string(types.SentimentNeutral):  0,
	}
	counts := map[string]int{}
	for _, c := range fa.Categories {
		dist[string(types.NormalizeSentiment(string(c.Sentiment)))]++
		counts[c.Name] = c.ResponseCount
	}
	if n := len(fa.Categories); n > 0 {
		for k, v := range dist {
			dist[k] = roundPct(v / float64(n) * 100)
		}
	}

	cats := fa.Categories
	if cats == nil {
		cats = []types.Category{}
	}
	return Summary{
		FormID:                fa.FormID,
		TotalCategories:       len(fa.Categories),
		TotalResponses:        fa.TotalResponses,
		SentimentDistribution: dist,
		CategoryCounts:        counts,
		Categories:            cats,
		LastUpdated:           fa.UpdatedAt,
	}
}

func roundPct(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
