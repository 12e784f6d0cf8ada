package actionable

import (
	"strings"
	"testing"

	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/types"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name       string
		categories []types.Category
		wantIn     string
	}{
		{
			name: "dominant negative",
			categories: []types.Category{
				{Name: "Shipping Delay", Sentiment: types.SentimentNegative, Percentage: 60},
				{Name: "Staff", Sentiment: types.SentimentPositive, Percentage: 40},
			},
			wantIn: "Shipping Delay",
		},
		{
			name: "positive majority only",
			categories: []types.Category{
				{Name: "Staff", Sentiment: types.SentimentPositive, Percentage: 80},
				{Name: "Price", Sentiment: types.SentimentNegative, Percentage: 20},
			},
			wantIn: "No dominant negative theme",
		},
		{
			name:   "empty",
			wantIn: "No dominant negative theme",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Generate(aggregator.Summary{Categories: tt.categories})
			if !strings.Contains(card.Insight, tt.wantIn) {
				t.Errorf("Insight = %q, want it to mention %q", card.Insight, tt.wantIn)
			}
		})
	}
}
