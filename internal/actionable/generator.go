package actionable

import (
	"fmt"

	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// negativeShareThreshold is the percentage of responses a negative
// category needs before it earns a card.
const negativeShareThreshold = 35.0

func Generate(s aggregator.Summary) ActionCard {
	var worst *types.Category
	for i := range s.Categories {
		c := &s.Categories[i]
		if c.Sentiment != types.SentimentNegative {
			continue
		}
		if worst == nil || c.Percentage > worst.Percentage {
			worst = c
		}
	}
	if worst != nil && worst.Percentage >= negativeShareThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("%s drives %.0f%% of responses with negative sentiment", worst.Name, worst.Percentage),
			Action:  fmt.Sprintf("Review recent %q responses and assign an owner to address the cause", worst.Name),
			Impact:  "Reduce negative feedback on the most mentioned theme",
		}
	}
	return ActionCard{
		Insight: "No dominant negative theme detected",
		Action:  "Monitor and collect more responses",
		Impact:  "Low immediate intervention",
	}
}
