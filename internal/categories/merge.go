// Package categories folds per-response category extractions into a
// form's running category aggregate.
package categories

import (
	"strings"

	"golang.org/x/text/cases"

	"voice-forms-go/internal/types"
)

const maxSummaryLen = 80

// Key is the identity of a category name: trimmed and case-folded.
func Key(name string) string {
	// a Caser is stateful, so one per call
	return cases.Fold().String(strings.TrimSpace(name))
}

// Merge folds the categories extracted from one response into current and
// returns the new aggregate. current is never modified. Each distinct
// category in incoming counts once, however often the response repeats it.
// When incoming carries no usable names, current is returned unchanged and
// changed is false.
func Merge(current []types.Category, incoming []types.RawCategory, sentiment types.Sentiment) (merged []types.Category, changed bool) {
	if len(incoming) == 0 {
		return current, false
	}

	out := make([]types.Category, len(current))
	copy(out, current)

	index := make(map[string]int, len(out))
	for i, c := range out {
		index[Key(c.Name)] = i
	}

	seen := make(map[string]struct{}, len(incoming))
	for _, raw := range incoming {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		key := Key(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		changed = true

		if i, ok := index[key]; ok {
			out[i].ResponseCount++
			if s := strings.TrimSpace(raw.Summary); s != "" {
				out[i].Summary = TruncateSummary(s)
			}
			continue
		}

		catSentiment := sentiment
		if raw.Sentiment != "" {
			catSentiment = types.NormalizeSentiment(string(raw.Sentiment))
		}
		if catSentiment == "" {
			catSentiment = types.SentimentNeutral
		}
		index[key] = len(out)
		out = append(out, types.Category{
			Name:          name,
			Summary:       TruncateSummary(strings.TrimSpace(raw.Summary)),
			Sentiment:     catSentiment,
			ResponseCount: 1,
		})
	}

	if !changed {
		return current, false
	}
	Recompute(out)
	return out, true
}

// Recompute rewrites every percentage from the response counts and returns
// the total. Percentages are rounded to two decimals and the rounding
// residual goes to the last category, so they always add up to exactly
// 100.00 when the total is positive.
func Recompute(cats []types.Category) int {
	total := Total(cats)
	if total == 0 {
		for i := range cats {
			cats[i].Percentage = 0
		}
		return 0
	}

	// work in hundredths of a percent to keep the sum exact
	const whole = 100 * 100
	sum := 0
	hundredths := make([]int, len(cats))
	for i, c := range cats {
		h := (2*c.ResponseCount*whole + total) / (2 * total)
		hundredths[i] = h
		sum += h
	}
	hundredths[len(cats)-1] += whole - sum

	for i := range cats {
		cats[i].Percentage = float64(hundredths[i]) / 100
	}
	return total
}

func Total(cats []types.Category) int {
	total := 0
	for _, c := range cats {
		total += c.ResponseCount
	}
	return total
}

// Names returns the distinct category names from one extraction, in order.
func Names(raw []types.RawCategory) []string {
	names := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		key := Key(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TruncateSummary caps a summary at 80 characters, ending in an ellipsis
// when it had to cut.
func TruncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= maxSummaryLen {
		return s
	}
	return string(r[:maxSummaryLen-3]) + "..."
}
