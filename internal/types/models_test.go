package types

import "testing"

func TestNormalizeSentiment(t *testing.T) {
	tests := map[string]Sentiment{
		"positive":   SentimentPositive,
		" NEGATIVE ": SentimentNegative,
		"Neutral":    SentimentNeutral,
		"mixed":      SentimentNeutral,
		"":           SentimentNeutral,
	}
	for in, want := range tests {
		if got := NormalizeSentiment(in); got != want {
			t.Errorf("NormalizeSentiment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []ProcessingState{StateDone, StateFailedPartial} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ProcessingState{StateReceived, StateUploading, StateTranscribing, StateAnalyzing, StateMerging} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
