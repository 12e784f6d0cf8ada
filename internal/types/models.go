package types

import (
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NormalizeSentiment maps provider output onto the three known labels.
// Anything unrecognised is neutral.
func NormalizeSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// DefaultLanguage is recorded when no language could be detected.
const DefaultLanguage = "en"

// ProcessingState tracks an Answer through the enrichment pipeline.
type ProcessingState string

const (
	StateReceived      ProcessingState = "received"
	StateUploading     ProcessingState = "uploading"
	StateTranscribing  ProcessingState = "transcribing"
	StateAnalyzing     ProcessingState = "analyzing"
	StateMerging       ProcessingState = "merging"
	StateDone          ProcessingState = "done"
	StateFailedPartial ProcessingState = "failed_partial"
)

func (s ProcessingState) Terminal() bool {
	return s == StateDone || s == StateFailedPartial
}

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

type ResponseSession struct {
	ID          int64         `json:"id"`
	FormID      int64         `json:"form_id"`
	OwnerID     int64         `json:"owner_id"`
	Status      SessionStatus `json:"status"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Answer is one respondent's submission to one question. Empty derived
// strings mean the value is absent.
type Answer struct {
	ID             int64    `json:"id"`
	FormID         int64    `json:"form_id"`
	SessionID      int64    `json:"session_id"`
	QuestionID     int64    `json:"question_id"`
	QuestionNumber int      `json:"question_number"`
	OwnerID        int64    `json:"owner_id"`
	ResponseText   string   `json:"response_text,omitempty"`
	AudioRef       string   `json:"audio_ref,omitempty"`
	ResponseTime   *float64 `json:"response_time,omitempty"`

	Transcript     string          `json:"transcript,omitempty"`
	TranslatedText string          `json:"translated_text,omitempty"`
	Language       string          `json:"language"`
	Sentiment      Sentiment       `json:"sentiment"`
	Categories     []string        `json:"categories"`
	State          ProcessingState `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrichment is the set of derived fields a pipeline writes back onto its Answer.
type Enrichment struct {
	AudioRef       string
	Transcript     string
	TranslatedText string
	Language       string
	Sentiment      Sentiment
	Categories     []string
	State          ProcessingState
}

// DefaultEnrichment is what an Answer carries when no analysis succeeded.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		Language:   DefaultLanguage,
		Sentiment:  SentimentNeutral,
		Categories: []string{},
		State:      StateReceived,
	}
}

// RawCategory is a single category as returned by an extraction provider.
// Summary and Sentiment are optional.
type RawCategory struct {
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Keywords   []string  `json:"keywords"`
	Summary    string    `json:"summary,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
}

type Category struct {
	Name          string    `json:"category_name"`
	Summary       string    `json:"summary_text"`
	Sentiment     Sentiment `json:"sentiment"`
	ResponseCount int       `json:"response_count"`
	Percentage    float64   `json:"percentage"`
}

const (
	AnalyticsActive   = "active"
	AnalyticsInactive = "inactive"
)

type FormAnalytics struct {
	ID             int64      `json:"id"`
	FormID         int64      `json:"form_id"`
	Categories     []Category `json:"response_categories"`
	TotalResponses int        `json:"total_responses"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
