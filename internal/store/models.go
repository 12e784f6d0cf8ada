package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"voice-forms-go/internal/types"
)

type sessionRecord struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	FormID      int64      `gorm:"column:form_id;not null;index"`
	OwnerID     int64      `gorm:"column:owner_id;not null"`
	Status      string     `gorm:"column:status;size:20;not null;default:in_progress"`
	SubmittedAt *time.Time `gorm:"column:submitted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string { return "form_responses" }

func (r sessionRecord) toDomain() types.ResponseSession {
	return types.ResponseSession{
		ID:          r.ID,
		FormID:      r.FormID,
		OwnerID:     r.OwnerID,
		Status:      types.SessionStatus(r.Status),
		SubmittedAt: r.SubmittedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type answerRecord struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID      int64          `gorm:"column:session_id;not null;index"`
	FormID         int64          `gorm:"column:form_id;not null"`
	QuestionID     int64          `gorm:"column:question_id"`
	QuestionNumber int            `gorm:"column:question_number"`
	OwnerID        int64          `gorm:"column:owner_id"`
	ResponseText   string         `gorm:"column:response_text;type:text"`
	AudioRef       string         `gorm:"column:voice_file_link;size:512"`
	ResponseTime   *float64       `gorm:"column:response_time"`
	Transcript     string         `gorm:"column:transcribed_text;type:text"`
	TranslatedText string         `gorm:"column:translated_text;type:text"`
	Language       string         `gorm:"column:language;size:10"`
	Sentiment      string         `gorm:"column:sentiment;size:20;default:neutral"`
	Categories     datatypes.JSON `gorm:"column:categories"`
	State          string         `gorm:"column:state;size:20;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (answerRecord) TableName() string { return "form_response_fields" }

func (r answerRecord) toDomain() (types.Answer, error) {
	a := types.Answer{
		ID:             r.ID,
		FormID:         r.FormID,
		SessionID:      r.SessionID,
		QuestionID:     r.QuestionID,
		QuestionNumber: r.QuestionNumber,
		OwnerID:        r.OwnerID,
		ResponseText:   r.ResponseText,
		AudioRef:       r.AudioRef,
		ResponseTime:   r.ResponseTime,
		Transcript:     r.Transcript,
		TranslatedText: r.TranslatedText,
		Language:       r.Language,
		Sentiment:      types.Sentiment(r.Sentiment),
		State:          types.ProcessingState(r.State),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Categories:     []string{},
	}
	if len(r.Categories) > 0 {
		if err := json.Unmarshal(r.Categories, &a.Categories); err != nil {
			return a, fmt.Errorf("decode categories of answer %d: %w", r.ID, err)
		}
	}
	return a, nil
}

type analyticsRecord struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	FormID         int64          `gorm:"column:form_id;not null"`
	Categories     datatypes.JSON `gorm:"column:response_categories"`
	TotalResponses int            `gorm:"column:total_responses;not null;default:0"`
	Status         string         `gorm:"column:status;size:20;not null;default:active"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (analyticsRecord) TableName() string { return "form_analytics" }

func (r analyticsRecord) toDomain() (types.FormAnalytics, error) {
	fa := types.FormAnalytics{
		ID:             r.ID,
		FormID:         r.FormID,
		TotalResponses: r.TotalResponses,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Categories:     []types.Category{},
	}
	if len(r.Categories) > 0 {
		if err := json.Unmarshal(r.Categories, &fa.Categories); err != nil {
			return fa, err
		}
	}
	return fa, nil
}

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
