package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voice-forms-go/internal/types"
)

func (s *Store) CreateSession(ctx context.Context, formID, ownerID int64) (types.ResponseSession, error) {
	rec := sessionRecord{
		FormID:  formID,
		OwnerID: ownerID,
		Status:  string(types.SessionInProgress),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return types.ResponseSession{}, fmt.Errorf("create session: %w", err)
	}
	return rec.toDomain(), nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (types.ResponseSession, error) {
	var rec sessionRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return types.ResponseSession{}, notFound(err)
	}
	return rec.toDomain(), nil
}

// CreateAnswer stores a in state received under its session. The session's
// form and owner are copied onto a. When final is set the session is marked
// completed in the same transaction.
func (s *Store) CreateAnswer(ctx context.Context, a *types.Answer, final bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess sessionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sess, a.SessionID).Error
		if err != nil {
			return notFound(err)
		}
		if sess.Status == string(types.SessionCompleted) {
			return ErrSessionCompleted
		}

		def := types.DefaultEnrichment()
		cats, err := toJSON(def.Categories)
		if err != nil {
			return err
		}
		rec := answerRecord{
			SessionID:      sess.ID,
			FormID:         sess.FormID,
			QuestionID:     a.QuestionID,
			QuestionNumber: a.QuestionNumber,
			OwnerID:        sess.OwnerID,
			ResponseText:   a.ResponseText,
			ResponseTime:   a.ResponseTime,
			Language:       def.Language,
			Sentiment:      string(def.Sentiment),
			Categories:     cats,
			State:          string(types.StateReceived),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("create answer: %w", err)
		}

		if final {
			now := time.Now().UTC()
			err := tx.Model(&sess).Updates(map[string]any{
				"status":       string(types.SessionCompleted),
				"submitted_at": now,
			}).Error
			if err != nil {
				return fmt.Errorf("complete session: %w", err)
			}
		}

		out, err := rec.toDomain()
		if err != nil {
			return err
		}
		*a = out
		return nil
	})
}

func (s *Store) GetAnswer(ctx context.Context, id int64) (types.Answer, error) {
	var rec answerRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return types.Answer{}, notFound(err)
	}
	return rec.toDomain()
}

func (s *Store) ListAnswersBySession(ctx context.Context, sessionID int64) ([]types.Answer, error) {
	var recs []answerRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_number ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return answersToDomain(recs)
}

// ListPendingAnswers returns answers of formID that never left the received
// state, oldest first. limit <= 0 means no limit.
func (s *Store) ListPendingAnswers(ctx context.Context, formID int64, limit int) ([]types.Answer, error) {
	q := s.db.WithContext(ctx).
		Where("form_id = ? AND state = ?", formID, string(types.StateReceived)).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []answerRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return answersToDomain(recs)
}

func answersToDomain(recs []answerRecord) ([]types.Answer, error) {
	out := make([]types.Answer, len(recs))
	for i, r := range recs {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// UpdateAnswerAudio records where the recording of answer id was stored
// without touching any other field.
func (s *Store) UpdateAnswerAudio(ctx context.Context, id int64, ref string) error {
	res := s.db.WithContext(ctx).Model(&answerRecord{}).Where("id = ?", id).Update("voice_file_link", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAnswerEnrichment overwrites every derived field of answer id.
func (s *Store) UpdateAnswerEnrichment(ctx context.Context, id int64, e types.Enrichment) error {
	cats := e.Categories
	if cats == nil {
		cats = []string{}
	}
	catsJSON, err := toJSON(cats)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&answerRecord{}).Where("id = ?", id).Updates(map[string]any{
		"voice_file_link":  e.AudioRef,
		"transcribed_text": e.Transcript,
		"translated_text":  e.TranslatedText,
		"language":         e.Language,
		"sentiment":        string(e.Sentiment),
		"categories":       catsJSON,
		"state":            string(e.State),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAnswerState(ctx context.Context, id int64, state types.ProcessingState) error {
	res := s.db.WithContext(ctx).Model(&answerRecord{}).Where("id = ?", id).Update("state", string(state))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
