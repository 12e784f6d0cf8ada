package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voice-forms-go/internal/types"
)

func (s *Store) ReadFormAnalytics(ctx context.Context, formID int64) (types.FormAnalytics, error) {
	var rec analyticsRecord
	err := s.db.WithContext(ctx).
		Where("form_id = ? AND status = ?", formID, types.AnalyticsActive).
		First(&rec).Error
	if err != nil {
		return types.FormAnalytics{}, notFound(err)
	}
	return rec.toDomain()
}

// MergeFormAnalytics reads the active aggregate of formID under a row lock,
// hands its categories to fn and writes the result back in the same
// transaction. fn receives nil when the form has no active aggregate yet.
// Nothing is written when fn reports no change.
func (s *Store) MergeFormAnalytics(ctx context.Context, formID int64, fn func([]types.Category) ([]types.Category, bool)) (types.FormAnalytics, error) {
	var out types.FormAnalytics
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec analyticsRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("form_id = ? AND status = ?", formID, types.AnalyticsActive).
			First(&rec).Error
		exists := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else if err != nil {
			return err
		}

		var current []types.Category
		if exists {
			fa, err := rec.toDomain()
			if err != nil {
				return fmt.Errorf("decode categories of form %d: %w", formID, err)
			}
			current = fa.Categories
		}

		next, changed := fn(current)
		if !changed {
			if exists {
				out, err = rec.toDomain()
				return err
			}
			out = types.FormAnalytics{FormID: formID, Categories: []types.Category{}}
			return nil
		}

		cats, err := toJSON(next)
		if err != nil {
			return err
		}
		total := 0
		for _, c := range next {
			total += c.ResponseCount
		}

		if !exists {
			rec = analyticsRecord{
				FormID:         formID,
				Categories:     cats,
				TotalResponses: total,
				Status:         types.AnalyticsActive,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create analytics: %w", err)
			}
		} else {
			err := tx.Model(&rec).Updates(map[string]any{
				"response_categories": cats,
				"total_responses":     total,
				"updated_at":          time.Now().UTC(),
			}).Error
			if err != nil {
				return fmt.Errorf("update analytics: %w", err)
			}
			rec.Categories = cats
			rec.TotalResponses = total
		}

		out, err = rec.toDomain()
		return err
	})
	return out, err
}

// DeactivateFormAnalytics retires the active aggregate. The next merge for
// the form starts a fresh one.
func (s *Store) DeactivateFormAnalytics(ctx context.Context, formID int64) error {
	res := s.db.WithContext(ctx).Model(&analyticsRecord{}).
		Where("form_id = ? AND status = ?", formID, types.AnalyticsActive).
		Updates(map[string]any{
			"status":     types.AnalyticsInactive,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
