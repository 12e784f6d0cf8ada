// Package memstore is an in-memory stand-in for store.Store used by tests
// and local runs without a database.
//
// MergeFormAnalytics deliberately reads, waits Latency, then writes without
// holding a lock across the gap, the way two uncoordinated database clients
// would. Callers must serialize merges themselves.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"voice-forms-go/internal/store"
	"voice-forms-go/internal/types"
)

type Store struct {
	// Latency is slept between the read and the write of a merge.
	Latency time.Duration

	mu        sync.Mutex
	nextID    int64
	sessions  map[int64]types.ResponseSession
	answers   map[int64]types.Answer
	analytics map[int64][]types.FormAnalytics // every aggregate per form, last is newest
}

func New() *Store {
	return &Store{
		sessions:  make(map[int64]types.ResponseSession),
		answers:   make(map[int64]types.Answer),
		analytics: make(map[int64][]types.FormAnalytics),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateSession(_ context.Context, formID, ownerID int64) (types.ResponseSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sess := types.ResponseSession{
		ID:        s.id(),
		FormID:    formID,
		OwnerID:   ownerID,
		Status:    types.SessionInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id int64) (types.ResponseSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return types.ResponseSession{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) CreateAnswer(_ context.Context, a *types.Answer, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[a.SessionID]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Status == types.SessionCompleted {
		return store.ErrSessionCompleted
	}

	def := types.DefaultEnrichment()
	now := time.Now().UTC()
	rec := types.Answer{
		ID:             s.id(),
		FormID:         sess.FormID,
		SessionID:      sess.ID,
		QuestionID:     a.QuestionID,
		QuestionNumber: a.QuestionNumber,
		OwnerID:        sess.OwnerID,
		ResponseText:   a.ResponseText,
		ResponseTime:   a.ResponseTime,
		Language:       def.Language,
		Sentiment:      def.Sentiment,
		Categories:     def.Categories,
		State:          types.StateReceived,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.answers[rec.ID] = rec

	if final {
		sess.Status = types.SessionCompleted
		sess.SubmittedAt = &now
		sess.UpdatedAt = now
		s.sessions[sess.ID] = sess
	}
	*a = rec
	return nil
}

func (s *Store) GetAnswer(_ context.Context, id int64) (types.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return types.Answer{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAnswersBySession(_ context.Context, sessionID int64) ([]types.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Answer
	for _, a := range s.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y types.Answer) int {
		if x.QuestionNumber != y.QuestionNumber {
			return x.QuestionNumber - y.QuestionNumber
		}
		return int(x.ID - y.ID)
	})
	return out, nil
}

func (s *Store) ListPendingAnswers(_ context.Context, formID int64, limit int) ([]types.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Answer
	for _, a := range s.answers {
		if a.FormID == formID && a.State == types.StateReceived {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y types.Answer) int { return int(x.ID - y.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateAnswerEnrichment(_ context.Context, id int64, e types.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return store.ErrNotFound
	}
	a.AudioRef = e.AudioRef
	a.Transcript = e.Transcript
	a.TranslatedText = e.TranslatedText
	a.Language = e.Language
	a.Sentiment = e.Sentiment
	a.Categories = slices.Clone(e.Categories)
	if a.Categories == nil {
		a.Categories = []string{}
	}
	a.State = e.State
	a.UpdatedAt = time.Now().UTC()
	s.answers[id] = a
	return nil
}

func (s *Store) UpdateAnswerAudio(_ context.Context, id int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return store.ErrNotFound
	}
	a.AudioRef = ref
	a.UpdatedAt = time.Now().UTC()
	s.answers[id] = a
	return nil
}

func (s *Store) UpdateAnswerState(_ context.Context, id int64, state types.ProcessingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return store.ErrNotFound
	}
	a.State = state
	a.UpdatedAt = time.Now().UTC()
	s.answers[id] = a
	return nil
}

func (s *Store) active(formID int64) (types.FormAnalytics, int, bool) {
	list := s.analytics[formID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Status == types.AnalyticsActive {
			return list[i], i, true
		}
	}
	return types.FormAnalytics{}, -1, false
}

func (s *Store) ReadFormAnalytics(_ context.Context, formID int64) (types.FormAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fa, _, ok := s.active(formID)
	if !ok {
		return types.FormAnalytics{}, store.ErrNotFound
	}
	fa.Categories = slices.Clone(fa.Categories)
	return fa, nil
}

func (s *Store) MergeFormAnalytics(ctx context.Context, formID int64, fn func([]types.Category) ([]types.Category, bool)) (types.FormAnalytics, error) {
	s.mu.Lock()
	fa, idx, ok := s.active(formID)
	current := slices.Clone(fa.Categories)
	s.mu.Unlock()

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return types.FormAnalytics{}, ctx.Err()
		}
	}

	next, changed := fn(current)
	if !changed {
		if !ok {
			return types.FormAnalytics{FormID: formID, Categories: []types.Category{}}, nil
		}
		return fa, nil
	}

	total := 0
	for _, c := range next {
		total += c.ResponseCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !ok {
		fa = types.FormAnalytics{
			ID:        s.id(),
			FormID:    formID,
			Status:    types.AnalyticsActive,
			CreatedAt: now,
		}
		s.analytics[formID] = append(s.analytics[formID], fa)
		idx = len(s.analytics[formID]) - 1
	}
	fa.Categories = slices.Clone(next)
	fa.TotalResponses = total
	fa.UpdatedAt = now
	s.analytics[formID][idx] = fa
	return fa, nil
}

func (s *Store) DeactivateFormAnalytics(_ context.Context, formID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := s.active(formID)
	if !ok {
		return store.ErrNotFound
	}
	s.analytics[formID][idx].Status = types.AnalyticsInactive
	s.analytics[formID][idx].UpdatedAt = time.Now().UTC()
	return nil
}
