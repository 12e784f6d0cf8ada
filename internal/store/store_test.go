package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "forms.db")
	s, err := Open(dsn, logger.Discard())
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAnswerCompletesSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess, err := s.CreateSession(ctx, 7, 3)
	if err != nil {
		t.Fatal(err)
	}

	first := types.Answer{SessionID: sess.ID, QuestionID: 11, QuestionNumber: 1, ResponseText: "fine"}
	if err := s.CreateAnswer(ctx, &first, false); err != nil {
		t.Fatalf("CreateAnswer() = %v", err)
	}
	if first.ID == 0 || first.FormID != 7 || first.OwnerID != 3 {
		t.Errorf("answer not populated from session: %+v", first)
	}
	if first.State != types.StateReceived || first.Sentiment != types.SentimentNeutral {
		t.Errorf("unexpected defaults: state=%s sentiment=%s", first.State, first.Sentiment)
	}

	last := types.Answer{SessionID: sess.ID, QuestionID: 12, QuestionNumber: 2}
	if err := s.CreateAnswer(ctx, &last, true); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.SessionCompleted || got.SubmittedAt == nil {
		t.Errorf("session not completed: %+v", got)
	}

	late := types.Answer{SessionID: sess.ID, QuestionNumber: 3}
	if err := s.CreateAnswer(ctx, &late, false); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("CreateAnswer() after completion = %v, want ErrSessionCompleted", err)
	}

	missing := types.Answer{SessionID: 9999}
	if err := s.CreateAnswer(ctx, &missing, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateAnswer() unknown session = %v, want ErrNotFound", err)
	}
}

func TestEnrichmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess, _ := s.CreateSession(ctx, 1, 1)
	a := types.Answer{SessionID: sess.ID, QuestionNumber: 1, ResponseText: "hola"}
	if err := s.CreateAnswer(ctx, &a, false); err != nil {
		t.Fatal(err)
	}

	pending, err := s.ListPendingAnswers(ctx, 1, 0)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPendingAnswers() = %v, %v", pending, err)
	}

	err = s.UpdateAnswerEnrichment(ctx, a.ID, types.Enrichment{
		AudioRef:       "1/1/responses/1/1.webm",
		TranslatedText: "hello",
		Language:       "es",
		Sentiment:      types.SentimentPositive,
		Categories:     []string{"Greeting"},
		State:          types.StateMerging,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateAnswerState(ctx, a.ID, types.StateDone); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAnswer(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TranslatedText != "hello" || got.Language != "es" || got.State != types.StateDone {
		t.Errorf("enrichment not persisted: %+v", got)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "Greeting" {
		t.Errorf("categories = %v", got.Categories)
	}

	pending, _ = s.ListPendingAnswers(ctx, 1, 0)
	if len(pending) != 0 {
		t.Errorf("answer still pending after enrichment")
	}

	if err := s.UpdateAnswerState(ctx, 424242, types.StateDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAnswerState() unknown id = %v", err)
	}
}

func TestMergeFormAnalyticsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.ReadFormAnalytics(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadFormAnalytics() on empty = %v", err)
	}

	add := func(name string) func([]types.Category) ([]types.Category, bool) {
		return func(cur []types.Category) ([]types.Category, bool) {
			for i := range cur {
				if cur[i].Name == name {
					cur[i].ResponseCount++
					return cur, true
				}
			}
			return append(cur, types.Category{Name: name, ResponseCount: 1}), true
		}
	}

	if _, err := s.MergeFormAnalytics(ctx, 5, add("Price")); err != nil {
		t.Fatal(err)
	}
	fa, err := s.MergeFormAnalytics(ctx, 5, add("Price"))
	if err != nil {
		t.Fatal(err)
	}
	if fa.TotalResponses != 2 || len(fa.Categories) != 1 || fa.Status != types.AnalyticsActive {
		t.Errorf("after two merges: %+v", fa)
	}

	noop := func(cur []types.Category) ([]types.Category, bool) { return cur, false }
	fa, err = s.MergeFormAnalytics(ctx, 5, noop)
	if err != nil || fa.TotalResponses != 2 {
		t.Errorf("noop merge = %+v, %v", fa, err)
	}

	if err := s.DeactivateFormAnalytics(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadFormAnalytics(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive aggregate still readable: %v", err)
	}

	fa, err = s.MergeFormAnalytics(ctx, 5, add("Support"))
	if err != nil {
		t.Fatal(err)
	}
	if fa.TotalResponses != 1 || fa.Categories[0].Name != "Support" {
		t.Errorf("fresh aggregate = %+v", fa)
	}
}

func TestGetAnswerRejectsCorruptCategories(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess, _ := s.CreateSession(ctx, 2, 1)
	a := types.Answer{SessionID: sess.ID, QuestionNumber: 1, ResponseText: "ok"}
	if err := s.CreateAnswer(ctx, &a, false); err != nil {
		t.Fatal(err)
	}
	if err := s.db.Exec("UPDATE form_response_fields SET categories = ? WHERE id = ?", "{not json", a.ID).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetAnswer(ctx, a.ID); err == nil {
		t.Error("GetAnswer() with corrupt categories = nil error")
	}
	if _, err := s.ListAnswersBySession(ctx, sess.ID); err == nil {
		t.Error("ListAnswersBySession() with corrupt categories = nil error")
	}
}

func TestUpdateAnswerAudioKeepsState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess, _ := s.CreateSession(ctx, 2, 1)
	a := types.Answer{SessionID: sess.ID, QuestionNumber: 1}
	if err := s.CreateAnswer(ctx, &a, false); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateAnswerAudio(ctx, a.ID, "1/2/responses/1/1.webm"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAnswer(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AudioRef != "1/2/responses/1/1.webm" || got.State != types.StateReceived {
		t.Errorf("answer = %+v", got)
	}
	if err := s.UpdateAnswerAudio(ctx, 4242, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAnswerAudio() unknown id = %v", err)
	}
}
