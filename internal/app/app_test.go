package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voice-forms-go/internal/config"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/processor"
	"voice-forms-go/internal/types"
)

func TestBuildWithMocksProcessesAnswer(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "app.db")
	cfg.AI.MockLLM = true
	cfg.AI.MockTranscription = true
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	a, err := Build(ctx, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	a.Dispatcher.Start()

	sess, err := a.Service.StartSession(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	ans, err := a.Service.SubmitAnswer(ctx, processor.SubmitRequest{
		SessionID:      sess.ID,
		QuestionNumber: 1,
		ResponseText:   "the price is too expensive",
		IsFinalAnswer:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	shutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Dispatcher.Close(shutdown); err != nil {
		t.Fatal(err)
	}

	got, err := a.Store.GetAnswer(ctx, ans.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != types.StateDone || got.Sentiment != types.SentimentNegative {
		t.Errorf("answer = %+v", got)
	}
	fa, err := a.Store.ReadFormAnalytics(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if fa.TotalResponses != 1 || fa.Categories[0].Name != "Pricing" {
		t.Errorf("analytics = %+v", fa)
	}
	if err := a.Close(ctx); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
