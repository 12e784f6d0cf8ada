// Package pipeline enriches one stored answer: upload its recording,
// transcribe it, analyze the text and merge the categories into the form's
// analytics.
//
//	received -> uploading -> transcribing -> analyzing -> merging -> done
//	                                  \-> done (no text)       \-> failed_partial
//
// Every stage failure degrades to defaults. Only a failed merge or a failed
// write of the per-answer results ends in failed_partial.
package pipeline

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"voice-forms-go/internal/blobstore"
	"voice-forms-go/internal/capability"
	"voice-forms-go/internal/categories"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/store"
	"voice-forms-go/internal/types"
)

// Job carries everything a run needs. Audio bytes live only in the job and
// are dropped once the run ends. AudioRef points at a recording that was
// stored before the run, and is transcribed when Audio is empty.
type Job struct {
	AnswerID         int64
	FormID           int64
	SessionID        int64
	OwnerID          int64
	QuestionNumber   int
	ResponseText     string
	Audio            []byte
	AudioName        string
	AudioContentType string
	AudioRef         string
	IsFinal          bool
}

type AnswerStore interface {
	UpdateAnswerEnrichment(ctx context.Context, id int64, e types.Enrichment) error
	UpdateAnswerState(ctx context.Context, id int64, state types.ProcessingState) error
}

type Merger interface {
	MergeInto(ctx context.Context, formID int64, raw []types.RawCategory, sentiment types.Sentiment) (types.FormAnalytics, error)
	// Known lists the form's current categories for extraction hints.
	Known(ctx context.Context, formID int64) []types.Category
}

type Analyzer interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, bool)
	TranslateDetect(ctx context.Context, text string) capability.Translation
	Sentiment(ctx context.Context, text string) types.Sentiment
	ExtractCategoriesWithHints(ctx context.Context, text string, known []types.Category) []types.RawCategory
}

type Pipeline struct {
	answers  AnswerStore
	blobs    blobstore.Store
	analyzer Analyzer
	merger   Merger
	log      *logger.Logger

	// writeRetry bounds retries of the per-answer writes.
	writeRetry time.Duration
}

func New(answers AnswerStore, blobs blobstore.Store, analyzer Analyzer, merger Merger, log *logger.Logger) *Pipeline {
	return &Pipeline{
		answers:    answers,
		blobs:      blobs,
		analyzer:   analyzer,
		merger:     merger,
		log:        log,
		writeRetry: 5 * time.Second,
	}
}

// Result reports how a run ended. Aggregate is set when a merge happened.
type Result struct {
	State      types.ProcessingState
	Enrichment types.Enrichment
	Aggregate  *types.FormAnalytics
}

// Run drives job to a terminal state. It never returns an error; failures
// are logged and reflected in the returned state. Cancelling ctx does not
// abort a run already in progress.
func (p *Pipeline) Run(ctx context.Context, job Job) Result {
	base := p.log.WithAnswer(job.FormID, job.AnswerID)
	start := time.Now()

	e := types.DefaultEnrichment()
	res := Result{}

	// log and sctx follow the current stage; adapters log through sctx.
	var (
		log  *logger.Logger
		sctx context.Context
	)
	stage := func(s types.ProcessingState) {
		e.State = s
		log = base.WithStage(string(s))
		sctx = logger.NewContext(context.WithoutCancel(ctx), log)
		log.Debug("stage entered")
	}
	stage(types.StateReceived)

	switch {
	case len(job.Audio) > 0:
		stage(types.StateUploading)
		key := blobstore.AudioKey(job.OwnerID, job.FormID, job.SessionID, job.QuestionNumber, job.AudioName)
		ctype := job.AudioContentType
		if ctype == "" {
			ctype = "audio/webm"
		}
		ref, err := p.blobs.PutObject(sctx, job.Audio, key, ctype)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("audio upload failed, continuing with response text")
			break
		}
		e.AudioRef = ref

		stage(types.StateTranscribing)
		if text, ok := p.analyzer.Transcribe(sctx, job.Audio, job.AudioName); ok {
			e.Transcript = text
		}

	case job.AudioRef != "":
		e.AudioRef = job.AudioRef

		stage(types.StateTranscribing)
		audio, err := p.blobs.GetObject(sctx, job.AudioRef)
		if err != nil {
			log.WithError(err).WithField("key", job.AudioRef).Warn("stored audio unreadable, continuing with response text")
			break
		}
		if text, ok := p.analyzer.Transcribe(sctx, audio, path.Base(job.AudioRef)); ok {
			e.Transcript = text
		}
	}

	text := e.Transcript
	if text == "" {
		text = strings.TrimSpace(job.ResponseText)
	}
	if text == "" {
		e.State = types.StateDone
		res.State = p.finish(sctx, log, job.AnswerID, e, start)
		res.Enrichment = e
		return res
	}

	stage(types.StateAnalyzing)
	var (
		tr        capability.Translation
		sentiment types.Sentiment
		raw       []types.RawCategory
	)
	var g errgroup.Group
	g.Go(func() error { tr = p.analyzer.TranslateDetect(sctx, text); return nil })
	g.Go(func() error { sentiment = p.analyzer.Sentiment(sctx, text); return nil })
	g.Go(func() error {
		raw = p.analyzer.ExtractCategoriesWithHints(sctx, text, p.merger.Known(sctx, job.FormID))
		return nil
	})
	_ = g.Wait()

	e.Language = tr.Language
	if tr.Translated {
		e.TranslatedText = tr.Text
	}
	e.Sentiment = sentiment
	e.Categories = categories.Names(raw)

	if len(e.Categories) == 0 {
		e.State = types.StateDone
		res.State = p.finish(sctx, log, job.AnswerID, e, start)
		res.Enrichment = e
		return res
	}

	// Persist the answer before touching the aggregate so a crash mid merge
	// never leaves the answer looking unprocessed.
	stage(types.StateMerging)
	persisted := p.write(sctx, log, func(ctx context.Context) error {
		return p.answers.UpdateAnswerEnrichment(ctx, job.AnswerID, e)
	})

	agg, err := p.merger.MergeInto(sctx, job.FormID, raw, sentiment)
	final := types.StateDone
	if err != nil {
		log.WithError(err).Error("analytics merge failed")
		final = types.StateFailedPartial
	} else {
		res.Aggregate = &agg
	}
	if !persisted {
		final = types.StateFailedPartial
	}

	e.State = final
	if persisted {
		p.write(sctx, log, func(ctx context.Context) error {
			return p.answers.UpdateAnswerState(ctx, job.AnswerID, final)
		})
	} else {
		// one more attempt at the full row
		p.write(sctx, log, func(ctx context.Context) error {
			return p.answers.UpdateAnswerEnrichment(ctx, job.AnswerID, e)
		})
	}
	p.logDone(base, e, start)
	res.State = final
	res.Enrichment = e
	return res
}

// finish writes the enrichment with its terminal state and returns the
// state that actually applies.
func (p *Pipeline) finish(ctx context.Context, log *logger.Logger, answerID int64, e types.Enrichment, start time.Time) types.ProcessingState {
	ok := p.write(ctx, log, func(ctx context.Context) error {
		return p.answers.UpdateAnswerEnrichment(ctx, answerID, e)
	})
	if !ok {
		e.State = types.StateFailedPartial
	}
	p.logDone(log, e, start)
	return e.State
}

func (p *Pipeline) write(ctx context.Context, log *logger.Logger, op func(context.Context) error) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = p.writeRetry
	err := backoff.Retry(func() error {
		err := op(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		log.WithError(err).Error("failed to persist answer enrichment")
		return false
	}
	return true
}

func (p *Pipeline) logDone(log *logger.Logger, e types.Enrichment, start time.Time) {
	log.WithField("state", e.State).
		WithField("language", e.Language).
		WithField("sentiment", e.Sentiment).
		WithField("categories", len(e.Categories)).
		WithField("transcribed", e.Transcript != "").
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("answer enrichment finished")
}
