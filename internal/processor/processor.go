// Package processor is the answer intake service: it stores submissions,
// triggers their enrichment and serves the enriched views.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-forms-go/internal/actionable"
	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/blobstore"
	"voice-forms-go/internal/dispatch"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/pipeline"
	"voice-forms-go/internal/types"
)

var ErrInvalidSubmission = errors.New("processor: invalid submission")

// parkTimeout bounds storing a recording whose enrichment could not be
// scheduled.
const parkTimeout = 30 * time.Second

type Store interface {
	CreateSession(ctx context.Context, formID, ownerID int64) (types.ResponseSession, error)
	GetSession(ctx context.Context, id int64) (types.ResponseSession, error)
	CreateAnswer(ctx context.Context, a *types.Answer, final bool) error
	UpdateAnswerAudio(ctx context.Context, id int64, ref string) error
	ListAnswersBySession(ctx context.Context, sessionID int64) ([]types.Answer, error)
	ListPendingAnswers(ctx context.Context, formID int64, limit int) ([]types.Answer, error)
	ReadFormAnalytics(ctx context.Context, formID int64) (types.FormAnalytics, error)
	DeactivateFormAnalytics(ctx context.Context, formID int64) error
}

type Queue interface {
	Enqueue(job pipeline.Job) (string, error)
	Submit(ctx context.Context, job pipeline.Job) (string, error)
}

type Service struct {
	store     Store
	queue     Queue
	blobs     blobstore.Store
	signedTTL time.Duration
	log       *logger.Logger
}

func New(store Store, queue Queue, blobs blobstore.Store, signedTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		queue:     queue,
		blobs:     blobs,
		signedTTL: signedTTL,
		log:       log.With(map[string]any{"component": "processor"}),
	}
}

type SubmitRequest struct {
	SessionID        int64
	QuestionID       int64
	QuestionNumber   int
	ResponseText     string
	Audio            []byte
	AudioName        string
	AudioContentType string
	ResponseTime     *float64
	IsFinalAnswer    bool
}

func (s *Service) StartSession(ctx context.Context, formID, ownerID int64) (types.ResponseSession, error) {
	if formID <= 0 || ownerID <= 0 {
		return types.ResponseSession{}, fmt.Errorf("%w: form and owner are required", ErrInvalidSubmission)
	}
	return s.store.CreateSession(ctx, formID, ownerID)
}

// SubmitAnswer stores the raw answer and schedules its enrichment. Storage
// errors are returned to the caller. Scheduling never fails the request.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitRequest) (types.Answer, error) {
	a, err := s.storeAnswer(ctx, req)
	if err != nil {
		return types.Answer{}, err
	}
	s.EnqueueEnrichment(ctx, a, req.Audio, req.AudioName, req.AudioContentType, req.IsFinalAnswer)
	return a, nil
}

// ImportAnswer is SubmitAnswer for bulk loads. It waits for a free queue
// slot instead of leaving the answer for replay.
func (s *Service) ImportAnswer(ctx context.Context, req SubmitRequest) (types.Answer, error) {
	a, err := s.storeAnswer(ctx, req)
	if err != nil {
		return types.Answer{}, err
	}
	if _, err := s.queue.Submit(ctx, jobFor(a, req.Audio, req.AudioName, req.AudioContentType, req.IsFinalAnswer)); err != nil {
		return a, fmt.Errorf("schedule answer %d: %w", a.ID, err)
	}
	return a, nil
}

func (s *Service) storeAnswer(ctx context.Context, req SubmitRequest) (types.Answer, error) {
	if req.SessionID <= 0 {
		return types.Answer{}, fmt.Errorf("%w: session_id is required", ErrInvalidSubmission)
	}
	if req.QuestionNumber < 0 {
		return types.Answer{}, fmt.Errorf("%w: question_number must not be negative", ErrInvalidSubmission)
	}

	// the caller's buffer may be reused once the request ends
	text := strings.Clone(strings.TrimSpace(req.ResponseText))
	a := types.Answer{
		SessionID:      req.SessionID,
		QuestionID:     req.QuestionID,
		QuestionNumber: req.QuestionNumber,
		ResponseText:   text,
		ResponseTime:   req.ResponseTime,
	}
	if err := s.store.CreateAnswer(ctx, &a, req.IsFinalAnswer); err != nil {
		return types.Answer{}, err
	}
	return a, nil
}

// EnqueueEnrichment is fire and forget. When the pool is saturated the
// answer stays in the received state and can be replayed later. Its
// recording is stored first so the replay can still transcribe it.
func (s *Service) EnqueueEnrichment(ctx context.Context, a types.Answer, audio []byte, audioName, contentType string, final bool) {
	log := s.log.WithAnswer(a.FormID, a.ID)
	taskID, err := s.queue.Enqueue(jobFor(a, audio, audioName, contentType, final))
	if err != nil {
		log.WithError(err).Warn("enrichment not scheduled, answer left for replay")
		if len(audio) > 0 {
			s.parkRecording(ctx, log, a, audio, audioName, contentType)
		}
		return
	}
	log.WithField("task_id", taskID).WithField("has_audio", len(audio) > 0).Info("enrichment scheduled")
}

func (s *Service) parkRecording(ctx context.Context, log *logger.Logger, a types.Answer, audio []byte, audioName, contentType string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), parkTimeout)
	defer cancel()

	if contentType == "" {
		contentType = "audio/webm"
	}
	key := blobstore.AudioKey(a.OwnerID, a.FormID, a.SessionID, a.QuestionNumber, audioName)
	ref, err := s.blobs.PutObject(ctx, audio, key, contentType)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("recording lost, upload for replay failed")
		return
	}
	if err := s.store.UpdateAnswerAudio(ctx, a.ID, ref); err != nil {
		log.WithError(err).WithField("key", ref).Error("recording stored but not linked to its answer")
		return
	}
	log.WithField("key", ref).Info("recording stored for replay")
}

func (s *Service) Replay(ctx context.Context, formID int64, limit int) (int, error) {
	pending, err := s.store.ListPendingAnswers(ctx, formID, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range pending {
		if _, err := s.queue.Submit(ctx, jobFor(a, nil, "", "", false)); err != nil {
			if errors.Is(err, dispatch.ErrClosed) || ctx.Err() != nil {
				return n, err
			}
			s.log.WithAnswer(a.FormID, a.ID).WithError(err).Warn("replay submit failed")
			continue
		}
		n++
	}
	s.log.WithField("form_id", formID).WithField("replayed", n).Info("replay scheduled")
	return n, nil
}

// AnswerView is an answer with a short lived link to its recording.
type AnswerView struct {
	types.Answer
	AudioURL string `json:"audio_url,omitempty"`
}

// SessionAnswers lists a session's answers. One read grant covers the whole
// session and each recording gets its own signed link.
func (s *Service) SessionAnswers(ctx context.Context, sessionID int64) ([]AnswerView, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswersBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	views := make([]AnswerView, len(answers))
	var tok *blobstore.Token
	for i, a := range answers {
		views[i] = AnswerView{Answer: a}
		if a.AudioRef == "" {
			continue
		}
		if tok == nil {
			t, err := s.blobs.AuthorizeRead(ctx, blobstore.SessionPrefix(sess.OwnerID, sess.FormID, sess.ID), s.signedTTL)
			if err != nil {
				return nil, fmt.Errorf("authorize session %d: %w", sessionID, err)
			}
			tok = &t
		}
		link, err := s.blobs.SignedURL(ctx, a.AudioRef, *tok)
		if err != nil {
			s.log.WithAnswer(a.FormID, a.ID).WithError(err).Warn("could not sign audio link")
			continue
		}
		views[i].AudioURL = link
	}
	return views, nil
}

func (s *Service) FormAnalytics(ctx context.Context, formID int64) (types.FormAnalytics, error) {
	return s.store.ReadFormAnalytics(ctx, formID)
}

type AnalyticsSummary struct {
	aggregator.Summary
	Action actionable.ActionCard `json:"action"`
}

func (s *Service) FormSummary(ctx context.Context, formID int64) (AnalyticsSummary, error) {
	fa, err := s.store.ReadFormAnalytics(ctx, formID)
	if err != nil {
		return AnalyticsSummary{}, err
	}
	sum := aggregator.Summarize(fa)
	return AnalyticsSummary{Summary: sum, Action: actionable.Generate(sum)}, nil
}

func (s *Service) ResetFormAnalytics(ctx context.Context, formID int64) error {
	if err := s.store.DeactivateFormAnalytics(ctx, formID); err != nil {
		return err
	}
	s.log.WithField("form_id", formID).Info("form analytics deactivated")
	return nil
}

func jobFor(a types.Answer, audio []byte, audioName, contentType string, final bool) pipeline.Job {
	return pipeline.Job{
		AnswerID:         a.ID,
		FormID:           a.FormID,
		SessionID:        a.SessionID,
		OwnerID:          a.OwnerID,
		QuestionNumber:   a.QuestionNumber,
		ResponseText:     a.ResponseText,
		Audio:            audio,
		AudioName:        audioName,
		AudioContentType: contentType,
		AudioRef:         a.AudioRef,
		IsFinal:          final,
	}
}
