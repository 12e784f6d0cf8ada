package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-forms-go/internal/categories"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/types"
)

// ErrLockTimeout means another merge for the same form held the form's
// lock for longer than the configured wait.
var ErrLockTimeout = errors.New("aggregator: timed out waiting for form lock")

// Store is the persistence the Aggregator needs. MergeFormAnalytics must
// apply fn to the active aggregate and write the result as one unit.
type Store interface {
	ReadFormAnalytics(ctx context.Context, formID int64) (types.FormAnalytics, error)
	MergeFormAnalytics(ctx context.Context, formID int64, fn func([]types.Category) ([]types.Category, bool)) (types.FormAnalytics, error)
}

// Aggregator serializes read-merge-write cycles per form. Merges for
// different forms run in parallel.
type Aggregator struct {
	store    Store
	lockWait time.Duration
	log      *logger.Logger

	mu    sync.Mutex
	locks map[int64]*formLock
}

type formLock struct {
	sem  chan struct{}
	refs int
}

func New(store Store, lockWait time.Duration, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		lockWait: lockWait,
		log:      log,
		locks:    make(map[int64]*formLock),
	}
}

// MergeInto folds one response's categories into the form's aggregate.
// An empty raw list leaves the aggregate untouched.
func (a *Aggregator) MergeInto(ctx context.Context, formID int64, raw []types.RawCategory, sentiment types.Sentiment) (types.FormAnalytics, error) {
	if len(categories.Names(raw)) == 0 {
		return a.store.ReadFormAnalytics(ctx, formID)
	}

	if err := a.acquire(ctx, formID); err != nil {
		return types.FormAnalytics{}, err
	}
	defer a.release(formID)

	fa, err := a.store.MergeFormAnalytics(ctx, formID, func(current []types.Category) ([]types.Category, bool) {
		return categories.Merge(current, raw, sentiment)
	})
	if err != nil {
		return types.FormAnalytics{}, fmt.Errorf("merge form %d: %w", formID, err)
	}

	a.log.WithField("form_id", formID).
		WithField("total_responses", fa.TotalResponses).
		WithField("categories", len(fa.Categories)).
		Debug("form analytics merged")
	return fa, nil
}

// Known returns the categories the form currently tracks, or nil when it
// has none or they cannot be read. The read takes no lock, so the result
// is only good as a hint.
func (a *Aggregator) Known(ctx context.Context, formID int64) []types.Category {
	fa, err := a.store.ReadFormAnalytics(ctx, formID)
	if err != nil {
		return nil
	}
	return fa.Categories
}

func (a *Aggregator) acquire(ctx context.Context, formID int64) error {
	a.mu.Lock()
	l, ok := a.locks[formID]
	if !ok {
		l = &formLock{sem: make(chan struct{}, 1)}
		a.locks[formID] = l
	}
	l.refs++
	a.mu.Unlock()

	timer := time.NewTimer(a.lockWait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timer.C:
		a.unref(formID, l)
		return ErrLockTimeout
	case <-ctx.Done():
		a.unref(formID, l)
		return ctx.Err()
	}
}

func (a *Aggregator) release(formID int64) {
	a.mu.Lock()
	l := a.locks[formID]
	a.mu.Unlock()
	<-l.sem
	a.unref(formID, l)
}

func (a *Aggregator) unref(formID int64, l *formLock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(a.locks, formID)
	}
}
