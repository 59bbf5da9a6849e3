package services

import (
	"context"
	"time"

	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

// DayKey is the stats bucket for t in local time.
func DayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// storeObserver persists session events for one deck. Write failures are
// logged and dropped; the session keeps running on its working copy and the
// next deck write-back carries the full state again.
type storeObserver struct {
	deckID string
	mode   string
	decks  repository.DeckRepository
	stats  repository.StatsRepository
	logs   repository.SessionLogRepository
	now    func() time.Time
}

func (o *storeObserver) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx).WithFields(map[string]any{"deck_id": o.deckID, "mode": o.mode})
}

func (o *storeObserver) OnReview(ctx context.Context, cardID string, isCorrect bool) {
	ctx = context.WithoutCancel(ctx)
	if err := o.stats.RecordReview(ctx, DayKey(o.now()), cardID, isCorrect); err != nil {
		o.log(ctx).Error("failed to record review for card %s: %v", cardID, err)
	}
}

func (o *storeObserver) OnTimeUpdate(ctx context.Context, deltaSeconds int) {
	ctx = context.WithoutCancel(ctx)
	if err := o.stats.AddStudyTime(ctx, DayKey(o.now()), deltaSeconds); err != nil {
		o.log(ctx).Error("failed to add study time: %v", err)
	}
}

func (o *storeObserver) OnUpdateDeck(ctx context.Context, deck models.Deck) {
	ctx = context.WithoutCancel(ctx)
	deck.UpdatedAt = o.now()
	if err := o.decks.Save(ctx, deck); err != nil {
		o.log(ctx).Error("failed to write back deck: %v", err)
	}
}

func (o *storeObserver) OnSessionComplete(ctx context.Context, durationSeconds, correct, wrong int) {
	ctx = context.WithoutCancel(ctx)
	entry := models.SessionLog{
		DeckID:          o.deckID,
		Mode:            o.mode,
		DurationSeconds: durationSeconds,
		Correct:         correct,
		Wrong:           wrong,
		EndedAt:         o.now(),
	}
	if _, err := o.logs.Insert(ctx, entry); err != nil {
		o.log(ctx).Error("failed to store session log: %v", err)
	}
	o.log(ctx).Info("session complete: duration=%ds, correct=%d, wrong=%d", durationSeconds, correct, wrong)
}
