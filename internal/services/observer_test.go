package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/testutil"
	"github.com/vytor/vocabdrill/internal/testutil/mocks"
)

func newTestObserver() (*storeObserver, *mocks.MockDeckRepository, *mocks.MockStatsRepository, *mocks.MockSessionLogRepository) {
	decks := new(mocks.MockDeckRepository)
	stats := new(mocks.MockStatsRepository)
	logs := new(mocks.MockSessionLogRepository)
	return &storeObserver{
		deckID: "d1",
		mode:   models.ModeStudy,
		decks:  decks,
		stats:  stats,
		logs:   logs,
		now:    func() time.Time { return fixedNow },
	}, decks, stats, logs
}

func TestStoreObserver_ForwardsEvents(t *testing.T) {
	obs, decks, stats, logs := newTestObserver()
	ctx := context.Background()
	day := DayKey(fixedNow)

	stats.On("RecordReview", mock.Anything, day, "A", true).Return(nil).Once()
	stats.On("AddStudyTime", mock.Anything, day, 1).Return(nil).Once()
	decks.On("Save", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.ID == "d1" && d.UpdatedAt.Equal(fixedNow)
	})).Return(nil).Once()
	logs.On("Insert", mock.Anything, models.SessionLog{
		DeckID: "d1", Mode: models.ModeStudy, DurationSeconds: 30, Correct: 2, Wrong: 1, EndedAt: fixedNow,
	}).Return(int64(1), nil).Once()

	obs.OnReview(ctx, "A", true)
	obs.OnTimeUpdate(ctx, 1)
	obs.OnUpdateDeck(ctx, testutil.Deck("d1", "A"))
	obs.OnSessionComplete(ctx, 30, 2, 1)

	decks.AssertExpectations(t)
	stats.AssertExpectations(t)
	logs.AssertExpectations(t)
}

func TestStoreObserver_SwallowsStoreErrors(t *testing.T) {
	obs, decks, stats, logs := newTestObserver()
	boom := stderrors.New("database is locked")

	stats.On("RecordReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)
	stats.On("AddStudyTime", mock.Anything, mock.Anything, mock.Anything).Return(boom)
	decks.On("Save", mock.Anything, mock.Anything).Return(boom)
	logs.On("Insert", mock.Anything, mock.Anything).Return(int64(0), boom)

	assert.NotPanics(t, func() {
		ctx := context.Background()
		obs.OnReview(ctx, "A", false)
		obs.OnTimeUpdate(ctx, 1)
		obs.OnUpdateDeck(ctx, testutil.Deck("d1"))
		obs.OnSessionComplete(ctx, 1, 0, 0)
	})
}

func TestStoreObserver_WritesSurviveCancelledRequest(t *testing.T) {
	obs, decks, _, _ := newTestObserver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decks.On("Save", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).Return(nil).Once()

	obs.OnUpdateDeck(ctx, testutil.Deck("d1"))
	decks.AssertExpectations(t)
}
