package services

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
	"github.com/vytor/vocabdrill/internal/testutil"
	"github.com/vytor/vocabdrill/internal/testutil/mocks"
)

type fakeLocker struct {
	busy    map[string]bool
	ended   []string
	locks   int
	unlocks int
}

func (f *fakeLocker) Busy(deckID string) bool { return f.busy[deckID] }

func (f *fakeLocker) LockDeck(string) func() {
	f.locks++
	return func() { f.unlocks++ }
}

func (f *fakeLocker) EndDeck(_ context.Context, deckID string) error {
	f.ended = append(f.ended, deckID)
	delete(f.busy, deckID)
	return nil
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestDeckService(decks *mocks.MockDeckRepository, logs *mocks.MockSessionLogRepository, locker DeckLocker) *deckService {
	n := 0
	return &deckService{
		deckRepo: decks,
		logRepo:  logs,
		locker:   locker,
		now:      func() time.Time { return fixedNow },
		newID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := errors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestDeckService_CreateDeck(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	svc := newTestDeckService(decks, nil, nil)

	decks.On("Create", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.ID == "id-1" && d.Name == "HSK 1" && len(d.Queue) == 0
	})).Return(nil)

	deck, err := svc.CreateDeck(context.Background(), "  HSK 1 ")
	require.NoError(t, err)
	assert.Equal(t, "HSK 1", deck.Name)
	assert.Equal(t, fixedNow, deck.CreatedAt)
	decks.AssertExpectations(t)
}

func TestDeckService_CreateDeckValidation(t *testing.T) {
	svc := newTestDeckService(new(mocks.MockDeckRepository), nil, nil)

	_, err := svc.CreateDeck(context.Background(), "   ")
	requireAppError(t, err, errors.ErrCodeValidation)

	_, err = svc.CreateDeck(context.Background(), strings.Repeat("x", maxDeckNameLength+1))
	requireAppError(t, err, errors.ErrCodeValidation)
}

func TestDeckService_GetDeckNotFound(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	decks.On("Get", mock.Anything, "missing").Return(nil, nil)
	svc := newTestDeckService(decks, nil, nil)

	_, err := svc.GetDeck(context.Background(), "missing")
	requireAppError(t, err, errors.ErrCodeNotFound)
}

func TestDeckService_GetDeckRepoError(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	decks.On("Get", mock.Anything, "d1").Return(nil, stderrors.New("disk"))
	svc := newTestDeckService(decks, nil, nil)

	_, err := svc.GetDeck(context.Background(), "d1")
	requireAppError(t, err, errors.ErrCodeInternal)
}

func TestDeckService_RenameMissingDeck(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	decks.On("Rename", mock.Anything, "d1", "new", fixedNow).Return(repository.ErrNotFound)
	svc := newTestDeckService(decks, nil, nil)

	_, err := svc.RenameDeck(context.Background(), "d1", "new")
	requireAppError(t, err, errors.ErrCodeNotFound)
}

func TestDeckService_DeleteDeckEndsLiveSession(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	decks.On("Delete", mock.Anything, "d1").Return(nil)
	locker := &fakeLocker{busy: map[string]bool{"d1": true}}
	svc := newTestDeckService(decks, nil, locker)

	require.NoError(t, svc.DeleteDeck(context.Background(), "d1"))
	assert.Equal(t, []string{"d1"}, locker.ended)
	assert.Equal(t, 1, locker.locks)
	assert.Equal(t, 1, locker.unlocks)
	decks.AssertExpectations(t)
}

func TestDeckService_AddCardAppendsToQueue(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	decks.On("Save", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return len(d.Cards) == 2 && assert.ObjectsAreEqual([]string{"a", "id-1"}, d.Queue)
	})).Return(nil)
	svc := newTestDeckService(decks, nil, &fakeLocker{})

	card, err := svc.AddCard(context.Background(), "d1", CardInput{English: "to drink", Chinese: "喝", Note: " verb "})
	require.NoError(t, err)
	assert.Equal(t, "id-1", card.ID)
	assert.Equal(t, "verb", card.Note)
	assert.Zero(t, card.TotalReviews)
	assert.Nil(t, card.LastReviewedAt)
	decks.AssertExpectations(t)
}

func TestDeckService_CardEditsRefusedWhileStudying(t *testing.T) {
	locker := &fakeLocker{busy: map[string]bool{"d1": true}}
	svc := newTestDeckService(new(mocks.MockDeckRepository), nil, locker)
	ctx := context.Background()
	defer func() {
		assert.Equal(t, 4, locker.locks)
		assert.Equal(t, locker.locks, locker.unlocks, "refused edits release the deck")
	}()

	_, err := svc.AddCard(ctx, "d1", CardInput{English: "a", Chinese: "b"})
	requireAppError(t, err, errors.ErrCodeConflict)

	_, err = svc.UpdateCard(ctx, "d1", "a", CardInput{English: "a", Chinese: "b"})
	requireAppError(t, err, errors.ErrCodeConflict)

	requireAppError(t, svc.DeleteCard(ctx, "d1", "a"), errors.ErrCodeConflict)

	_, err = svc.ImportCards(ctx, "d1", strings.NewReader("a | b"))
	requireAppError(t, err, errors.ErrCodeConflict)
}

func TestDeckService_CardEditHoldsDeckUntilSaved(t *testing.T) {
	locker := &fakeLocker{}
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	decks.On("Save", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		assert.Equal(t, 1, locker.locks)
		assert.Zero(t, locker.unlocks, "save runs with the deck locked")
	}).Return(nil)
	svc := newTestDeckService(decks, nil, locker)

	require.NoError(t, svc.DeleteCard(context.Background(), "d1", "a"))
	assert.Equal(t, 1, locker.unlocks)
	decks.AssertExpectations(t)
}

func TestDeckService_UpdateCardKeepsCounters(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a", "b")
	deck.Cards[1].ConsecutiveCorrect = 3
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	decks.On("Save", mock.Anything, mock.Anything).Return(nil)
	svc := newTestDeckService(decks, nil, nil)

	card, err := svc.UpdateCard(context.Background(), "d1", "b", CardInput{English: "new", Chinese: "新"})
	require.NoError(t, err)
	assert.Equal(t, "new", card.English)
	assert.Equal(t, 3, card.ConsecutiveCorrect)

	_, err = svc.UpdateCard(context.Background(), "d1", "zzz", CardInput{English: "x", Chinese: "y"})
	requireAppError(t, err, errors.ErrCodeNotFound)
}

func TestDeckService_DeleteCardRemovesFromQueue(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a", "b", "c")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	decks.On("Save", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		_, stillThere := d.Card("b")
		return !stillThere && assert.ObjectsAreEqual([]string{"a", "c"}, d.Queue)
	})).Return(nil)
	svc := newTestDeckService(decks, nil, nil)

	require.NoError(t, svc.DeleteCard(context.Background(), "d1", "b"))
	decks.AssertExpectations(t)
}

func TestDeckService_ImportCards(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a", "b")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)

	var saved models.Deck
	decks.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(models.Deck)
	}).Return(nil)
	svc := newTestDeckService(decks, nil, nil)

	input := strings.Join([]string{
		"# comment",
		"apple | 苹果",
		"pear | 梨 | fruit | -2 | 0",
		"broken line",
		"",
		"water | 水 | | 3 | 1",
	}, "\n")

	res, err := svc.ImportCards(context.Background(), "d1", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "line 4")
	assert.Equal(t, 5, res.QueueLength)

	// ids are handed out in line order: apple=id-1, pear=id-2, water=id-3
	assert.Equal(t, []string{"id-2", "id-3", "a", "b", "id-1"}, saved.Queue)
	pear, ok := saved.Card("id-2")
	require.True(t, ok)
	assert.Equal(t, 2, pear.ConsecutiveWrong)
	water, _ := saved.Card("id-3")
	assert.Equal(t, 3, water.ConsecutiveCorrect)
}

func TestDeckService_ImportNothingSkipsSave(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	svc := newTestDeckService(decks, nil, nil)

	res, err := svc.ImportCards(context.Background(), "d1", strings.NewReader("# only comments\n"))
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Equal(t, 1, res.QueueLength)
	decks.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDeckService_ExportCards(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1", "a", "b")
	deck.Queue = []string{"b"}
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	svc := newTestDeckService(decks, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCards(context.Background(), "d1", &buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "en b | zh b |  | 0 | 0", lines[2])
	assert.Equal(t, "en a | zh a |  | 0 | ", lines[3])
}

func TestDeckService_ListCardsRejectsNegativePaging(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	deck := testutil.Deck("d1")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	svc := newTestDeckService(decks, nil, nil)

	_, _, err := svc.ListCards(context.Background(), models.CardFilter{DeckID: "d1", Limit: -1})
	requireAppError(t, err, errors.ErrCodeBadRequest)
}

func TestDeckService_SessionLogs(t *testing.T) {
	decks := new(mocks.MockDeckRepository)
	logs := new(mocks.MockSessionLogRepository)
	deck := testutil.Deck("d1")
	decks.On("Get", mock.Anything, "d1").Return(&deck, nil)
	logs.On("ListByDeck", mock.Anything, "d1", 10).Return([]models.SessionLog{{ID: 1, DeckID: "d1"}}, nil)
	svc := newTestDeckService(decks, logs, nil)

	got, err := svc.SessionLogs(context.Background(), "d1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	logs.AssertExpectations(t)
}
