package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/vocabdrill/internal/backup"
	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository/sqlite"
	"github.com/vytor/vocabdrill/internal/testutil"
	"github.com/vytor/vocabdrill/internal/testutil/mocks"
	"github.com/vytor/vocabdrill/internal/worker"
)

func TestBackupService_RestoreQueuesDecodedDecks(t *testing.T) {
	queue := new(mocks.MockJobQueue)
	queue.On("EnqueueRestore", mock.MatchedBy(func(decks []models.Deck) bool {
		return len(decks) == 1 && decks[0].ID == "d1" && len(decks[0].Queue) == 1
	})).Return(nil)
	svc := NewBackupService(new(mocks.MockDeckRepository), queue, nil)

	doc := `{"version": 2, "decks": [{"id": "d1", "name": "one", "cards": [{"id": "a", "english": "x", "chinese": "y"}], "queue": ["a", "ghost"]}]}`
	n, err := svc.Restore(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	queue.AssertExpectations(t)
}

func TestBackupService_RestoreRejectsBadDocuments(t *testing.T) {
	svc := NewBackupService(new(mocks.MockDeckRepository), new(mocks.MockJobQueue), nil)
	ctx := context.Background()

	_, err := svc.Restore(ctx, strings.NewReader("not json"))
	requireAppError(t, err, errors.ErrCodeBadRequest)

	_, err = svc.Restore(ctx, strings.NewReader(`{"version": 99, "decks": []}`))
	requireAppError(t, err, errors.ErrCodeValidation)

	_, err = svc.Restore(ctx, strings.NewReader(`{"version": 2, "decks": []}`))
	requireAppError(t, err, errors.ErrCodeValidation)
}

func TestBackupService_RestoreQueueFull(t *testing.T) {
	queue := new(mocks.MockJobQueue)
	queue.On("EnqueueRestore", mock.Anything).Return(worker.ErrQueueFull)
	svc := NewBackupService(new(mocks.MockDeckRepository), queue, nil)

	_, err := svc.Restore(context.Background(), strings.NewReader(`{"version": 2, "decks": [{"id": "d1", "name": "x"}]}`))
	requireAppError(t, err, errors.ErrCodeUnavailable)
}

func TestBackupService_ExportRestoreRoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	ctx := context.Background()
	decks := sqlite.NewDeckRepository(db)

	original := testutil.Deck("d1", "a", "b")
	reviewed := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)
	original.Cards[0].ConsecutiveWrong = 2
	original.Cards[0].TotalReviews = 4
	original.Cards[0].LastReviewedAt = &reviewed
	original.Queue = []string{"b", "a"}
	require.NoError(t, decks.Create(ctx, original))

	svc := NewBackupService(decks, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))

	doc, err := backup.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, doc.Decks, 1)

	// wipe and restore into the same database
	require.NoError(t, decks.Delete(ctx, "d1"))
	locker := &fakeLocker{}
	restorer := NewBackupService(decks, nil, locker)
	n, err := restorer.RestoreDecks(ctx, doc.Decks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"d1"}, locker.ended)

	got, err := decks.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deck d1", got.Name)
	assert.Equal(t, []string{"b", "a"}, got.Queue)
	a, _ := got.Card("a")
	assert.Equal(t, 2, a.ConsecutiveWrong)
	assert.Equal(t, 4, a.TotalReviews)
	require.NotNil(t, a.LastReviewedAt)
	assert.True(t, reviewed.Equal(*a.LastReviewedAt))
}

func TestBackupService_RestoreRenamesExistingDeck(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	ctx := context.Background()
	decks := sqlite.NewDeckRepository(db)
	require.NoError(t, decks.Create(ctx, testutil.Deck("d1", "a")))

	incoming := testutil.Deck("d1", "z")
	incoming.Name = "restored"
	_, err := NewBackupService(decks, nil, nil).RestoreDecks(ctx, []models.Deck{incoming})
	require.NoError(t, err)

	got, err := decks.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "restored", got.Name)
	assert.Equal(t, []string{"z"}, got.Queue)
	assert.Len(t, got.Cards, 1)
}

func TestBackupService_RestoreReassignsCardOwnedByAnotherDeck(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	ctx := context.Background()
	decks := sqlite.NewDeckRepository(db)

	existing := testutil.Deck("d1", "1")
	existing.Cards[0].ConsecutiveCorrect = 3
	require.NoError(t, decks.Create(ctx, existing))

	incoming := testutil.Deck("d2", "1", "2")
	incoming.Cards[0].English = "pear"
	incoming.Queue = []string{"2", "1"}
	locker := &fakeLocker{}
	n, err := NewBackupService(decks, nil, locker).RestoreDecks(ctx, []models.Deck{incoming})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, locker.locks, locker.unlocks)
	assert.Equal(t, []string{"1"}, incoming.Queue[1:], "input decks are not modified")

	d1, err := decks.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, d1.Queue)
	one, ok := d1.Card("1")
	require.True(t, ok)
	assert.Equal(t, "en 1", one.English)
	assert.Equal(t, 3, one.ConsecutiveCorrect)

	d2, err := decks.Get(ctx, "d2")
	require.NoError(t, err)
	require.Len(t, d2.Cards, 2)
	require.Len(t, d2.Queue, 2)
	assert.Equal(t, "2", d2.Queue[0])
	pear, ok := d2.Card(d2.Queue[1])
	require.True(t, ok)
	assert.NotEqual(t, "1", pear.ID)
	assert.Equal(t, "pear", pear.English)
}

func TestBackupService_RestoreSameDeckKeepsCardIDs(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	ctx := context.Background()
	decks := sqlite.NewDeckRepository(db)
	require.NoError(t, decks.Create(ctx, testutil.Deck("d1", "a", "b")))

	incoming := testutil.Deck("d1", "a", "b")
	incoming.Cards[1].TotalReviews = 9
	_, err := NewBackupService(decks, nil, nil).RestoreDecks(ctx, []models.Deck{incoming})
	require.NoError(t, err)

	got, err := decks.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Queue)
	b, ok := got.Card("b")
	require.True(t, ok)
	assert.Equal(t, 9, b.TotalReviews)
}
