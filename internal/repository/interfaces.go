package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vytor/vocabdrill/internal/models"
)

// ErrNotFound is returned by writes that target a missing row. Reads report a
// missing row as (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// ErrCardOwned is returned by Save when a card id is already stored under a
// different deck.
var ErrCardOwned = errors.New("card id belongs to another deck")

// DeckRepository handles deck, card and queue data access
type DeckRepository interface {
	Create(ctx context.Context, deck models.Deck) error
	Get(ctx context.Context, id string) (*models.Deck, error)
	List(ctx context.Context) ([]models.DeckSummary, error)
	Rename(ctx context.Context, id, name string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// Save replaces the deck's cards and queue with the given ones, creating
	// the deck row if it does not exist yet. An existing deck keeps its name.
	Save(ctx context.Context, deck models.Deck) error
	// CardOwners maps each stored card id among ids to its deck id.
	CardOwners(ctx context.Context, ids []string) (map[string]string, error)
	ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, error)
	CountCards(ctx context.Context, filter models.CardFilter) (int, error)
}

// StatsRepository handles daily review counters
type StatsRepository interface {
	RecordReview(ctx context.Context, day, cardID string, correct bool) error
	AddStudyTime(ctx context.Context, day string, seconds int) error
	Global(ctx context.Context) (*models.GlobalStat, error)
	DailyRange(ctx context.Context, from, to string) ([]models.DailyStat, error)
	// StudyDays returns days with any activity up to and including until, newest first.
	StudyDays(ctx context.Context, until string, limit int) ([]string, error)
}

// SessionLogRepository handles finished-session history
type SessionLogRepository interface {
	Insert(ctx context.Context, log models.SessionLog) (int64, error)
	ListByDeck(ctx context.Context, deckID string, limit int) ([]models.SessionLog, error)
}
