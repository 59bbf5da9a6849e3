// Package session drives study and exam sessions over a deck.
//
// Controllers are single-threaded state machines without I/O. Everything that
// must outlive a session is handed to an Observer, which the caller wires to
// the deck and stats stores.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/vytor/vocabdrill/internal/models"
)

var (
	ErrInvalidTransition = errors.New("session: action not allowed in current state")
	ErrCardNotFound      = errors.New("session: card not in deck")
	ErrSessionClosed     = errors.New("session: closed")
)

// Observer receives the side effects of a session. Calls are fire-and-forget:
// a controller never inspects what the observer did with them.
type Observer interface {
	OnReview(ctx context.Context, cardID string, isCorrect bool)
	OnTimeUpdate(ctx context.Context, deltaSeconds int)
	OnUpdateDeck(ctx context.Context, deck models.Deck)
	OnSessionComplete(ctx context.Context, durationSeconds, correct, wrong int)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) OnReview(context.Context, string, bool)           {}
func (NopObserver) OnTimeUpdate(context.Context, int)                {}
func (NopObserver) OnUpdateDeck(context.Context, models.Deck)        {}
func (NopObserver) OnSessionComplete(context.Context, int, int, int) {}

type options struct {
	now func() time.Time
}

// Option configures a controller.
type Option func(*options)

// WithClock overrides the time source used for LastReviewedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// workingDeck is a private copy of a deck with an id index over its cards.
type workingDeck struct {
	deck  models.Deck
	index map[string]int
}

func newWorkingDeck(d models.Deck) *workingDeck {
	w := &workingDeck{deck: d.Clone()}
	w.reindex()
	return w
}

func (w *workingDeck) reindex() {
	w.index = make(map[string]int, len(w.deck.Cards))
	for i, c := range w.deck.Cards {
		w.index[c.ID] = i
	}
}

func (w *workingDeck) card(id string) (models.Card, bool) {
	i, ok := w.index[id]
	if !ok {
		return models.Card{}, false
	}
	return w.deck.Cards[i], true
}

func (w *workingDeck) put(c models.Card) {
	if i, ok := w.index[c.ID]; ok {
		w.deck.Cards[i] = c
	}
}

func (w *workingDeck) remove(id string) bool {
	i, ok := w.index[id]
	if !ok {
		return false
	}
	w.deck.Cards = append(w.deck.Cards[:i], w.deck.Cards[i+1:]...)
	w.deck.Queue = without(w.deck.Queue, id)
	w.reindex()
	return true
}

// sanitizeQueue drops ids without a card and repeated ids, keeping first occurrences.
func (w *workingDeck) sanitizeQueue() (dropped int) {
	seen := make(map[string]bool, len(w.deck.Queue))
	out := make([]string, 0, len(w.deck.Queue))
	for _, id := range w.deck.Queue {
		if _, ok := w.index[id]; !ok || seen[id] {
			dropped++
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	w.deck.Queue = out
	return dropped
}

func (w *workingDeck) snapshot() models.Deck {
	return w.deck.Clone()
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
