package session_test

import (
	"context"
	"fmt"

	"github.com/vytor/vocabdrill/internal/models"
)

type reviewEvent struct {
	cardID  string
	correct bool
}

type completeEvent struct {
	duration, correct, wrong int
}

// recorder captures observer calls in order.
type recorder struct {
	events    []string
	reviews   []reviewEvent
	decks     []models.Deck
	ticks     []int
	completes []completeEvent
}

func (r *recorder) OnReview(_ context.Context, cardID string, isCorrect bool) {
	r.events = append(r.events, "review")
	r.reviews = append(r.reviews, reviewEvent{cardID, isCorrect})
}

func (r *recorder) OnTimeUpdate(_ context.Context, delta int) {
	r.events = append(r.events, "tick")
	r.ticks = append(r.ticks, delta)
}

func (r *recorder) OnUpdateDeck(_ context.Context, deck models.Deck) {
	r.events = append(r.events, "deck")
	r.decks = append(r.decks, deck)
}

func (r *recorder) OnSessionComplete(_ context.Context, duration, correct, wrong int) {
	r.events = append(r.events, "complete")
	r.completes = append(r.completes, completeEvent{duration, correct, wrong})
}

func (r *recorder) lastDeck() models.Deck {
	return r.decks[len(r.decks)-1]
}

func newDeck(ids ...string) models.Deck {
	d := models.Deck{ID: "deck-1", Name: "test"}
	for _, id := range ids {
		d.Cards = append(d.Cards, models.Card{
			ID:      id,
			English: fmt.Sprintf("english %s", id),
			Chinese: fmt.Sprintf("chinese %s", id),
		})
		d.Queue = append(d.Queue, id)
	}
	return d
}

func cardIn(d models.Deck, id string) models.Card {
	c, _ := d.Card(id)
	return c
}
