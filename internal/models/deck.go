package models

import "time"

// Deck owns an unordered card collection and the pending study queue.
// Every id in Queue refers to a card in Cards; the converse need not hold.
type Deck struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Cards     []Card    `json:"cards"`
	Queue     []string  `json:"queue"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeckSummary is a deck without its cards, used for listings.
type DeckSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CardCount   int       `json:"card_count"`
	QueueLength int       `json:"queue_length"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Card returns the card with the given id.
func (d *Deck) Card(id string) (Card, bool) {
	for _, c := range d.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = make([]Card, len(d.Cards))
	for i, c := range d.Cards {
		if c.LastReviewedAt != nil {
			t := *c.LastReviewedAt
			c.LastReviewedAt = &t
		}
		out.Cards[i] = c
	}
	out.Queue = append([]string(nil), d.Queue...)
	return out
}
