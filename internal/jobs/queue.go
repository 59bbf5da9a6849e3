package jobs

import "github.com/vytor/vocabdrill/internal/models"

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	EnqueueRestore(decks []models.Deck) error
}
