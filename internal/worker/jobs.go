package worker

import (
	"context"

	"github.com/vytor/vocabdrill/internal/models"
)

// DeckRestorer writes decks decoded from a backup document.
// Kept here so worker does not import services.
type DeckRestorer interface {
	RestoreDecks(ctx context.Context, decks []models.Deck) (int, error)
}

// RestoreBackupJob writes the decks of an uploaded backup.
type RestoreBackupJob struct {
	Restorer DeckRestorer
	Decks    []models.Deck
}

func (j *RestoreBackupJob) Name() string { return "restore_backup" }

func (j *RestoreBackupJob) Run(ctx context.Context) error {
	_, err := j.Restorer.RestoreDecks(ctx, j.Decks)
	return err
}
