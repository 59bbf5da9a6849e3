package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/vytor/vocabdrill/internal/backup"
	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/jobs"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
	"github.com/vytor/vocabdrill/internal/worker"
)

// BackupService exports every deck as one document and restores such documents.
type BackupService interface {
	Export(ctx context.Context, w io.Writer) error
	// Restore validates the document synchronously and queues the write.
	// It returns the number of decks queued.
	Restore(ctx context.Context, r io.Reader) (int, error)
	RestoreDecks(ctx context.Context, decks []models.Deck) (int, error)
}

type backupService struct {
	deckRepo repository.DeckRepository
	queue    jobs.JobQueue
	locker   DeckLocker
	now      func() time.Time
}

var _ worker.DeckRestorer = (*backupService)(nil)

// NewBackupService creates a new BackupService
func NewBackupService(deckRepo repository.DeckRepository, queue jobs.JobQueue, locker DeckLocker) BackupService {
	return &backupService{deckRepo: deckRepo, queue: queue, locker: locker, now: time.Now}
}

func (s *backupService) Export(ctx context.Context, w io.Writer) error {
	log := logger.FromContext(ctx)

	summaries, err := s.deckRepo.List(ctx)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return errors.NewInternalError(err)
	}

	decks := make([]models.Deck, 0, len(summaries))
	for _, sum := range summaries {
		deck, err := s.deckRepo.Get(ctx, sum.ID)
		if err != nil {
			log.Error("failed to load deck %s: %v", sum.ID, err)
			return errors.NewInternalError(err)
		}
		if deck == nil {
			continue // deleted while exporting
		}
		decks = append(decks, *deck)
	}

	log.Info("exporting backup: decks=%d", len(decks))
	if err := backup.Encode(w, decks, s.now()); err != nil {
		log.Error("failed to encode backup: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *backupService) Restore(ctx context.Context, r io.Reader) (int, error) {
	log := logger.FromContext(ctx)

	doc, err := backup.Decode(r)
	if err != nil {
		if stderrors.Is(err, backup.ErrUnsupportedVersion) {
			return 0, errors.NewValidationError("version", err.Error())
		}
		log.Warn("rejecting backup: %v", err)
		return 0, errors.NewBadRequestError(fmt.Sprintf("invalid backup document: %v", err))
	}
	if len(doc.Decks) == 0 {
		return 0, errors.NewValidationError("decks", "backup contains no decks")
	}
	if s.queue == nil {
		return 0, errors.NewUnavailableError("restore queue is not running", nil)
	}

	if err := s.queue.EnqueueRestore(doc.Decks); err != nil {
		log.Warn("failed to enqueue restore: %v", err)
		return 0, errors.NewUnavailableError("restore queue is busy, try again later", err)
	}
	log.Info("restore queued: version=%d, decks=%d", doc.Version, len(doc.Decks))
	return len(doc.Decks), nil
}

// RestoreDecks upserts each deck by id. Live sessions on a restored deck are
// ended first so they cannot overwrite the restored contents. Cards whose id
// is already stored under another deck get a fresh id.
func (s *backupService) RestoreDecks(ctx context.Context, decks []models.Deck) (int, error) {
	log := logger.FromContext(ctx)

	restored := 0
	for _, d := range decks {
		if err := s.restoreDeck(ctx, d.Clone()); err != nil {
			return restored, err
		}
		restored++
	}
	log.Info("restore finished: decks=%d", restored)
	return restored, nil
}

func (s *backupService) restoreDeck(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx)

	if s.locker != nil {
		unlock := s.locker.LockDeck(d.ID)
		defer unlock()
		if err := s.locker.EndDeck(ctx, d.ID); err != nil {
			log.Warn("failed to end live session on deck %s: %v", d.ID, err)
		}
	}

	ids := make([]string, len(d.Cards))
	for i, c := range d.Cards {
		ids[i] = c.ID
	}
	owners, err := s.deckRepo.CardOwners(ctx, ids)
	if err != nil {
		return fmt.Errorf("look up card owners for deck %s: %w", d.ID, err)
	}
	if n := backup.Rekey(&d, func(id string) bool {
		owner, ok := owners[id]
		return ok && owner != d.ID
	}); n > 0 {
		log.Warn("deck %s: %d card ids belong to other decks and were reassigned", d.ID, n)
	}

	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	for i := range d.Cards {
		if d.Cards[i].CreatedAt.IsZero() {
			d.Cards[i].CreatedAt = now
		}
	}

	if err := s.deckRepo.Save(ctx, d); err != nil {
		return fmt.Errorf("restore deck %s: %w", d.ID, err)
	}
	// Save keeps the name of an existing deck.
	if err := s.deckRepo.Rename(ctx, d.ID, d.Name, now); err != nil {
		return fmt.Errorf("rename restored deck %s: %w", d.ID, err)
	}
	log.Debug("restored deck: id=%s, cards=%d, queue=%d", d.ID, len(d.Cards), len(d.Queue))
	return nil
}
