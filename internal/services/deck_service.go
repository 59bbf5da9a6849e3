package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vytor/vocabdrill/internal/cardtext"
	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

const (
	maxDeckNameLength = 200
	maxImportErrors   = 50
)

// CardInput carries the editable text of a card.
type CardInput struct {
	English string
	Chinese string
	Note    string
}

// DeckLocker reports and ends live sessions holding a deck. Card edits are
// refused while a session holds the deck because the session writes its own
// copy back after every answer.
//
// LockDeck serializes whole-deck writers with session starts on the same
// deck. Lock order is deck, then registry, then session.
type DeckLocker interface {
	Busy(deckID string) bool
	EndDeck(ctx context.Context, deckID string) error
	LockDeck(deckID string) (unlock func())
}

// DeckService handles deck and card business logic
type DeckService interface {
	ListDecks(ctx context.Context) ([]models.DeckSummary, error)
	CreateDeck(ctx context.Context, name string) (*models.Deck, error)
	GetDeck(ctx context.Context, id string) (*models.Deck, error)
	RenameDeck(ctx context.Context, id, name string) (*models.Deck, error)
	DeleteDeck(ctx context.Context, id string) error

	ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, int, error)
	AddCard(ctx context.Context, deckID string, in CardInput) (*models.Card, error)
	UpdateCard(ctx context.Context, deckID, cardID string, in CardInput) (*models.Card, error)
	DeleteCard(ctx context.Context, deckID, cardID string) error

	ImportCards(ctx context.Context, deckID string, r io.Reader) (*models.ImportResult, error)
	ExportCards(ctx context.Context, deckID string, w io.Writer) error
	SessionLogs(ctx context.Context, deckID string, limit int) ([]models.SessionLog, error)
}

type deckService struct {
	deckRepo repository.DeckRepository
	logRepo  repository.SessionLogRepository
	locker   DeckLocker
	now      func() time.Time
	newID    func() string
}

// NewDeckService creates a new DeckService. locker may be nil when no
// sessions run, e.g. in tools that only manage decks.
func NewDeckService(deckRepo repository.DeckRepository, logRepo repository.SessionLogRepository, locker DeckLocker) DeckService {
	return &deckService{
		deckRepo: deckRepo,
		logRepo:  logRepo,
		locker:   locker,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func validateDeckName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewValidationError("name", "cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxDeckNameLength {
		return "", errors.NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxDeckNameLength))
	}
	return name, nil
}

func validateCard(in CardInput) (CardInput, error) {
	in.English = strings.TrimSpace(in.English)
	in.Chinese = strings.TrimSpace(in.Chinese)
	in.Note = strings.TrimSpace(in.Note)
	if in.English == "" {
		return in, errors.NewValidationError("english", "cannot be empty")
	}
	if in.Chinese == "" {
		return in, errors.NewValidationError("chinese", "cannot be empty")
	}
	return in, nil
}

func (s *deckService) ListDecks(ctx context.Context) ([]models.DeckSummary, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing decks")

	decks, err := s.deckRepo.List(ctx)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if decks == nil {
		decks = []models.DeckSummary{}
	}
	return decks, nil
}

func (s *deckService) CreateDeck(ctx context.Context, name string) (*models.Deck, error) {
	log := logger.FromContext(ctx)

	name, err := validateDeckName(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deck := models.Deck{
		ID:        s.newID(),
		Name:      name,
		Cards:     []models.Card{},
		Queue:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	log.Info("creating deck: id=%s, name=%s", deck.ID, deck.Name)
	if err := s.deckRepo.Create(ctx, deck); err != nil {
		log.Error("failed to create deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return &deck, nil
}

func (s *deckService) GetDeck(ctx context.Context, id string) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting deck: id=%s", id)

	deck, err := s.deckRepo.Get(ctx, id)
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", id)
	}
	return deck, nil
}

func (s *deckService) RenameDeck(ctx context.Context, id, name string) (*models.Deck, error) {
	log := logger.FromContext(ctx)

	name, err := validateDeckName(name)
	if err != nil {
		return nil, err
	}
	log.Info("renaming deck: id=%s, name=%s", id, name)
	if err := s.deckRepo.Rename(ctx, id, name, s.now()); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("deck", id)
		}
		log.Error("failed to rename deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return s.GetDeck(ctx, id)
}

func (s *deckService) DeleteDeck(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)
	log.Info("deleting deck: id=%s", id)

	if s.locker != nil {
		unlock := s.locker.LockDeck(id)
		defer unlock()
		if s.locker.Busy(id) {
			if err := s.locker.EndDeck(ctx, id); err != nil {
				log.Warn("failed to end live session before delete: %v", err)
			}
		}
	}
	if err := s.deckRepo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewNotFoundError("deck", id)
		}
		log.Error("failed to delete deck: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *deckService) ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, int, error) {
	log := logger.FromContext(ctx)

	if _, err := s.GetDeck(ctx, filter.DeckID); err != nil {
		return nil, 0, err
	}
	if filter.Limit < 0 || filter.Offset < 0 || filter.MinWrong < 0 {
		return nil, 0, errors.NewBadRequestError("limit, offset and min_wrong must not be negative")
	}

	cards, err := s.deckRepo.ListCards(ctx, filter)
	if err != nil {
		log.Error("failed to list cards: %v", err)
		return nil, 0, errors.NewInternalError(err)
	}
	total, err := s.deckRepo.CountCards(ctx, filter)
	if err != nil {
		log.Error("failed to count cards: %v", err)
		return nil, 0, errors.NewInternalError(err)
	}
	return cards, total, nil
}

// editableDeck loads a deck that no live session currently holds. On success
// the deck stays locked until unlock is called.
func (s *deckService) editableDeck(ctx context.Context, deckID string) (*models.Deck, func(), error) {
	unlock := func() {}
	if s.locker != nil {
		unlock = s.locker.LockDeck(deckID)
		if s.locker.Busy(deckID) {
			unlock()
			return nil, nil, errors.NewConflictError("deck is being studied; exit the session first", nil)
		}
	}
	deck, err := s.GetDeck(ctx, deckID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return deck, unlock, nil
}

func (s *deckService) save(ctx context.Context, deck *models.Deck) error {
	deck.UpdatedAt = s.now()
	if err := s.deckRepo.Save(ctx, *deck); err != nil {
		logger.FromContext(ctx).Error("failed to save deck %s: %v", deck.ID, err)
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *deckService) AddCard(ctx context.Context, deckID string, in CardInput) (*models.Card, error) {
	log := logger.FromContext(ctx)

	in, err := validateCard(in)
	if err != nil {
		return nil, err
	}
	deck, unlock, err := s.editableDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	card := models.Card{
		ID:        s.newID(),
		English:   in.English,
		Chinese:   in.Chinese,
		Note:      in.Note,
		CreatedAt: s.now(),
	}
	deck.Cards = append(deck.Cards, card)
	deck.Queue = append(deck.Queue, card.ID)
	log.Info("adding card: deck_id=%s, card_id=%s", deckID, card.ID)
	if err := s.save(ctx, deck); err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *deckService) UpdateCard(ctx context.Context, deckID, cardID string, in CardInput) (*models.Card, error) {
	log := logger.FromContext(ctx)

	in, err := validateCard(in)
	if err != nil {
		return nil, err
	}
	deck, unlock, err := s.editableDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for i := range deck.Cards {
		if deck.Cards[i].ID != cardID {
			continue
		}
		deck.Cards[i].English = in.English
		deck.Cards[i].Chinese = in.Chinese
		deck.Cards[i].Note = in.Note
		log.Info("updating card: deck_id=%s, card_id=%s", deckID, cardID)
		if err := s.save(ctx, deck); err != nil {
			return nil, err
		}
		card := deck.Cards[i]
		return &card, nil
	}
	return nil, errors.NewNotFoundError("card", cardID)
}

func (s *deckService) DeleteCard(ctx context.Context, deckID, cardID string) error {
	log := logger.FromContext(ctx)

	deck, unlock, err := s.editableDeck(ctx, deckID)
	if err != nil {
		return err
	}
	defer unlock()

	kept := deck.Cards[:0]
	found := false
	for _, c := range deck.Cards {
		if c.ID == cardID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return errors.NewNotFoundError("card", cardID)
	}
	deck.Cards = kept

	queue := make([]string, 0, len(deck.Queue))
	for _, id := range deck.Queue {
		if id != cardID {
			queue = append(queue, id)
		}
	}
	deck.Queue = queue

	log.Info("deleting card: deck_id=%s, card_id=%s", deckID, cardID)
	return s.save(ctx, deck)
}

func (s *deckService) ImportCards(ctx context.Context, deckID string, r io.Reader) (*models.ImportResult, error) {
	log := logger.FromContext(ctx)

	entries, lineErrs, err := cardtext.Parse(r)
	if err != nil {
		log.Warn("failed to read import: %v", err)
		return nil, errors.NewBadRequestError("could not read import body")
	}

	deck, unlock, err := s.editableDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &models.ImportResult{
		Imported: len(entries),
		Skipped:  len(lineErrs),
	}
	for i, le := range lineErrs {
		if i == maxImportErrors {
			result.Errors = append(result.Errors, fmt.Sprintf("... %d more", len(lineErrs)-i))
			break
		}
		result.Errors = append(result.Errors, le.Error())
	}

	if len(entries) > 0 {
		now := s.now()
		for i := range entries {
			entries[i].Card.ID = s.newID()
			entries[i].Card.CreatedAt = now
			deck.Cards = append(deck.Cards, entries[i].Card)
		}
		cardtext.Sort(entries)
		deck.Queue = cardtext.Place(deck.Queue, entries)

		log.Info("importing cards: deck_id=%s, imported=%d, skipped=%d", deckID, result.Imported, result.Skipped)
		if err := s.save(ctx, deck); err != nil {
			return nil, err
		}
	}
	result.QueueLength = len(deck.Queue)
	return result, nil
}

func (s *deckService) ExportCards(ctx context.Context, deckID string, w io.Writer) error {
	deck, err := s.GetDeck(ctx, deckID)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("exporting deck: id=%s, cards=%d", deckID, len(deck.Cards))
	if err := cardtext.Write(w, *deck); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *deckService) SessionLogs(ctx context.Context, deckID string, limit int) ([]models.SessionLog, error) {
	log := logger.FromContext(ctx)

	if _, err := s.GetDeck(ctx, deckID); err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListByDeck(ctx, deckID, limit)
	if err != nil {
		log.Error("failed to list session logs: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if logs == nil {
		logs = []models.SessionLog{}
	}
	return logs, nil
}
