package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

var cardColumns = []string{
	"id", "english", "chinese", "note", "consecutive_correct", "consecutive_wrong",
	"total_reviews", "last_reviewed_at", "created_at",
}

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db *sql.DB) repository.DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) Create(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("creating deck: id=%s, name=%s, cards=%d", d.ID, d.Name, len(d.Cards))

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO decks (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
`, d.ID, d.Name, d.CreatedAt.UTC(), d.UpdatedAt.UTC())
		if err != nil {
			log.Error("failed to insert deck: %v", err)
			return fmt.Errorf("insert deck %s: %w", d.ID, err)
		}
		return replaceContents(ctx, tx, d)
	})
}

func (r *deckRepository) Get(ctx context.Context, id string) (*models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("fetching deck: id=%s", id)

	var d models.Deck
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, created_at, updated_at FROM decks WHERE id = ?
`, id).Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("deck not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, err
	}

	cards, err := r.ListCards(ctx, models.CardFilter{DeckID: id})
	if err != nil {
		return nil, err
	}
	d.Cards = cards

	rows, err := r.db.QueryContext(ctx, `
SELECT card_id FROM deck_queue WHERE deck_id = ? ORDER BY position
`, id)
	if err != nil {
		log.Error("failed to query queue: %v", err)
		return nil, err
	}
	defer rows.Close()
	d.Queue = []string{}
	for rows.Next() {
		var cardID string
		if err := rows.Scan(&cardID); err != nil {
			log.Error("failed to scan queue row: %v", err)
			return nil, err
		}
		d.Queue = append(d.Queue, cardID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	log.Debug("deck loaded: id=%s, cards=%d, queue=%d", id, len(d.Cards), len(d.Queue))
	return &d, nil
}

func (r *deckRepository) List(ctx context.Context) ([]models.DeckSummary, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	query, args, err := sqlBuilder.Select(
		"d.id", "d.name", "d.created_at", "d.updated_at",
		"(SELECT COUNT(*) FROM cards c WHERE c.deck_id = d.id)",
		"(SELECT COUNT(*) FROM deck_queue q WHERE q.deck_id = d.id)",
	).From("decks d").OrderBy("d.name COLLATE NOCASE", "d.id").ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, err
	}
	defer rows.Close()
	var decks []models.DeckSummary
	for rows.Next() {
		var s models.DeckSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt, &s.CardCount, &s.QueueLength); err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, err
		}
		decks = append(decks, s)
	}
	log.Debug("found %d decks", len(decks))
	return decks, rows.Err()
}

func (r *deckRepository) Rename(ctx context.Context, id, name string, at time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("renaming deck: id=%s, name=%s", id, name)

	n, err := execSql(ctx, r.db, sqlBuilder.Update("decks").
		Set("name", name).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to rename deck: %v", err)
		return err
	}
	return requireAffected(n)
}

func (r *deckRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Info("deleting deck: id=%s", id)

	n, err := execSql(ctx, r.db, sqlBuilder.Delete("decks").Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to delete deck: %v", err)
		return err
	}
	return requireAffected(n)
}

func (r *deckRepository) Save(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("saving deck: id=%s, cards=%d, queue=%d", d.ID, len(d.Cards), len(d.Queue))

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO decks (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
`, d.ID, d.Name, d.CreatedAt.UTC(), d.UpdatedAt.UTC())
		if err != nil {
			log.Error("failed to upsert deck: %v", err)
			return fmt.Errorf("upsert deck %s: %w", d.ID, err)
		}
		return replaceContents(ctx, tx, d)
	})
}

// replaceContents makes the stored cards and queue of d.ID equal to d's.
func replaceContents(ctx context.Context, tx *sql.Tx, d models.Deck) error {
	if _, err := execSql(ctx, tx, sqlBuilder.Delete("deck_queue").Where(squirrel.Eq{"deck_id": d.ID})); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}

	ids := make([]string, len(d.Cards))
	for i, c := range d.Cards {
		ids[i] = c.ID
	}
	if _, err := execSql(ctx, tx, sqlBuilder.Delete("cards").Where(squirrel.And{
		squirrel.Eq{"deck_id": d.ID},
		squirrel.NotEq{"id": ids},
	})); err != nil {
		return fmt.Errorf("prune cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO cards (id, deck_id, english, chinese, note, consecutive_correct, consecutive_wrong, total_reviews, last_reviewed_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    english = excluded.english,
    chinese = excluded.chinese,
    note = excluded.note,
    consecutive_correct = excluded.consecutive_correct,
    consecutive_wrong = excluded.consecutive_wrong,
    total_reviews = excluded.total_reviews,
    last_reviewed_at = excluded.last_reviewed_at
WHERE cards.deck_id = excluded.deck_id
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range d.Cards {
		res, err := stmt.ExecContext(ctx, c.ID, d.ID, c.English, c.Chinese, c.Note,
			c.ConsecutiveCorrect, c.ConsecutiveWrong, c.TotalReviews, nullTime(c.LastReviewedAt), c.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert card %s: %w", c.ID, err)
		}
		// the conflict update is skipped when the id belongs to another deck
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("card %s: %w", c.ID, repository.ErrCardOwned)
		}
	}

	for start := 0; start < len(d.Queue); start += queueBatchSize {
		end := min(start+queueBatchSize, len(d.Queue))
		insert := sqlBuilder.Insert("deck_queue").Columns("deck_id", "position", "card_id")
		for i := start; i < end; i++ {
			insert = insert.Values(d.ID, i, d.Queue[i])
		}
		if _, err := execSql(ctx, tx, insert); err != nil {
			return fmt.Errorf("write queue: %w", err)
		}
	}
	return nil
}

func (r *deckRepository) CardOwners(ctx context.Context, ids []string) (map[string]string, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("looking up owners of %d cards", len(ids))

	owners := make(map[string]string)
	for start := 0; start < len(ids); start += queueBatchSize {
		end := min(start+queueBatchSize, len(ids))
		query, args, err := sqlBuilder.Select("id", "deck_id").From("cards").
			Where(squirrel.Eq{"id": ids[start:end]}).ToSql()
		if err != nil {
			log.Error("failed to build query: %v", err)
			return nil, err
		}
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			log.Error("failed to query card owners: %v", err)
			return nil, err
		}
		for rows.Next() {
			var id, deckID string
			if err := rows.Scan(&id, &deckID); err != nil {
				rows.Close()
				return nil, err
			}
			owners[id] = deckID
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return owners, nil
}

// queueBatchSize keeps multi-row inserts well under SQLite's variable limit.
const queueBatchSize = 500

func cardQuery(base squirrel.SelectBuilder, filter models.CardFilter) squirrel.SelectBuilder {
	if filter.DeckID != "" {
		base = base.Where(squirrel.Eq{"deck_id": filter.DeckID})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where(squirrel.Or{
			squirrel.Like{"english": pattern},
			squirrel.Like{"chinese": pattern},
			squirrel.Like{"note": pattern},
		})
	}
	if filter.MinWrong > 0 {
		base = base.Where(squirrel.GtOrEq{"consecutive_wrong": filter.MinWrong})
	}
	return base
}

func (r *deckRepository) ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("listing cards: deck_id=%s, search=%q, min_wrong=%d, limit=%d, offset=%d",
		filter.DeckID, filter.Search, filter.MinWrong, filter.Limit, filter.Offset)

	query := cardQuery(sqlBuilder.Select(cardColumns...).From("cards"), filter).
		OrderBy("created_at", "id")
	// SQLite only accepts OFFSET together with LIMIT.
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
		if filter.Offset > 0 {
			query = query.Offset(uint64(filter.Offset))
		}
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		var c models.Card
		var reviewed sql.NullTime
		if err := rows.Scan(&c.ID, &c.English, &c.Chinese, &c.Note, &c.ConsecutiveCorrect, &c.ConsecutiveWrong,
			&c.TotalReviews, &reviewed, &c.CreatedAt); err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		c.LastReviewedAt = timePtr(reviewed)
		cards = append(cards, c)
	}
	log.Debug("found %d cards", len(cards))
	return cards, rows.Err()
}

func (r *deckRepository) CountCards(ctx context.Context, filter models.CardFilter) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	sqlStr, args, err := cardQuery(sqlBuilder.Select("COUNT(*)").From("cards"), filter).ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return 0, err
	}
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		log.Error("failed to count cards: %v", err)
		return 0, err
	}
	return count, nil
}
