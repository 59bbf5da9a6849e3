package sqlite

import (
	"context"
	"database/sql"

	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

type sessionLogRepository struct {
	db *sql.DB
}

// NewSessionLogRepository creates a new SessionLogRepository implementation
func NewSessionLogRepository(db *sql.DB) repository.SessionLogRepository {
	return &sessionLogRepository{db: db}
}

func (r *sessionLogRepository) Insert(ctx context.Context, l models.SessionLog) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("session_log_repo")
	log.Debug("inserting session log: deck_id=%s, mode=%s, duration=%d", l.DeckID, l.Mode, l.DurationSeconds)

	res, err := r.db.ExecContext(ctx, `
INSERT INTO session_logs (deck_id, mode, duration_seconds, correct, wrong, ended_at)
VALUES (?, ?, ?, ?, ?, ?)
`, l.DeckID, l.Mode, l.DurationSeconds, l.Correct, l.Wrong, l.EndedAt.UTC())
	if err != nil {
		log.Error("failed to insert session log: %v", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		log.Error("failed to get session log id: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *sessionLogRepository) ListByDeck(ctx context.Context, deckID string, limit int) ([]models.SessionLog, error) {
	log := logger.FromContext(ctx).WithPrefix("session_log_repo")
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, deck_id, mode, duration_seconds, correct, wrong, ended_at
FROM session_logs
WHERE deck_id = ?
ORDER BY ended_at DESC, id DESC
LIMIT ?
`, deckID, limit)
	if err != nil {
		log.Error("failed to list session logs: %v", err)
		return nil, err
	}
	defer rows.Close()

	logs := []models.SessionLog{}
	for rows.Next() {
		var l models.SessionLog
		if err := rows.Scan(&l.ID, &l.DeckID, &l.Mode, &l.DurationSeconds, &l.Correct, &l.Wrong, &l.EndedAt); err != nil {
			log.Error("failed to scan session log row: %v", err)
			return nil, err
		}
		logs = append(logs, l)
	}
	log.Debug("found %d session logs for deck %s", len(logs), deckID)
	return logs, rows.Err()
}
