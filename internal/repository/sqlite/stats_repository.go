package sqlite

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

type statsRepository struct {
	db *sql.DB
}

// NewStatsRepository creates a new StatsRepository implementation
func NewStatsRepository(db *sql.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) RecordReview(ctx context.Context, day, cardID string, correct bool) error {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("recording review: day=%s, card_id=%s, correct=%v", day, cardID, correct)

	correctInc, wrongInc := 0, 1
	if correct {
		correctInc, wrongInc = 1, 0
	}

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO daily_stats (day, reviews, correct, wrong) VALUES (?, 1, ?, ?)
ON CONFLICT(day) DO UPDATE SET
    reviews = reviews + 1,
    correct = correct + excluded.correct,
    wrong = wrong + excluded.wrong
`, day, correctInc, wrongInc); err != nil {
			log.Error("failed to update daily stats: %v", err)
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO daily_cards (day, card_id) VALUES (?, ?)
`, day, cardID); err != nil {
			log.Error("failed to record daily card: %v", err)
			return err
		}
		return nil
	})
}

func (r *statsRepository) AddStudyTime(ctx context.Context, day string, seconds int) error {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	if seconds <= 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO daily_stats (day, study_seconds) VALUES (?, ?)
ON CONFLICT(day) DO UPDATE SET study_seconds = study_seconds + excluded.study_seconds
`, day, seconds)
	if err != nil {
		log.Error("failed to add study time: %v", err)
	}
	return err
}

func (r *statsRepository) Global(ctx context.Context) (*models.GlobalStat, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")

	var g models.GlobalStat
	err := r.db.QueryRowContext(ctx, `
SELECT
    COALESCE(SUM(reviews), 0),
    COALESCE(SUM(correct), 0),
    COALESCE(SUM(wrong), 0),
    COALESCE(SUM(study_seconds), 0),
    COUNT(CASE WHEN reviews > 0 OR study_seconds > 0 THEN 1 END)
FROM daily_stats
`).Scan(&g.Reviews, &g.Correct, &g.Wrong, &g.StudySeconds, &g.StudyDays)
	if err != nil {
		log.Error("failed to query global stats: %v", err)
		return nil, err
	}
	return &g, nil
}

func (r *statsRepository) DailyRange(ctx context.Context, from, to string) ([]models.DailyStat, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching daily stats: from=%s, to=%s", from, to)

	query := sqlBuilder.Select(
		"s.day", "s.reviews", "s.correct", "s.wrong", "s.study_seconds",
		"(SELECT COUNT(*) FROM daily_cards c WHERE c.day = s.day)",
	).From("daily_stats s").OrderBy("s.day")
	if from != "" {
		query = query.Where(squirrel.GtOrEq{"s.day": from})
	}
	if to != "" {
		query = query.Where(squirrel.LtOrEq{"s.day": to})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to query daily stats: %v", err)
		return nil, err
	}
	defer rows.Close()

	var days []models.DailyStat
	for rows.Next() {
		var d models.DailyStat
		if err := rows.Scan(&d.Day, &d.Reviews, &d.Correct, &d.Wrong, &d.StudySeconds, &d.DistinctCards); err != nil {
			log.Error("failed to scan daily stat row: %v", err)
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (r *statsRepository) StudyDays(ctx context.Context, until string, limit int) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")

	query := sqlBuilder.Select("day").From("daily_stats").
		Where(squirrel.Or{squirrel.Gt{"reviews": 0}, squirrel.Gt{"study_seconds": 0}}).
		Where(squirrel.LtOrEq{"day": until}).
		OrderBy("day DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to query study days: %v", err)
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}
