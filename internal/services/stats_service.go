package services

import (
	"context"
	"time"

	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
)

const (
	defaultRecentDays = 7
	maxRecentDays     = 366
	// streakLookback bounds how many active days are fetched to measure a streak.
	streakLookback = 3660
)

// StatsService handles statistics-related business logic
type StatsService interface {
	Summary(ctx context.Context, days int) (*models.StatsSummary, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	now       func() time.Time
}

// NewStatsService creates a new StatsService
func NewStatsService(statsRepo repository.StatsRepository) StatsService {
	return &statsService{statsRepo: statsRepo, now: time.Now}
}

func (s *statsService) Summary(ctx context.Context, days int) (*models.StatsSummary, error) {
	log := logger.FromContext(ctx)

	if days == 0 {
		days = defaultRecentDays
	}
	if days < 0 || days > maxRecentDays {
		return nil, errors.NewValidationError("days", "must be between 1 and 366")
	}
	log.Debug("getting stats summary: days=%d", days)

	today := s.now().Local()
	todayKey := DayKey(today)
	fromKey := DayKey(today.AddDate(0, 0, -(days - 1)))

	global, err := s.statsRepo.Global(ctx)
	if err != nil {
		log.Error("failed to get global stats: %v", err)
		return nil, errors.NewInternalError(err)
	}

	rows, err := s.statsRepo.DailyRange(ctx, fromKey, todayKey)
	if err != nil {
		log.Error("failed to get daily stats: %v", err)
		return nil, errors.NewInternalError(err)
	}
	recent := fillDays(rows, today, days)

	active, err := s.statsRepo.StudyDays(ctx, todayKey, streakLookback)
	if err != nil {
		log.Error("failed to get study days: %v", err)
		return nil, errors.NewInternalError(err)
	}
	activeSet := make(map[string]bool, len(active))
	for _, d := range active {
		activeSet[d] = true
	}

	return &models.StatsSummary{
		Global:     *global,
		Today:      recent[len(recent)-1],
		Recent:     recent,
		StreakDays: calculateStreak(activeSet, today),
	}, nil
}

// fillDays returns one entry per day ending today, oldest first, with zero
// rows for days without activity.
func fillDays(rows []models.DailyStat, today time.Time, days int) []models.DailyStat {
	byDay := make(map[string]models.DailyStat, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r
	}
	out := make([]models.DailyStat, days)
	for i := 0; i < days; i++ {
		key := DayKey(today.AddDate(0, 0, -(days - 1 - i)))
		if r, ok := byDay[key]; ok {
			out[i] = r
		} else {
			out[i] = models.DailyStat{Day: key}
		}
	}
	return out
}

// calculateStreak counts consecutive active days ending today, or ending
// yesterday when nothing has been studied yet today.
func calculateStreak(activeDays map[string]bool, today time.Time) int {
	check := today
	if !activeDays[DayKey(check)] {
		check = check.AddDate(0, 0, -1)
		if !activeDays[DayKey(check)] {
			return 0
		}
	}

	streak := 0
	for activeDays[DayKey(check)] {
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}
