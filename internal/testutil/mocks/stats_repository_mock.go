package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/vocabdrill/internal/models"
)

// MockStatsRepository is a mock implementation of repository.StatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) RecordReview(ctx context.Context, day, cardID string, correct bool) error {
	args := m.Called(ctx, day, cardID, correct)
	return args.Error(0)
}

func (m *MockStatsRepository) AddStudyTime(ctx context.Context, day string, seconds int) error {
	args := m.Called(ctx, day, seconds)
	return args.Error(0)
}

func (m *MockStatsRepository) Global(ctx context.Context) (*models.GlobalStat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GlobalStat), args.Error(1)
}

func (m *MockStatsRepository) DailyRange(ctx context.Context, from, to string) ([]models.DailyStat, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DailyStat), args.Error(1)
}

func (m *MockStatsRepository) StudyDays(ctx context.Context, until string, limit int) ([]string, error) {
	args := m.Called(ctx, until, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
