package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/vocabdrill/internal/models"
)

// MockSessionLogRepository is a mock implementation of repository.SessionLogRepository
type MockSessionLogRepository struct {
	mock.Mock
}

func (m *MockSessionLogRepository) Insert(ctx context.Context, log models.SessionLog) (int64, error) {
	args := m.Called(ctx, log)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionLogRepository) ListByDeck(ctx context.Context, deckID string, limit int) ([]models.SessionLog, error) {
	args := m.Called(ctx, deckID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SessionLog), args.Error(1)
}
