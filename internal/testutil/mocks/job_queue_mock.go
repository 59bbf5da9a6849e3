package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/vocabdrill/internal/models"
)

// MockJobQueue is a mock implementation of jobs.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) EnqueueRestore(decks []models.Deck) error {
	args := m.Called(decks)
	return args.Error(0)
}
