package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
	"github.com/vytor/vocabdrill/internal/repository/sqlite"
	"github.com/vytor/vocabdrill/internal/testutil"
)

type SessionLogRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	repo repository.SessionLogRepository
}

func (s *SessionLogRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewSessionLogRepository(s.db)
	s.Require().NoError(sqlite.NewDeckRepository(s.db).Create(context.Background(), testutil.Deck("d1", "a")))
}

func (s *SessionLogRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *SessionLogRepositorySuite) TestInsertAndListNewestFirst() {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	id1, err := s.repo.Insert(ctx, models.SessionLog{DeckID: "d1", Mode: models.ModeStudy, DurationSeconds: 120, Correct: 3, Wrong: 1, EndedAt: base})
	s.Require().NoError(err)
	id2, err := s.repo.Insert(ctx, models.SessionLog{DeckID: "d1", Mode: models.ModeExam, DurationSeconds: 60, Correct: 5, EndedAt: base.Add(time.Hour)})
	s.Require().NoError(err)
	s.NotEqual(id1, id2)

	logs, err := s.repo.ListByDeck(ctx, "d1", 10)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(id2, logs[0].ID)
	s.Equal(models.ModeExam, logs[0].Mode)
	s.Equal(id1, logs[1].ID)
	s.Equal(120, logs[1].DurationSeconds)
	s.True(base.Equal(logs[1].EndedAt))

	limited, err := s.repo.ListByDeck(ctx, "d1", 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *SessionLogRepositorySuite) TestLogsCascadeWithDeck() {
	ctx := context.Background()
	_, err := s.repo.Insert(ctx, models.SessionLog{DeckID: "d1", Mode: models.ModeStudy, EndedAt: time.Now()})
	s.Require().NoError(err)

	s.Require().NoError(sqlite.NewDeckRepository(s.db).Delete(ctx, "d1"))

	logs, err := s.repo.ListByDeck(ctx, "d1", 0)
	s.Require().NoError(err)
	s.Empty(logs)
}

func TestSessionLogRepositorySuite(t *testing.T) {
	suite.Run(t, new(SessionLogRepositorySuite))
}
