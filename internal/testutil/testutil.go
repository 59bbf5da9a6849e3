package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/vytor/vocabdrill/internal/db"
	"github.com/vytor/vocabdrill/internal/models"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// A single connection is kept so every query sees the same in-memory database.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(context.Background(), conn))
	return conn
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Deck builds a deck whose cards are named after ids and whose queue lists
// them in the same order.
func Deck(id string, cardIDs ...string) models.Deck {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := models.Deck{ID: id, Name: "deck " + id, Queue: []string{}, CreatedAt: created, UpdatedAt: created}
	for i, cid := range cardIDs {
		d.Cards = append(d.Cards, models.Card{
			ID:        cid,
			English:   "en " + cid,
			Chinese:   "zh " + cid,
			CreatedAt: created.Add(time.Duration(i) * time.Second),
		})
		d.Queue = append(d.Queue, cid)
	}
	return d
}
