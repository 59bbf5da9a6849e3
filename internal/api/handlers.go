package api

import (
	"context"
	"time"

	"github.com/vytor/vocabdrill/internal/services"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	DB       Pinger
	Decks    services.DeckService
	Sessions services.SessionService
	Stats    services.StatsService
	Backup   services.BackupService

	// ExamDefaultCount is used when an exam is started without an explicit count.
	ExamDefaultCount int
	RequestTimeout   time.Duration
}
