package models

const (
	ModeStudy = "study"
	ModeExam  = "exam"
)

type StudyView struct {
	SessionID      string `json:"session_id"`
	DeckID         string `json:"deck_id"`
	State          string `json:"state"`
	Card           *Card  `json:"card,omitempty"`
	QueueLength    int    `json:"queue_length"`
	LastOffset     *int   `json:"last_offset,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Correct        int    `json:"correct"`
	Wrong          int    `json:"wrong"`
}

type ExamView struct {
	SessionID      string `json:"session_id"`
	DeckID         string `json:"deck_id"`
	State          string `json:"state"`
	Card           *Card  `json:"card,omitempty"`
	Index          int    `json:"index"`
	Total          int    `json:"total"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Correct        int    `json:"correct"`
	Wrong          int    `json:"wrong"`
}

// SessionSummary is returned when a session is exited.
type SessionSummary struct {
	SessionID       string `json:"session_id"`
	DeckID          string `json:"deck_id"`
	Mode            string `json:"mode"`
	DurationSeconds int    `json:"duration_seconds"`
	Correct         int    `json:"correct"`
	Wrong           int    `json:"wrong"`
	Answered        int    `json:"answered"`
	Total           int    `json:"total"`
}

// ImportResult reports the outcome of a bulk text import.
type ImportResult struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
	QueueLength int      `json:"queue_length"`
}
