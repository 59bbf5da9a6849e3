package models

import (
	"math"
	"time"
)

// Card is one phrase pair plus its review counters.
type Card struct {
	ID                 string     `json:"id"`
	English            string     `json:"english"`
	Chinese            string     `json:"chinese"`
	Note               string     `json:"note,omitempty"`
	ConsecutiveCorrect int        `json:"consecutive_correct"`
	ConsecutiveWrong   int        `json:"consecutive_wrong"`
	TotalReviews       int        `json:"total_reviews"`
	LastReviewedAt     *time.Time `json:"last_reviewed_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Progress folds the two streak counters into one signed number:
// positive for a correct streak, negative for a wrong streak.
func (c Card) Progress() int {
	if c.ConsecutiveWrong > 0 {
		return -c.ConsecutiveWrong
	}
	return c.ConsecutiveCorrect
}

// SetProgress is the inverse of Progress. math.MinInt saturates to a wrong
// streak of math.MaxInt.
func (c *Card) SetProgress(p int) {
	switch {
	case p > 0:
		c.ConsecutiveCorrect, c.ConsecutiveWrong = p, 0
	case p == math.MinInt:
		c.ConsecutiveCorrect, c.ConsecutiveWrong = 0, math.MaxInt
	case p < 0:
		c.ConsecutiveCorrect, c.ConsecutiveWrong = 0, -p
	default:
		c.ConsecutiveCorrect, c.ConsecutiveWrong = 0, 0
	}
}

type CardFilter struct {
	DeckID   string
	Search   string
	MinWrong int
	Limit    int
	Offset   int
}
