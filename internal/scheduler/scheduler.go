package scheduler

import (
	"math"
	"math/bits"
	"time"

	"github.com/vytor/vocabdrill/internal/models"
)

const (
	// WrongOffset is where a missed card lands when it does not escalate.
	WrongOffset = 2
	// EscalatedWrongOffset is used on every EscalationEvery-th consecutive miss.
	EscalatedWrongOffset = 10
	EscalationEvery      = 3

	// largest shift that keeps 1<<maxShift a positive int
	maxShift = bits.UintSize - 2
)

// Result is the outcome of one answer.
type Result struct {
	Card models.Card
	// Queue is the full queue after re-insertion.
	Queue []string
	// Offset is the index the card actually landed at, counted from the
	// front of the queue once the card itself was removed.
	Offset int
	// Requested is the offset asked for before clamping.
	Requested int
}

// ApplyAnswer updates streak counters for one answer.
// The opposite counter is always reset, so exactly one of them is non-zero afterwards.
func ApplyAnswer(card models.Card, isCorrect bool, now time.Time) models.Card {
	if isCorrect {
		card.ConsecutiveCorrect = inc(card.ConsecutiveCorrect)
		card.ConsecutiveWrong = 0
	} else {
		card.ConsecutiveWrong = inc(card.ConsecutiveWrong)
		card.ConsecutiveCorrect = 0
	}
	card.TotalReviews++
	t := now
	card.LastReviewedAt = &t
	return card
}

// DesiredOffset computes the re-insertion distance for a card whose
// counters were already updated by ApplyAnswer.
func DesiredOffset(card models.Card, isCorrect bool) int {
	if !isCorrect {
		if card.ConsecutiveWrong > 0 && card.ConsecutiveWrong%EscalationEvery == 0 {
			return EscalatedWrongOffset
		}
		return WrongOffset
	}
	exp := maxShift
	if card.ConsecutiveCorrect < maxShift {
		exp = card.ConsecutiveCorrect + 1
	}
	return 1 << uint(exp)
}

// inc saturates at math.MaxInt.
func inc(n int) int {
	if n == math.MaxInt {
		return n
	}
	return n + 1
}

// Apply answers the card at the head of queue and re-inserts it.
// The input slice is never modified.
func Apply(queue []string, card models.Card, isCorrect bool, now time.Time) Result {
	rest := make([]string, 0, len(queue))
	for _, id := range queue {
		if id != card.ID {
			rest = append(rest, id)
		}
	}

	updated := ApplyAnswer(card, isCorrect, now)
	k := DesiredOffset(updated, isCorrect)

	offset := k
	if k >= len(rest) {
		offset = len(rest)
	}
	out := make([]string, 0, len(rest)+1)
	out = append(out, rest[:offset]...)
	out = append(out, card.ID)
	out = append(out, rest[offset:]...)

	return Result{
		Card:      updated,
		Queue:     out,
		Offset:    offset,
		Requested: k,
	}
}
