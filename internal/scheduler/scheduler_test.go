package scheduler_test

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/scheduler"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%02d", i)
	}
	return out
}

func TestApply_FirstCorrectAnswer(t *testing.T) {
	queue := ids(20)
	card := models.Card{ID: queue[0]}

	res := scheduler.Apply(queue, card, true, time.Now())

	assert.Equal(t, 1, res.Card.ConsecutiveCorrect)
	assert.Equal(t, 0, res.Card.ConsecutiveWrong)
	assert.Equal(t, 4, res.Offset)
	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, card.ID, res.Queue[4])
}

func TestApply_WrongAnswerShortDelay(t *testing.T) {
	queue := ids(5)
	card := models.Card{ID: queue[0]}

	res := scheduler.Apply(queue, card, false, time.Now())

	assert.Equal(t, 1, res.Card.ConsecutiveWrong)
	assert.Equal(t, 0, res.Card.ConsecutiveCorrect)
	assert.Equal(t, 2, res.Offset)
	assert.Equal(t, []string{"c01", "c02", "c00", "c03", "c04"}, res.Queue)
}

func TestApply_ThirdWrongAnswerEscalates(t *testing.T) {
	queue := ids(12)
	card := models.Card{ID: queue[0], ConsecutiveWrong: 2}

	res := scheduler.Apply(queue, card, false, time.Now())

	assert.Equal(t, 3, res.Card.ConsecutiveWrong)
	assert.Equal(t, 10, res.Offset)
	assert.Equal(t, card.ID, res.Queue[10])
}

func TestApply_SoleCardAlwaysLandsAtZero(t *testing.T) {
	for _, correct := range []bool{true, false} {
		t.Run(fmt.Sprintf("correct=%v", correct), func(t *testing.T) {
			card := models.Card{ID: "only", ConsecutiveCorrect: 7}
			res := scheduler.Apply([]string{"only"}, card, correct, time.Now())

			assert.Equal(t, 0, res.Offset)
			assert.Equal(t, []string{"only"}, res.Queue)
		})
	}
}

func TestApply_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		queue      []string
		card       models.Card
		correct    bool
		wantQueue  []string
		wantOffset int
	}{
		{
			name:       "first correct answer in five card deck goes to the back",
			queue:      []string{"A", "B", "C", "D", "E"},
			card:       models.Card{ID: "A"},
			correct:    true,
			wantQueue:  []string{"B", "C", "D", "E", "A"},
			wantOffset: 4,
		},
		{
			name:       "third consecutive miss clamps to the end",
			queue:      []string{"A", "B", "C"},
			card:       models.Card{ID: "A", ConsecutiveWrong: 2},
			correct:    false,
			wantQueue:  []string{"B", "C", "A"},
			wantOffset: 2,
		},
		{
			name:       "correct answer after a wrong streak resets it",
			queue:      []string{"A", "B", "C", "D", "E", "F", "G"},
			card:       models.Card{ID: "A", ConsecutiveWrong: 4},
			correct:    true,
			wantQueue:  []string{"B", "C", "D", "E", "A", "F", "G"},
			wantOffset: 4,
		},
		{
			name:       "second correct answer requests offset eight",
			queue:      ids(10),
			card:       models.Card{ID: "c00", ConsecutiveCorrect: 1},
			correct:    true,
			wantQueue:  []string{"c01", "c02", "c03", "c04", "c05", "c06", "c07", "c08", "c00", "c09"},
			wantOffset: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scheduler.Apply(tt.queue, tt.card, tt.correct, time.Now())
			assert.Equal(t, tt.wantQueue, res.Queue)
			assert.Equal(t, tt.wantOffset, res.Offset)
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	queue := []string{"A", "B", "C"}
	scheduler.Apply(queue, models.Card{ID: "A"}, false, time.Now())
	assert.Equal(t, []string{"A", "B", "C"}, queue)
}

func TestApply_QueueIntegrity(t *testing.T) {
	queue := ids(9)
	cards := map[string]models.Card{}
	for _, id := range queue {
		cards[id] = models.Card{ID: id}
	}

	// Deterministic mix of outcomes over many answers.
	for i := 0; i < 200; i++ {
		head := cards[queue[0]]
		res := scheduler.Apply(queue, head, i%3 != 0, time.Now())
		cards[head.ID] = res.Card

		require.Len(t, res.Queue, len(queue))
		got := append([]string(nil), res.Queue...)
		want := append([]string(nil), queue...)
		sort.Strings(got)
		sort.Strings(want)
		require.Equal(t, want, got, "answer %d lost or duplicated an id", i)
		queue = res.Queue
	}
}

func TestApplyAnswer_CounterExclusivity(t *testing.T) {
	card := models.Card{ID: "x"}
	outcomes := []bool{true, true, false, false, false, true, false, true, true, true}
	for i, correct := range outcomes {
		card = scheduler.ApplyAnswer(card, correct, time.Now())

		nonZero := 0
		if card.ConsecutiveCorrect > 0 {
			nonZero++
		}
		if card.ConsecutiveWrong > 0 {
			nonZero++
		}
		assert.Equal(t, 1, nonZero, "after answer %d", i)
		assert.Equal(t, i+1, card.TotalReviews)
	}
	assert.Equal(t, 3, card.ConsecutiveCorrect)
}

func TestApplyAnswer_SetsLastReviewedAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	card := scheduler.ApplyAnswer(models.Card{ID: "x"}, true, now)

	require.NotNil(t, card.LastReviewedAt)
	assert.True(t, card.LastReviewedAt.Equal(now))
}

func TestDesiredOffset(t *testing.T) {
	tests := []struct {
		name     string
		card     models.Card
		correct  bool
		expected int
	}{
		{"first miss", models.Card{ConsecutiveWrong: 1}, false, 2},
		{"second miss", models.Card{ConsecutiveWrong: 2}, false, 2},
		{"third miss", models.Card{ConsecutiveWrong: 3}, false, 10},
		{"fourth miss", models.Card{ConsecutiveWrong: 4}, false, 2},
		{"sixth miss", models.Card{ConsecutiveWrong: 6}, false, 10},
		{"ninth miss", models.Card{ConsecutiveWrong: 9}, false, 10},
		{"streak of one", models.Card{ConsecutiveCorrect: 1}, true, 4},
		{"streak of two", models.Card{ConsecutiveCorrect: 2}, true, 8},
		{"streak of five", models.Card{ConsecutiveCorrect: 5}, true, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scheduler.DesiredOffset(tt.card, tt.correct))
		})
	}
}

func TestDesiredOffset_LongStreakDoesNotOverflow(t *testing.T) {
	offset := scheduler.DesiredOffset(models.Card{ConsecutiveCorrect: 500}, true)
	assert.Greater(t, offset, 0)
	assert.Equal(t, 1<<(bits.UintSize-2), offset)

	offset = scheduler.DesiredOffset(models.Card{ConsecutiveCorrect: math.MaxInt}, true)
	assert.Equal(t, 1<<(bits.UintSize-2), offset)
}

func TestApplyAnswer_SaturatesStreaks(t *testing.T) {
	now := time.Now()

	c := scheduler.ApplyAnswer(models.Card{ConsecutiveCorrect: math.MaxInt}, true, now)
	assert.Equal(t, math.MaxInt, c.ConsecutiveCorrect)

	c = scheduler.ApplyAnswer(models.Card{ConsecutiveWrong: math.MaxInt}, false, now)
	assert.Equal(t, math.MaxInt, c.ConsecutiveWrong)
	assert.Equal(t, 0, c.ConsecutiveCorrect)
}
