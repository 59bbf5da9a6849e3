package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/scheduler"
)

// ExamState is the position of an exam in its question/reveal cycle.
type ExamState int

const (
	// ExamQuestion shows the prompt side of the current card.
	ExamQuestion ExamState = iota
	// ExamReveal shows both sides and waits for a verdict.
	ExamReveal
	// ExamFinished means every sampled card was answered.
	ExamFinished
	// ExamClosed means the session was exited.
	ExamClosed
)

func (s ExamState) String() string {
	switch s {
	case ExamQuestion:
		return "question"
	case ExamReveal:
		return "reveal"
	case ExamFinished:
		return "finished"
	case ExamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ExamSession walks a fixed random sample of cards once. Answers update card
// counters but never reorder anything.
type ExamSession struct {
	deck  *workingDeck
	obs   Observer
	opts  options
	order []string
	index int
	state ExamState

	elapsed   int
	correct   int
	wrong     int
	completed bool
}

// NewExamSession samples min(requested, len(deck.Cards)) cards without
// replacement. A non-positive request takes every card. rng may be nil.
func NewExamSession(deck models.Deck, requested int, rng *rand.Rand, obs Observer, opts ...Option) *ExamSession {
	if obs == nil {
		obs = NopObserver{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &ExamSession{
		deck: newWorkingDeck(deck),
		obs:  obs,
		opts: buildOptions(opts),
	}

	cards := e.deck.deck.Cards
	n := requested
	if n <= 0 || n > len(cards) {
		n = len(cards)
	}
	perm := rng.Perm(len(cards))[:n]
	e.order = make([]string, n)
	for i, p := range perm {
		e.order[i] = cards[p].ID
	}

	if n == 0 {
		e.state = ExamFinished
	}
	return e
}

func (e *ExamSession) State() ExamState { return e.state }

// Order returns the fixed question order.
func (e *ExamSession) Order() []string { return append([]string(nil), e.order...) }

func (e *ExamSession) Index() int { return e.index }
func (e *ExamSession) Total() int { return len(e.order) }

func (e *ExamSession) Current() (models.Card, bool) {
	if e.state != ExamQuestion && e.state != ExamReveal {
		return models.Card{}, false
	}
	return e.deck.card(e.order[e.index])
}

func (e *ExamSession) Deck() models.Deck { return e.deck.snapshot() }

func (e *ExamSession) Elapsed() int { return e.elapsed }
func (e *ExamSession) Correct() int { return e.correct }
func (e *ExamSession) Wrong() int   { return e.wrong }

// Reveal shows the answer side.
func (e *ExamSession) Reveal(ctx context.Context) error {
	if e.state != ExamQuestion {
		return e.transitionError()
	}
	e.state = ExamReveal
	return nil
}

// Verdict scores the revealed card and moves to the next one.
func (e *ExamSession) Verdict(ctx context.Context, isCorrect bool) (models.Card, error) {
	if e.state != ExamReveal {
		return models.Card{}, e.transitionError()
	}
	card, _ := e.deck.card(e.order[e.index])
	card = scheduler.ApplyAnswer(card, isCorrect, e.opts.now())
	e.deck.put(card)
	if isCorrect {
		e.correct++
	} else {
		e.wrong++
	}

	e.obs.OnReview(ctx, card.ID, isCorrect)
	e.obs.OnUpdateDeck(ctx, e.deck.snapshot())

	e.index++
	if e.index >= len(e.order) {
		e.state = ExamFinished
		e.complete(ctx)
	} else {
		e.state = ExamQuestion
	}
	return card, nil
}

func (e *ExamSession) Tick(ctx context.Context, deltaSeconds int) {
	if e.state == ExamFinished || e.state == ExamClosed || deltaSeconds <= 0 {
		return
	}
	e.elapsed += deltaSeconds
	e.obs.OnTimeUpdate(ctx, deltaSeconds)
}

// Exit ends the exam. After an early exit only answered cards count.
func (e *ExamSession) Exit(ctx context.Context) (Summary, error) {
	if e.state == ExamClosed {
		return Summary{}, ErrSessionClosed
	}
	finished := e.state == ExamFinished
	e.state = ExamClosed
	e.complete(ctx)

	answered := e.correct + e.wrong
	total := answered
	if finished {
		total = len(e.order)
	}
	return Summary{
		DurationSeconds: e.elapsed,
		Correct:         e.correct,
		Wrong:           e.wrong,
		Answered:        answered,
		Total:           total,
	}, nil
}

func (e *ExamSession) complete(ctx context.Context) {
	if e.completed {
		return
	}
	e.completed = true
	e.obs.OnSessionComplete(ctx, e.elapsed, e.correct, e.wrong)
}

func (e *ExamSession) transitionError() error {
	if e.state == ExamClosed {
		return ErrSessionClosed
	}
	return ErrInvalidTransition
}
