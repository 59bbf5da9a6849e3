package session

import (
	"context"

	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/scheduler"
)

// StudyState is the per-card state of a study session.
type StudyState int

const (
	// StudyHidden shows only the prompt side.
	StudyHidden StudyState = iota
	// StudyVerifying shows both sides and waits for a verdict.
	StudyVerifying
	// StudyMissed means the user did not know the card; it was answered wrong.
	StudyMissed
	// StudyReviewed means an explicit verdict was given.
	StudyReviewed
	// StudyEmpty means there is nothing left to review.
	StudyEmpty
	// StudyClosed means the session was exited and accepts no more actions.
	StudyClosed
)

func (s StudyState) String() string {
	switch s {
	case StudyHidden:
		return "hidden"
	case StudyVerifying:
		return "verifying"
	case StudyMissed:
		return "missed"
	case StudyReviewed:
		return "reviewed"
	case StudyEmpty:
		return "empty"
	case StudyClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Summary describes a session when it is exited.
type Summary struct {
	DurationSeconds int
	Correct         int
	Wrong           int
	Answered        int
	Total           int
}

// StudySession presents the head of the deck queue one card at a time and
// re-queues each answered card through the scheduler.
type StudySession struct {
	deck    *workingDeck
	obs     Observer
	opts    options
	state   StudyState
	current string

	lastOffset int
	hasOffset  bool
	skipped    int

	elapsed int
	correct int
	wrong   int
}

// NewStudySession starts a session over a private copy of deck. Queue ids
// without a card and repeated ids are skipped.
func NewStudySession(deck models.Deck, obs Observer, opts ...Option) *StudySession {
	if obs == nil {
		obs = NopObserver{}
	}
	s := &StudySession{
		deck: newWorkingDeck(deck),
		obs:  obs,
		opts: buildOptions(opts),
	}
	s.skipped = s.deck.sanitizeQueue()
	s.present()
	return s
}

func (s *StudySession) present() {
	if len(s.deck.deck.Queue) == 0 {
		s.current = ""
		s.state = StudyEmpty
		return
	}
	s.current = s.deck.deck.Queue[0]
	s.state = StudyHidden
}

func (s *StudySession) State() StudyState { return s.state }

// Current returns the card on screen, if any.
func (s *StudySession) Current() (models.Card, bool) {
	if s.current == "" {
		return models.Card{}, false
	}
	return s.deck.card(s.current)
}

func (s *StudySession) Queue() []string {
	return append([]string(nil), s.deck.deck.Queue...)
}

func (s *StudySession) Deck() models.Deck { return s.deck.snapshot() }

// LastOffset reports where the most recently answered card was re-inserted.
func (s *StudySession) LastOffset() (int, bool) { return s.lastOffset, s.hasOffset }

// Skipped is the number of unresolvable or repeated queue ids dropped at start.
func (s *StudySession) Skipped() int { return s.skipped }

func (s *StudySession) Elapsed() int { return s.elapsed }
func (s *StudySession) Correct() int { return s.correct }
func (s *StudySession) Wrong() int   { return s.wrong }

// Know moves from hidden to verifying. Counters are not touched.
func (s *StudySession) Know(ctx context.Context) error {
	if s.state != StudyHidden {
		return s.transitionError()
	}
	s.state = StudyVerifying
	return nil
}

// DontKnow answers the current card wrong.
func (s *StudySession) DontKnow(ctx context.Context) (scheduler.Result, error) {
	if s.state != StudyHidden {
		return scheduler.Result{}, s.transitionError()
	}
	res := s.answer(ctx, false)
	s.state = StudyMissed
	return res, nil
}

// Verdict records the user's own judgement after verifying.
func (s *StudySession) Verdict(ctx context.Context, isCorrect bool) (scheduler.Result, error) {
	if s.state != StudyVerifying {
		return scheduler.Result{}, s.transitionError()
	}
	res := s.answer(ctx, isCorrect)
	s.state = StudyReviewed
	return res, nil
}

// Advance presents the next head of the queue.
func (s *StudySession) Advance(ctx context.Context) error {
	if s.state != StudyMissed && s.state != StudyReviewed {
		return s.transitionError()
	}
	s.present()
	return nil
}

// DeleteCard removes a card from the working deck and its queue. If it was
// on screen the next head is presented.
func (s *StudySession) DeleteCard(ctx context.Context, cardID string) error {
	if s.state == StudyClosed {
		return ErrSessionClosed
	}
	if !s.deck.remove(cardID) {
		return ErrCardNotFound
	}
	s.obs.OnUpdateDeck(ctx, s.deck.snapshot())
	if cardID == s.current {
		s.present()
	}
	return nil
}

// Tick adds elapsed seconds.
func (s *StudySession) Tick(ctx context.Context, deltaSeconds int) {
	if s.state == StudyClosed || deltaSeconds <= 0 {
		return
	}
	s.elapsed += deltaSeconds
	s.obs.OnTimeUpdate(ctx, deltaSeconds)
}

// Exit closes the session. The card on screen, if unanswered, is dropped;
// every completed answer was already written back.
func (s *StudySession) Exit(ctx context.Context) (Summary, error) {
	if s.state == StudyClosed {
		return Summary{}, ErrSessionClosed
	}
	s.state = StudyClosed
	s.current = ""
	s.obs.OnSessionComplete(ctx, s.elapsed, s.correct, s.wrong)
	answered := s.correct + s.wrong
	return Summary{
		DurationSeconds: s.elapsed,
		Correct:         s.correct,
		Wrong:           s.wrong,
		Answered:        answered,
		Total:           answered,
	}, nil
}

func (s *StudySession) answer(ctx context.Context, isCorrect bool) scheduler.Result {
	card, _ := s.deck.card(s.current)
	res := scheduler.Apply(s.deck.deck.Queue, card, isCorrect, s.opts.now())

	s.deck.put(res.Card)
	s.deck.deck.Queue = res.Queue
	s.lastOffset, s.hasOffset = res.Offset, true
	if isCorrect {
		s.correct++
	} else {
		s.wrong++
	}

	s.obs.OnReview(ctx, card.ID, isCorrect)
	s.obs.OnUpdateDeck(ctx, s.deck.snapshot())
	return res
}

func (s *StudySession) transitionError() error {
	if s.state == StudyClosed {
		return ErrSessionClosed
	}
	return ErrInvalidTransition
}
