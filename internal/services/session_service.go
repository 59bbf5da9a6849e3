package services

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/vocabdrill/internal/errors"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/repository"
	"github.com/vytor/vocabdrill/internal/session"
)

// SessionService owns the live study and exam sessions. Each session is
// guarded by its own mutex so an answer, its write-back and the next card
// happen under one lock.
type SessionService interface {
	StartStudy(ctx context.Context, deckID string) (*models.StudyView, error)
	Study(ctx context.Context, id string) (*models.StudyView, error)
	Know(ctx context.Context, id string) (*models.StudyView, error)
	DontKnow(ctx context.Context, id string) (*models.StudyView, error)
	StudyVerdict(ctx context.Context, id string, correct bool) (*models.StudyView, error)
	Advance(ctx context.Context, id string) (*models.StudyView, error)
	RemoveStudyCard(ctx context.Context, id, cardID string) (*models.StudyView, error)
	ExitStudy(ctx context.Context, id string) (*models.SessionSummary, error)

	StartExam(ctx context.Context, deckID string, count int) (*models.ExamView, error)
	Exam(ctx context.Context, id string) (*models.ExamView, error)
	Reveal(ctx context.Context, id string) (*models.ExamView, error)
	ExamVerdict(ctx context.Context, id string, correct bool) (*models.ExamView, error)
	ExitExam(ctx context.Context, id string) (*models.SessionSummary, error)

	// Tick adds elapsed time to every live session.
	Tick(ctx context.Context, deltaSeconds int)
	// Run ticks once per second until ctx is done.
	Run(ctx context.Context)
	// EndAll exits every live session, e.g. on shutdown.
	EndAll(ctx context.Context)
	LiveCount() int

	DeckLocker
}

// SessionOption configures a SessionService.
type SessionOption func(*sessionService)

// WithSessionClock replaces time.Now for review timestamps and stats days.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *sessionService) {
		s.now = now
	}
}

// WithRandSeed makes exam sampling deterministic.
func WithRandSeed(seed int64) SessionOption {
	return func(s *sessionService) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

type liveSession struct {
	mu     sync.Mutex
	id     string
	deckID string
	mode   string
	study  *session.StudySession
	exam   *session.ExamSession
}

// holdsDeck reports whether the session may still write its deck back.
func (l *liveSession) holdsDeck() bool {
	if l.study != nil {
		return l.study.State() != session.StudyClosed
	}
	st := l.exam.State()
	return st == session.ExamQuestion || st == session.ExamReveal
}

func (l *liveSession) tick(ctx context.Context, delta int) {
	if l.study != nil {
		l.study.Tick(ctx, delta)
		return
	}
	l.exam.Tick(ctx, delta)
}

func (l *liveSession) exit(ctx context.Context) (session.Summary, error) {
	if l.study != nil {
		return l.study.Exit(ctx)
	}
	return l.exam.Exit(ctx)
}

type sessionService struct {
	guards deckGuards

	mu       sync.RWMutex
	sessions map[string]*liveSession
	byDeck   map[string]string

	deckRepo  repository.DeckRepository
	statsRepo repository.StatsRepository
	logRepo   repository.SessionLogRepository

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(
	deckRepo repository.DeckRepository,
	statsRepo repository.StatsRepository,
	logRepo repository.SessionLogRepository,
	opts ...SessionOption,
) SessionService {
	s := &sessionService{
		sessions:  map[string]*liveSession{},
		byDeck:    map[string]string{},
		deckRepo:  deckRepo,
		statsRepo: statsRepo,
		logRepo:   logRepo,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

func (s *sessionService) observer(deckID, mode string) *storeObserver {
	return &storeObserver{
		deckID: deckID,
		mode:   mode,
		decks:  s.deckRepo,
		stats:  s.statsRepo,
		logs:   s.logRepo,
		now:    s.now,
	}
}

func (s *sessionService) loadDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	deck, err := s.deckRepo.Get(ctx, deckID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load deck %s: %v", deckID, err)
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", deckID)
	}
	return deck, nil
}

// register replaces any session already holding deckID, exiting it first.
func (s *sessionService) register(ctx context.Context, ls *liveSession) {
	s.mu.Lock()
	var previous *liveSession
	if prevID, ok := s.byDeck[ls.deckID]; ok {
		previous = s.sessions[prevID]
		delete(s.sessions, prevID)
	}
	s.sessions[ls.id] = ls
	s.byDeck[ls.deckID] = ls.id
	s.mu.Unlock()

	if previous != nil {
		logger.FromContext(ctx).Info("replacing live %s session %s on deck %s", previous.mode, previous.id, ls.deckID)
		previous.mu.Lock()
		_, _ = previous.exit(ctx)
		previous.mu.Unlock()
	}
}

func (s *sessionService) unregister(ls *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[ls.id]; ok && cur == ls {
		delete(s.sessions, ls.id)
	}
	if s.byDeck[ls.deckID] == ls.id {
		delete(s.byDeck, ls.deckID)
	}
}

func (s *sessionService) lookup(id, mode string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || ls.mode != mode {
		return nil, errors.NewNotFoundError(mode+" session", id)
	}
	return ls, nil
}

func (s *sessionService) snapshot() []*liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		out = append(out, ls)
	}
	return out
}

func sessionError(err error, cardID string) error {
	switch {
	case stderrors.Is(err, session.ErrSessionClosed):
		return errors.NewConflictError("session is closed", err)
	case stderrors.Is(err, session.ErrInvalidTransition):
		return errors.NewConflictError("action not allowed in the current state", err)
	case stderrors.Is(err, session.ErrCardNotFound):
		return errors.NewNotFoundError("card", cardID)
	default:
		return errors.NewInternalError(err)
	}
}

func studyView(ls *liveSession) *models.StudyView {
	st := ls.study
	v := &models.StudyView{
		SessionID:      ls.id,
		DeckID:         ls.deckID,
		State:          st.State().String(),
		QueueLength:    len(st.Queue()),
		ElapsedSeconds: st.Elapsed(),
		Correct:        st.Correct(),
		Wrong:          st.Wrong(),
	}
	if c, ok := st.Current(); ok {
		v.Card = &c
	}
	if off, ok := st.LastOffset(); ok {
		v.LastOffset = &off
	}
	return v
}

func examView(ls *liveSession) *models.ExamView {
	ex := ls.exam
	v := &models.ExamView{
		SessionID:      ls.id,
		DeckID:         ls.deckID,
		State:          ex.State().String(),
		Index:          ex.Index(),
		Total:          ex.Total(),
		ElapsedSeconds: ex.Elapsed(),
		Correct:        ex.Correct(),
		Wrong:          ex.Wrong(),
	}
	if c, ok := ex.Current(); ok {
		v.Card = &c
	}
	return v
}

// takeDeck ends whatever session holds deckID and loads the deck fresh. The
// caller holds the deck lock, so nothing writes the deck between the two.
func (s *sessionService) takeDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	if err := s.EndDeck(ctx, deckID); err != nil {
		logger.FromContext(ctx).Warn("failed to end previous session on deck %s: %v", deckID, err)
	}
	return s.loadDeck(ctx, deckID)
}

func (s *sessionService) StartStudy(ctx context.Context, deckID string) (*models.StudyView, error) {
	log := logger.FromContext(ctx)

	unlock := s.LockDeck(deckID)
	defer unlock()
	deck, err := s.takeDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	ls := &liveSession{id: uuid.NewString(), deckID: deckID, mode: models.ModeStudy}
	ls.study = session.NewStudySession(*deck, s.observer(deckID, models.ModeStudy), session.WithClock(s.now))
	if skipped := ls.study.Skipped(); skipped > 0 {
		log.Warn("deck %s queue had %d unknown or repeated ids; they were dropped", deckID, skipped)
	}
	s.register(ctx, ls)
	log.Info("study session started: id=%s, deck_id=%s, queue=%d", ls.id, deckID, len(ls.study.Queue()))

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return studyView(ls), nil
}

// withStudy runs fn on the study session under its lock and returns the resulting view.
func (s *sessionService) withStudy(ctx context.Context, id string, fn func(*session.StudySession) error) (*models.StudyView, error) {
	ls, err := s.lookup(id, models.ModeStudy)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if fn != nil {
		if err := fn(ls.study); err != nil {
			logger.FromContext(ctx).Debug("study action rejected: id=%s, state=%s: %v", id, ls.study.State(), err)
			return nil, err
		}
	}
	return studyView(ls), nil
}

func (s *sessionService) Study(ctx context.Context, id string) (*models.StudyView, error) {
	return s.withStudy(ctx, id, nil)
}

func (s *sessionService) Know(ctx context.Context, id string) (*models.StudyView, error) {
	return s.withStudy(ctx, id, func(st *session.StudySession) error {
		if err := st.Know(ctx); err != nil {
			return sessionError(err, "")
		}
		return nil
	})
}

func (s *sessionService) DontKnow(ctx context.Context, id string) (*models.StudyView, error) {
	return s.withStudy(ctx, id, func(st *session.StudySession) error {
		res, err := st.DontKnow(ctx)
		if err != nil {
			return sessionError(err, "")
		}
		logger.FromContext(ctx).Debug("card %s missed, requeued at %d (wanted %d)", res.Card.ID, res.Offset, res.Requested)
		return nil
	})
}

func (s *sessionService) StudyVerdict(ctx context.Context, id string, correct bool) (*models.StudyView, error) {
	return s.withStudy(ctx, id, func(st *session.StudySession) error {
		res, err := st.Verdict(ctx, correct)
		if err != nil {
			return sessionError(err, "")
		}
		logger.FromContext(ctx).Debug("card %s answered correct=%v, requeued at %d (wanted %d)", res.Card.ID, correct, res.Offset, res.Requested)
		return nil
	})
}

func (s *sessionService) Advance(ctx context.Context, id string) (*models.StudyView, error) {
	return s.withStudy(ctx, id, func(st *session.StudySession) error {
		if err := st.Advance(ctx); err != nil {
			return sessionError(err, "")
		}
		return nil
	})
}

func (s *sessionService) RemoveStudyCard(ctx context.Context, id, cardID string) (*models.StudyView, error) {
	return s.withStudy(ctx, id, func(st *session.StudySession) error {
		if err := st.DeleteCard(ctx, cardID); err != nil {
			return sessionError(err, cardID)
		}
		logger.FromContext(ctx).Info("card %s deleted during study session %s", cardID, id)
		return nil
	})
}

func (s *sessionService) exitSession(ctx context.Context, id, mode string) (*models.SessionSummary, error) {
	ls, err := s.lookup(id, mode)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	sum, err := ls.exit(ctx)
	ls.mu.Unlock()
	s.unregister(ls)
	if err != nil {
		return nil, sessionError(err, "")
	}
	logger.FromContext(ctx).Info("%s session exited: id=%s, duration=%ds, correct=%d, wrong=%d",
		mode, id, sum.DurationSeconds, sum.Correct, sum.Wrong)
	return &models.SessionSummary{
		SessionID:       id,
		DeckID:          ls.deckID,
		Mode:            mode,
		DurationSeconds: sum.DurationSeconds,
		Correct:         sum.Correct,
		Wrong:           sum.Wrong,
		Answered:        sum.Answered,
		Total:           sum.Total,
	}, nil
}

func (s *sessionService) ExitStudy(ctx context.Context, id string) (*models.SessionSummary, error) {
	return s.exitSession(ctx, id, models.ModeStudy)
}

func (s *sessionService) StartExam(ctx context.Context, deckID string, count int) (*models.ExamView, error) {
	log := logger.FromContext(ctx)

	unlock := s.LockDeck(deckID)
	defer unlock()
	deck, err := s.takeDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	s.rngMu.Lock()
	rng := rand.New(rand.NewSource(s.rng.Int63()))
	s.rngMu.Unlock()

	ls := &liveSession{id: uuid.NewString(), deckID: deckID, mode: models.ModeExam}
	ls.exam = session.NewExamSession(*deck, count, rng, s.observer(deckID, models.ModeExam), session.WithClock(s.now))
	s.register(ctx, ls)
	log.Info("exam session started: id=%s, deck_id=%s, requested=%d, sampled=%d", ls.id, deckID, count, ls.exam.Total())

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return examView(ls), nil
}

func (s *sessionService) withExam(ctx context.Context, id string, fn func(*session.ExamSession) error) (*models.ExamView, error) {
	ls, err := s.lookup(id, models.ModeExam)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if fn != nil {
		if err := fn(ls.exam); err != nil {
			logger.FromContext(ctx).Debug("exam action rejected: id=%s, state=%s: %v", id, ls.exam.State(), err)
			return nil, err
		}
	}
	return examView(ls), nil
}

func (s *sessionService) Exam(ctx context.Context, id string) (*models.ExamView, error) {
	return s.withExam(ctx, id, nil)
}

func (s *sessionService) Reveal(ctx context.Context, id string) (*models.ExamView, error) {
	return s.withExam(ctx, id, func(ex *session.ExamSession) error {
		if err := ex.Reveal(ctx); err != nil {
			return sessionError(err, "")
		}
		return nil
	})
}

func (s *sessionService) ExamVerdict(ctx context.Context, id string, correct bool) (*models.ExamView, error) {
	return s.withExam(ctx, id, func(ex *session.ExamSession) error {
		if _, err := ex.Verdict(ctx, correct); err != nil {
			return sessionError(err, "")
		}
		return nil
	})
}

func (s *sessionService) ExitExam(ctx context.Context, id string) (*models.SessionSummary, error) {
	return s.exitSession(ctx, id, models.ModeExam)
}

func (s *sessionService) Tick(ctx context.Context, deltaSeconds int) {
	for _, ls := range s.snapshot() {
		ls.mu.Lock()
		ls.tick(ctx, deltaSeconds)
		ls.mu.Unlock()
	}
}

func (s *sessionService) Run(ctx context.Context) {
	log := logger.FromContext(ctx).WithPrefix("session-clock")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	log.Debug("session clock started")
	for {
		select {
		case <-ctx.Done():
			log.Debug("session clock stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, 1)
		}
	}
}

func (s *sessionService) EndAll(ctx context.Context) {
	live := s.snapshot()
	for _, ls := range live {
		ls.mu.Lock()
		_, _ = ls.exit(ctx)
		ls.mu.Unlock()
		s.unregister(ls)
	}
	if len(live) > 0 {
		logger.FromContext(ctx).Info("ended %d live sessions", len(live))
	}
}

func (s *sessionService) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionService) deckSession(deckID string) *liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDeck[deckID]
	if !ok {
		return nil
	}
	return s.sessions[id]
}

func (s *sessionService) Busy(deckID string) bool {
	ls := s.deckSession(deckID)
	if ls == nil {
		return false
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.holdsDeck()
}

func (s *sessionService) LockDeck(deckID string) func() {
	return s.guards.lock(deckID)
}

func (s *sessionService) EndDeck(ctx context.Context, deckID string) error {
	ls := s.deckSession(deckID)
	if ls == nil {
		return nil
	}
	_, err := s.exitSession(ctx, ls.id, ls.mode)
	if appErr, ok := errors.As(err); ok && appErr.Code == errors.ErrCodeNotFound {
		return nil
	}
	return err
}
