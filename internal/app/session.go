package app

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"quizki/internal/domain"
)

// Session is one attempt at a quiz. It owns the answer tracker, the countdown and
// the submission state machine; nothing here is persisted.
type Session struct {
	id        string
	quiz      domain.Quiz
	questions []domain.Question
	budget    time.Duration
	tracker   *Tracker
	countdown *Countdown

	attempts AttemptRepository
	keys     AnswerKeyCache
	logger   *slog.Logger
	clock    func() time.Time

	startedAt time.Time
	state     atomic.Int32

	// Touched only by the goroutine that holds the submitting state.
	confirmed     map[string]confirmedAnswer
	recordedScore *domain.QuizScore

	mu         sync.Mutex
	report     *domain.Report
	onProgress func(done, total int)
	onClose    func()
	closeOnce  sync.Once
}

type sessionParams struct {
	id        string
	quiz      domain.Quiz
	questions []domain.Question
	budget    time.Duration
	attempts  AttemptRepository
	keys      AnswerKeyCache
	logger    *slog.Logger
	clock     func() time.Time
	tick      time.Duration
}

func newSession(p sessionParams) *Session {
	ids := make([]string, 0, len(p.questions))
	for _, q := range p.questions {
		ids = append(ids, q.ID)
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	s := &Session{
		id:        p.id,
		quiz:      p.quiz,
		questions: p.questions,
		budget:    p.budget,
		tracker:   NewTracker(ids),
		countdown: NewCountdown(int(p.budget/time.Second), p.tick),
		attempts:  p.attempts,
		keys:      p.keys,
		logger:    p.logger,
		clock:     p.clock,
		startedAt: p.clock(),
		confirmed: make(map[string]confirmedAnswer),
	}
	if len(p.questions) == 0 {
		s.state.Store(int32(domain.StateEmpty))
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Quiz() domain.Quiz {
	return s.quiz
}

// Questions returns the questions that loaded, in quiz order.
func (s *Session) Questions() []domain.Question {
	return s.questions
}

func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Empty reports whether the quiz had no resolvable questions.
func (s *Session) Empty() bool {
	return s.State() == domain.StateEmpty
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Session) TimeBudget() time.Duration {
	return s.budget
}

// Remaining is the number of countdown seconds left.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// Current returns the question under the tracker's cursor.
func (s *Session) Current() (domain.Question, bool) {
	idx := s.tracker.Index()
	if idx < 0 || idx >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[idx], true
}

// OnProgress registers a callback invoked after every attempted answer submit.
func (s *Session) OnProgress(fn func(done, total int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// Report returns the final report once the session is done.
func (s *Session) Report() (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return domain.Report{}, false
	}
	return *s.report, true
}

// Close abandons the session: the countdown stops and no forced submission
// fires afterwards. A submission already under way still runs to completion.
func (s *Session) Close() {
	s.countdown.Stop()
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *Session) progress(done, total int) {
	s.mu.Lock()
	fn := s.onProgress
	s.mu.Unlock()
	if fn != nil {
		fn(done, total)
	}
}
