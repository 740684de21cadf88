package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"quizki/internal/domain"
)

// QuizRepository resolves quiz metadata and question detail.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AttemptRepository is the backend surface a quiz attempt writes to and reads back from.
type AttemptRepository interface {
	DeleteAnswer(ctx context.Context, questionID string) error
	DeleteQuizScore(ctx context.Context, quizID string) error
	SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) (domain.Answer, error)
	SubmitQuizScore(ctx context.Context, score domain.QuizScore) (domain.QuizScore, error)
	ListMyAnswers(ctx context.Context) ([]domain.Answer, error)
}

// AnswerKeyCache remembers the correct choice of questions whose correctness was visible.
type AnswerKeyCache interface {
	Put(ctx context.Context, questionID string, key domain.AnswerKey) error
	Get(ctx context.Context, questionID string) (domain.AnswerKey, bool, error)
}

// AnswerKeyFactory hands each new session its cache.
type AnswerKeyFactory func(sessionID string) AnswerKeyCache

// SessionRepository tracks the sessions that are currently active. Active
// reports the ID of the live session for a quiz, which may belong to another
// process when the repository is shared.
type SessionRepository interface {
	Put(session *Session) (previous *Session)
	Active(ctx context.Context, quizID string) (sessionID string, ok bool, err error)
	Remove(session *Session)
}

const (
	defaultTick       = time.Second
	defaultFetchLimit = 4
)

// QuizService prepares quiz sessions.
type QuizService struct {
	quizzes    QuizRepository
	attempts   AttemptRepository
	answerKeys AnswerKeyFactory
	sessions   SessionRepository
	logger     *slog.Logger
	clock      func() time.Time
	tick       time.Duration
	fetchLimit int
}

type ServiceOption func(*QuizService)

// WithSessionRepository makes the service abandon an older session when the same quiz is started again.
func WithSessionRepository(store SessionRepository) ServiceOption {
	return func(s *QuizService) { s.sessions = store }
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *QuizService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.clock = now }
}

// WithTick sets how long one countdown second lasts.
func WithTick(tick time.Duration) ServiceOption {
	return func(s *QuizService) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithFetchLimit bounds concurrent question fetches.
func WithFetchLimit(n int) ServiceOption {
	return func(s *QuizService) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

func NewQuizService(quizzes QuizRepository, attempts AttemptRepository, answerKeys AnswerKeyFactory, opts ...ServiceOption) *QuizService {
	s := &QuizService{
		quizzes:    quizzes,
		attempts:   attempts,
		answerKeys: answerKeys,
		logger:     slog.Default(),
		clock:      time.Now,
		tick:       defaultTick,
		fetchLimit: defaultFetchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves quizID into a ready session and clears the user's previous
// attempt on the backend. A quiz without resolvable questions yields a session
// in StateEmpty; no reset is issued for it.
func (s *QuizService) Start(ctx context.Context, quizID string) (*Session, error) {
	sessionID := uuid.NewString()
	logger := s.logger.With("session_id", sessionID, "quiz_id", quizID)

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrQuizNotFound) {
			err = fmt.Errorf("%w: %v", domain.ErrQuizNotFound, err)
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	questions, err := s.fetchQuestions(ctx, logger, quiz.QuestionIDs)
	if err != nil {
		return nil, err
	}

	keys := s.answerKeys(sessionID)
	for _, q := range questions {
		choice, ok := q.CorrectChoice()
		if !ok {
			continue
		}
		if err := keys.Put(ctx, q.ID, domain.AnswerKey{ChoiceID: choice.ID, Text: choice.Text}); err != nil {
			logger.Warn("cache answer key", "question_id", q.ID, "err", err)
		}
	}

	// A prior attempt is discarded even when no question could be loaded now.
	if len(quiz.QuestionIDs) > 0 {
		if err := s.reset(ctx, quiz); err != nil {
			return nil, err
		}
	}

	session := newSession(sessionParams{
		id:        sessionID,
		quiz:      quiz,
		questions: questions,
		budget:    TimeBudget(quiz, len(questions)),
		attempts:  s.attempts,
		keys:      keys,
		logger:    logger,
		clock:     s.clock,
		tick:      s.tick,
	})
	if s.sessions != nil {
		if previous := s.sessions.Put(session); previous != nil && previous != session {
			previous.Close()
		}
		session.onClose = func() { s.sessions.Remove(session) }
	}

	logger.Info("session ready", "questions", len(questions), "skipped", len(quiz.QuestionIDs)-len(questions), "budget", session.budget)
	return session, nil
}

// Active returns the ID of a session already running for quizID. Without a
// session repository nothing is ever active.
func (s *QuizService) Active(ctx context.Context, quizID string) (string, bool, error) {
	if s.sessions == nil {
		return "", false, nil
	}
	return s.sessions.Active(ctx, quizID)
}

// fetchQuestions loads question detail concurrently and keeps quiz order. A
// question that fails to load is skipped; an authorization failure aborts.
func (s *QuizService) fetchQuestions(ctx context.Context, logger *slog.Logger, ids []string) ([]domain.Question, error) {
	results := make([]*domain.Question, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			q, err := s.quizzes.GetQuestion(gctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return err
				}
				logger.Warn("skip question", "question_id", id, "err", err)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(ids))
	for _, q := range results {
		if q != nil {
			questions = append(questions, *q)
		}
	}
	return questions, nil
}

// reset discards the user's prior answers for every quiz question and the prior
// quiz score. "Nothing to delete" counts as success.
func (s *QuizService) reset(ctx context.Context, quiz domain.Quiz) error {
	var g errgroup.Group
	for _, id := range quiz.QuestionIDs {
		g.Go(func() error {
			return tolerateNotFound(s.attempts.DeleteAnswer(ctx, id))
		})
	}
	g.Go(func() error {
		return tolerateNotFound(s.attempts.DeleteQuizScore(ctx, quiz.ID))
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrResetFailed, err)
	}
	return nil
}

func tolerateNotFound(err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// TimeBudget is the quiz's own limit when set, otherwise two minutes per
// question with a ten minute floor.
func TimeBudget(quiz domain.Quiz, questionCount int) time.Duration {
	if quiz.TimeLimitMinutes > 0 {
		return time.Duration(quiz.TimeLimitMinutes) * time.Minute
	}
	return time.Duration(max(10, questionCount*2)) * time.Minute
}
