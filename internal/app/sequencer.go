package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"quizki/internal/domain"
)

// StartCountdown starts the session timer. When it runs out the session is
// submitted and onForced receives the outcome, unless a submission was already
// under way. It returns false for an empty session, which never gets a timer.
func (s *Session) StartCountdown(onForced func(domain.Report, error)) bool {
	if s.Empty() {
		return false
	}
	s.countdown.Start(func() {
		s.logger.Info("time is up, submitting")
		report, err := s.Submit(context.Background())
		if errors.Is(err, domain.ErrSubmitInProgress) {
			return
		}
		if onForced != nil {
			onForced(report, err)
		}
	})
	return true
}

// Submit sends every tracked answer to the backend, records the aggregate score
// and builds the report from the backend's answer history.
//
// Only one submission runs at a time: a concurrent call returns
// ErrSubmitInProgress without doing anything. Once the session is done, Submit
// returns the existing report. If the history cannot be fetched the session
// returns to idle with its selections intact and ErrSubmissionFailed is returned.
// A retry does not resend answers or the aggregate the backend already accepted.
// Authorization failures are returned as is.
func (s *Session) Submit(ctx context.Context) (domain.Report, error) {
	if !s.state.CompareAndSwap(int32(domain.StateIdle), int32(domain.StateSubmitting)) {
		switch s.State() {
		case domain.StateDone:
			report, _ := s.Report()
			return report, nil
		case domain.StateEmpty:
			return domain.Report{}, domain.ErrNoQuestions
		default:
			return domain.Report{}, domain.ErrSubmitInProgress
		}
	}

	// Once started, a submission is not cancelled by the caller.
	ctx = context.WithoutCancel(ctx)

	report, err := s.submit(ctx)
	if err != nil {
		s.state.Store(int32(domain.StateIdle))
		return domain.Report{}, err
	}

	s.mu.Lock()
	s.report = &report
	s.mu.Unlock()
	s.state.Store(int32(domain.StateDone))
	s.countdown.Stop()

	s.logger.Info("quiz submitted",
		"score", report.Score,
		"answered", report.TotalQuestions,
		"total_score", report.TotalScore,
		"failed_answers", report.FailedAnswers,
		"time_spent", report.TimeSpent,
	)
	return report, nil
}

// confirmedAnswer is an answer the backend accepted during an earlier attempt.
type confirmedAnswer struct {
	choiceID string
	score    float64
	correct  bool
}

func (s *Session) submit(ctx context.Context) (domain.Report, error) {
	pairs := s.tracker.Pairs()
	answered := s.tracker.AnsweredCount()

	var (
		runningScore float64
		correct      int
		failed       int
	)
	for i, pair := range pairs {
		accepted, err := s.submitPair(ctx, pair)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return domain.Report{}, err
			}
			failed++
			s.logger.Warn("submit answer", "question_id", pair.QuestionID, "choice_id", pair.ChoiceID, "err", err)
			s.progress(i+1, len(pairs))
			continue
		}

		runningScore += accepted.score
		if accepted.correct {
			correct++
		}
		s.progress(i+1, len(pairs))
	}

	s.state.Store(int32(domain.StateReconciling))

	aggregate := domain.QuizScore{
		QuizID:         s.quiz.ID,
		Score:          runningScore,
		TotalQuestions: answered,
		CorrectAnswers: correct,
	}
	var (
		history  []domain.Answer
		scoreErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		if err := s.recordScore(ctx, aggregate); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			scoreErr = err
			s.logger.Warn("submit quiz score", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		answers, err := s.attempts.ListMyAnswers(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		history = answers
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.Report{}, err
		}
		s.logger.Error("fetch answer history", "err", err)
		return domain.Report{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	return Reconcile(ReconcileInput{
		Quiz:          s.quiz,
		Questions:     s.questions,
		History:       history,
		AnswerKeys:    s.answerKeys(ctx),
		AnsweredCount: answered,
		RunningScore:  runningScore,
		FailedAnswers: failed,
		ScoreErr:      scoreErr,
		StartedAt:     s.startedAt,
		FinishedAt:    s.clock(),
	}), nil
}

// submitPair sends one selection unless an earlier attempt already got the same
// choice accepted. A selection changed since then replaces the accepted answer.
func (s *Session) submitPair(ctx context.Context, pair domain.Pair) (confirmedAnswer, error) {
	if prev, ok := s.confirmed[pair.QuestionID]; ok {
		if prev.choiceID == pair.ChoiceID {
			return prev, nil
		}
		if err := tolerateNotFound(s.attempts.DeleteAnswer(ctx, pair.QuestionID)); err != nil {
			return confirmedAnswer{}, fmt.Errorf("replace answer: %w", err)
		}
		delete(s.confirmed, pair.QuestionID)
	}

	answer, err := s.attempts.SubmitAnswer(ctx, domain.AnswerSubmission{
		QuestionID: pair.QuestionID,
		ChoiceID:   pair.ChoiceID,
	})
	if err != nil {
		return confirmedAnswer{}, err
	}
	if answer.ChoiceID == "" {
		answer.ChoiceID = pair.ChoiceID
	}
	key, hasKey := s.answerKey(ctx, pair.QuestionID)
	accepted := confirmedAnswer{
		choiceID: pair.ChoiceID,
		score:    answer.Score,
		correct:  isConfirmedCorrect(answer, key, hasKey),
	}
	s.confirmed[pair.QuestionID] = accepted
	return accepted, nil
}

// recordScore posts the aggregate at most once per distinct value. When a retry
// changes the totals the score recorded earlier is deleted first.
func (s *Session) recordScore(ctx context.Context, score domain.QuizScore) error {
	if prev := s.recordedScore; prev != nil {
		if *prev == score {
			return nil
		}
		if err := tolerateNotFound(s.attempts.DeleteQuizScore(ctx, s.quiz.ID)); err != nil {
			return err
		}
		s.recordedScore = nil
	}
	if _, err := s.attempts.SubmitQuizScore(ctx, score); err != nil {
		return err
	}
	s.recordedScore = &score
	return nil
}

func (s *Session) answerKey(ctx context.Context, questionID string) (domain.AnswerKey, bool) {
	if s.keys == nil {
		return domain.AnswerKey{}, false
	}
	key, ok, err := s.keys.Get(ctx, questionID)
	if err != nil {
		s.logger.Warn("read answer key", "question_id", questionID, "err", err)
		return domain.AnswerKey{}, false
	}
	return key, ok
}

// answerKeys resolves the cached keys of every session question concurrently.
func (s *Session) answerKeys(ctx context.Context) map[string]domain.AnswerKey {
	keys := make(map[string]domain.AnswerKey, len(s.questions))
	if s.keys == nil {
		return keys
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(defaultFetchLimit)
	for _, q := range s.questions {
		g.Go(func() error {
			if key, ok := s.answerKey(ctx, q.ID); ok {
				mu.Lock()
				keys[q.ID] = key
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return keys
}
