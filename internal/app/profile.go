package app

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
	"quizki/internal/domain"
)

// ProfileSource is the slice of the backend the profile page reads.
type ProfileSource interface {
	Me(ctx context.Context) (domain.User, error)
	ListMyQuizScores(ctx context.Context) ([]domain.QuizScore, error)
	MyStats(ctx context.Context) (domain.UserStats, error)
}

type ProfileService struct {
	source ProfileSource
	logger *slog.Logger
}

func NewProfileService(source ProfileSource, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{source: source, logger: logger}
}

// Get loads the user, their quiz scores and the optional stats concurrently.
// Missing scores are an empty history; stats that cannot be loaded are left out.
func (s *ProfileService) Get(ctx context.Context) (domain.Profile, error) {
	var (
		user   domain.User
		scores []domain.QuizScore
		stats  *domain.UserStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.source.Me(gctx)
		return err
	})
	g.Go(func() error {
		list, err := s.source.ListMyQuizScores(gctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		scores = list
		return nil
	})
	g.Go(func() error {
		st, err := s.source.MyStats(gctx)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			s.logger.Debug("load user stats", "err", err)
			return nil
		}
		stats = &st
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Profile{}, err
	}

	profile := BuildProfile(user, scores)
	profile.Stats = stats
	return profile, nil
}

// BuildProfile derives quizzes taken, the average percentage and the rank title
// from the score records. A record without questions counts as 0%.
func BuildProfile(user domain.User, scores []domain.QuizScore) domain.Profile {
	var sum float64
	for _, sc := range scores {
		if sc.TotalQuestions > 0 {
			sum += float64(sc.CorrectAnswers) / float64(sc.TotalQuestions) * 100
		}
	}
	average := 0
	if len(scores) > 0 {
		average = int(math.Round(sum / float64(len(scores))))
	}
	return domain.Profile{
		User:         user,
		Scores:       scores,
		QuizzesTaken: len(scores),
		AverageScore: average,
		Rank:         RankTitle(average, len(scores)),
	}
}

// RankTitle names the user's standing from their average percentage and the
// number of quizzes taken.
func RankTitle(average, taken int) string {
	switch {
	case taken == 0:
		return "Novice"
	case average >= 90 && taken >= 10:
		return "Quiz Master"
	case average >= 75 && taken >= 5:
		return "Quiz Expert"
	case average >= 60:
		return "Quiz Enthusiast"
	default:
		return "Quiz Apprentice"
	}
}
