package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quizki/internal/app"
	"quizki/internal/domain"
)

type stubProfileSource struct {
	user      domain.User
	scores    []domain.QuizScore
	scoresErr error
	stats     domain.UserStats
	statsErr  error
}

func (s *stubProfileSource) Me(context.Context) (domain.User, error) {
	return s.user, nil
}

func (s *stubProfileSource) ListMyQuizScores(context.Context) ([]domain.QuizScore, error) {
	return s.scores, s.scoresErr
}

func (s *stubProfileSource) MyStats(context.Context) (domain.UserStats, error) {
	return s.stats, s.statsErr
}

func TestBuildProfileAverage(t *testing.T) {
	profile := app.BuildProfile(domain.User{Username: "alice"}, []domain.QuizScore{
		{QuizID: "1", TotalQuestions: 3, CorrectAnswers: 2},
		{QuizID: "2", TotalQuestions: 4, CorrectAnswers: 4},
		{QuizID: "3", TotalQuestions: 0, CorrectAnswers: 0},
	})

	// (66.67 + 100 + 0) / 3
	if profile.QuizzesTaken != 3 || profile.AverageScore != 56 {
		t.Fatalf("unexpected totals taken=%d average=%d", profile.QuizzesTaken, profile.AverageScore)
	}
	if profile.Rank != "Quiz Apprentice" {
		t.Fatalf("unexpected rank %q", profile.Rank)
	}
}

func TestRankTitle(t *testing.T) {
	cases := []struct {
		average, taken int
		want           string
	}{
		{0, 0, "Novice"},
		{95, 10, "Quiz Master"},
		{95, 9, "Quiz Expert"},
		{75, 5, "Quiz Expert"},
		{80, 4, "Quiz Enthusiast"},
		{60, 1, "Quiz Enthusiast"},
		{59, 20, "Quiz Apprentice"},
	}
	for _, tc := range cases {
		if got := app.RankTitle(tc.average, tc.taken); got != tc.want {
			t.Fatalf("RankTitle(%d, %d) = %q, want %q", tc.average, tc.taken, got, tc.want)
		}
	}
}

func TestProfileServiceToleratesMissingStats(t *testing.T) {
	source := &stubProfileSource{
		user:      domain.User{Username: "alice"},
		scoresErr: fmt.Errorf("%w: no scores", domain.ErrNotFound),
		statsErr:  fmt.Errorf("%w: 404 Not Found", domain.ErrNotFound),
	}
	profile, err := app.NewProfileService(source, nil).Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.User.Username != "alice" || profile.QuizzesTaken != 0 || profile.Rank != "Novice" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.Stats != nil {
		t.Fatalf("expected stats omitted, got %+v", profile.Stats)
	}
}

func TestProfileServiceIncludesStats(t *testing.T) {
	source := &stubProfileSource{
		user:   domain.User{Username: "alice"},
		scores: []domain.QuizScore{{QuizID: "1", TotalQuestions: 2, CorrectAnswers: 2}},
		stats:  domain.UserStats{QuizzesTaken: 1, QuestionsAnswered: 2, CorrectAnswers: 2, AverageScore: 100},
	}
	profile, err := app.NewProfileService(source, nil).Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.AverageScore != 100 || profile.Rank != "Quiz Enthusiast" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.Stats == nil || profile.Stats.QuestionsAnswered != 2 {
		t.Fatalf("expected stats, got %+v", profile.Stats)
	}
}

func TestProfileServicePropagatesUnauthorized(t *testing.T) {
	source := &stubProfileSource{
		statsErr: fmt.Errorf("%w: Could not validate credentials", domain.ErrUnauthorized),
	}
	_, err := app.NewProfileService(source, nil).Get(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
