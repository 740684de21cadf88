package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quizki/internal/app"
	"quizki/internal/domain"
)

func TestBuildLeaderboardOrdering(t *testing.T) {
	lb := app.BuildLeaderboard([]domain.User{
		{Username: "carol", TotalScore: 5},
		{Username: "alice", TotalScore: 9.5},
		{Username: "bob", TotalScore: 5},
	}, "bob")

	want := []string{"alice", "bob", "carol"}
	for i, entry := range lb.Entries {
		if entry.Username != want[i] || entry.Rank != i+1 {
			t.Fatalf("position %d: got %+v", i, entry)
		}
	}
	if lb.CurrentRank != 2 {
		t.Fatalf("expected bob at rank 2, got %d", lb.CurrentRank)
	}
}

func TestLeaderboardServiceWithoutCurrentUser(t *testing.T) {
	dir := &stubDirectory{
		users: []domain.User{{Username: "alice", TotalScore: 1}},
		meErr: errors.New("404 Not Found"),
	}
	lb, err := app.NewLeaderboardService(dir, nil).Get(context.Background(), 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(lb.Entries) != 1 || lb.CurrentRank != 0 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
}

func TestLeaderboardServicePropagatesUnauthorized(t *testing.T) {
	dir := &stubDirectory{meErr: fmt.Errorf("%w: expired", domain.ErrUnauthorized)}
	if _, err := app.NewLeaderboardService(dir, nil).Get(context.Background(), 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

type stubDirectory struct {
	users []domain.User
	me    domain.User
	meErr error
}

func (d *stubDirectory) ListUsers(context.Context, int, int) ([]domain.User, error) {
	return d.users, nil
}

func (d *stubDirectory) Me(context.Context) (domain.User, error) {
	return d.me, d.meErr
}
