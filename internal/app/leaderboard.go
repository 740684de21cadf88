package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"quizki/internal/domain"
)

// UserDirectory lists users and identifies the caller.
type UserDirectory interface {
	ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error)
	Me(ctx context.Context) (domain.User, error)
}

type LeaderboardService struct {
	users  UserDirectory
	logger *slog.Logger
}

func NewLeaderboardService(users UserDirectory, logger *slog.Logger) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{users: users, logger: logger}
}

// Get returns the top limit users and the caller's rank among them.
func (s *LeaderboardService) Get(ctx context.Context, limit int) (domain.Leaderboard, error) {
	var (
		users []domain.User
		me    domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.ListUsers(gctx, 0, limit)
		return err
	})
	g.Go(func() error {
		u, err := s.users.Me(gctx)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			s.logger.Debug("resolve current user", "err", err)
			return nil
		}
		me = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(users, me.Username), nil
}

// BuildLeaderboard orders users by total score, highest first, breaking ties by
// username.
func BuildLeaderboard(users []domain.User, currentUsername string) domain.Leaderboard {
	sorted := make([]domain.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalScore != sorted[j].TotalScore {
			return sorted[i].TotalScore > sorted[j].TotalScore
		}
		return strings.ToLower(sorted[i].Username) < strings.ToLower(sorted[j].Username)
	})

	lb := domain.Leaderboard{Entries: make([]domain.LeaderboardEntry, 0, len(sorted))}
	for i, u := range sorted {
		entry := domain.LeaderboardEntry{Rank: i + 1, Username: u.Username, TotalScore: u.TotalScore}
		if currentUsername != "" && u.Username == currentUsername {
			lb.CurrentRank = entry.Rank
		}
		lb.Entries = append(lb.Entries, entry)
	}
	return lb
}
