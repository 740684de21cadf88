package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"quizki/internal/app"
	"quizki/internal/domain"
)

const sessionExpiredMessage = "Your session has expired. Please log in again."

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			if err := promptMissing(cmd, &creds.Username, "Username"); err != nil {
				return err
			}
			if err := promptMissing(cmd, &creds.Password, "Password"); err != nil {
				return err
			}
			if err := rt.auth.Login(ctx, rt.client, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", creds.Username)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			for _, field := range []struct {
				value *string
				label string
			}{
				{&reg.Username, "Username"},
				{&reg.Email, "Email"},
				{&reg.Password, "Password"},
			} {
				if err := promptMissing(cmd, field.value, field.label); err != nil {
					return err
				}
			}
			user, err := rt.client.Register(ctx, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `quizki login` to start.\n", user.Username)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&reg.Role, "role", "user", "account role")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: withRuntime(opts, func(_ context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			if err := rt.auth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			user, err := rt.client.Me(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s> role=%s total_score=%s\n", user.Username, user.Email, user.Role, formatScore(user.TotalScore))
			if info, ok := rt.auth.Info(); ok && !info.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "token expires %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		}),
	}
}

func newAnswersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "answers",
		Short: "List your recorded answers",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			answers, err := rt.client.ListMyAnswers(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(answers) == 0 {
				fmt.Fprintln(out, "No answers recorded yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUESTION\tCHOICE\tSCORE\tRESULT\tANSWERED")
			for _, a := range answers {
				result := "-"
				switch {
				case a.IsCorrect != nil && *a.IsCorrect, a.IsCorrect == nil && a.Score > 0:
					result = "correct"
				case a.IsCorrect != nil:
					result = "wrong"
				}
				answered := "-"
				if !a.CreatedAt.IsZero() {
					answered = a.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.QuestionID, a.ChoiceID, formatScore(a.Score), result, answered)
			}
			return tw.Flush()
		}),
	}
}

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show users ranked by total score",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			lb, err := app.NewLeaderboardService(rt.client, rt.logger).Get(ctx, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(cmd.OutOrStdout(), lb)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of users to show")
	return cmd
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your quiz history, average and rank",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			profile, err := app.NewProfileService(rt.client, rt.logger).Get(ctx)
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), profile)
			return nil
		}),
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			if err := rt.client.Health(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend ok at %s\n", rt.client.BaseURL())
			return nil
		}),
	}
}

func renderProfile(out io.Writer, p domain.Profile) {
	fmt.Fprintf(out, "%s <%s>  %s\n", p.User.Username, p.User.Email, p.Rank)
	fmt.Fprintf(out, "Quizzes taken: %d\n", p.QuizzesTaken)
	fmt.Fprintf(out, "Average score: %d%%\n", p.AverageScore)
	if p.Stats != nil {
		fmt.Fprintf(out, "Questions answered: %d (%d correct)\n", p.Stats.QuestionsAnswered, p.Stats.CorrectAnswers)
	}
	if len(p.Scores) == 0 {
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUIZ	CORRECT	SCORE	TAKEN")
	for _, sc := range p.Scores {
		taken := "-"
		if !sc.CreatedAt.IsZero() {
			taken = sc.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\n", sc.QuizID, sc.CorrectAnswers, sc.TotalQuestions, formatScore(sc.Score), taken)
	}
	tw.Flush()
}

func renderLeaderboard(out io.Writer, lb domain.Leaderboard) {
	if len(lb.Entries) == 0 {
		fmt.Fprintln(out, "No users yet.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tSCORE")
	for _, e := range lb.Entries {
		marker := ""
		if e.Rank == lb.CurrentRank {
			marker = "  <- you"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s%s\n", e.Rank, e.Username, formatScore(e.TotalScore), marker)
	}
	tw.Flush()
}

// promptMissing reads a single line from the command's input when *value is empty.
func promptMissing(cmd *cobra.Command, value *string, label string) error {
	if *value != "" {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	*value = strings.TrimSpace(line)
	if *value == "" {
		return fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return nil
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// explain rewrites errors a user can act on.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidCredentials):
		return errors.New("invalid username or password")
	case errors.Is(err, domain.ErrUnauthorized):
		return fmt.Errorf("not logged in or session expired, run `quizki login`: %w", err)
	case errors.Is(err, domain.ErrServiceUnavailable):
		return fmt.Errorf("backend unreachable: %w", err)
	default:
		return err
	}
}
