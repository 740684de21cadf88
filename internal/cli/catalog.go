package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"quizki/internal/app"
)

func newQuizzesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quizzes",
		Short: "List available quizzes",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			quizzes, err := rt.catalog.ListQuizzes(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(quizzes) == 0 {
				fmt.Fprintln(out, "No quizzes available.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tDIFFICULTY\tQUESTIONS\tMINUTES")
			for _, q := range quizzes {
				minutes := "-"
				if q.TimeLimitMinutes > 0 {
					minutes = fmt.Sprintf("%d", q.TimeLimitMinutes)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					q.ID, q.Title, q.Category, q.Difficulty.Label(), len(q.QuestionIDs), minutes)
			}
			return tw.Flush()
		}),
	}
}

func newQuestionsCmd(opts *rootOptions) *cobra.Command {
	var filter app.QuestionFilter
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Browse the question bank",
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
			questions, err := rt.catalog.AllQuestions(ctx)
			if err != nil {
				return err
			}
			questions = app.FilterQuestions(questions, filter)
			out := cmd.OutOrStdout()
			if len(questions) == 0 {
				fmt.Fprintln(out, "No questions match.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tDIFFICULTY\tSCORE\tQUESTION")
			for _, q := range questions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					q.ID, q.Category, q.Difficulty.Label(), formatScore(q.Score), truncate(q.Text, 60))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "match question text")
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "filter by category")
	cmd.Flags().StringVarP(&filter.Difficulty, "difficulty", "d", "", "filter by difficulty")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
