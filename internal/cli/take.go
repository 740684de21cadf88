package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"quizki/internal/app"
	"quizki/internal/domain"
)

const takeHelp = `Commands:
  <number>  select that choice for the current question
  n / p     next / previous question
  g <k>     go to question k
  t         show remaining time
  s         submit the quiz
  q         quit without submitting
  ?         show this help`

type forcedResult struct {
	report domain.Report
	err    error
}

func newTakeCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "take <quiz-id>",
		Short: "Take a timed quiz",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			return runTake(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), rt, args[0], force)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "start over even if the quiz is being taken in another session")
	return cmd
}

func runTake(ctx context.Context, in io.Reader, out io.Writer, rt *runtime, quizID string, force bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	service := rt.quizService()
	if !force {
		if id, ok, err := service.Active(ctx, quizID); err != nil {
			rt.logger.Warn("check active session", "quiz_id", quizID, "err", err)
		} else if ok {
			return fmt.Errorf("%w: quiz %s is open in session %s, use --force to start over", domain.ErrSessionActive, quizID, id)
		}
	}

	expired := make(chan struct{}, 1)
	rt.auth.OnExpired(func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	})

	session, err := service.Start(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			fmt.Fprintln(out, sessionExpiredMessage)
		}
		return err
	}
	defer session.Close()

	quiz := session.Quiz()
	fmt.Fprintf(out, "%s\n", quiz.Title)
	if quiz.Description != "" {
		fmt.Fprintf(out, "%s\n", quiz.Description)
	}
	if session.Empty() {
		fmt.Fprintln(out, "This quiz has no questions available.")
		return nil
	}

	forced := make(chan forcedResult, 1)
	session.StartCountdown(func(report domain.Report, err error) {
		forced <- forcedResult{report: report, err: err}
	})
	session.OnProgress(func(done, total int) {
		fmt.Fprintf(out, "Submitting answers %d/%d\n", done, total)
	})

	fmt.Fprintf(out, "%d questions, %s to finish. Type ? for help.\n\n",
		len(session.Questions()), app.FormatElapsed(session.TimeBudget()))
	renderQuestion(out, session)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	timeUp := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			fmt.Fprintln(out, sessionExpiredMessage)
			return nil
		case res := <-forced:
			if errors.Is(res.err, domain.ErrSubmissionFailed) {
				timeUp = true
				fmt.Fprintf(out, "\nTime is up, but the submission failed. Your answers are kept, type s to retry. (%v)\n", res.err)
				continue
			}
			fmt.Fprintln(out, "\nTime is up! Your answers were submitted.")
			return finishTake(out, res.report, res.err)
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "Input closed, quiz abandoned.")
				return nil
			}
			done, err := handleTakeInput(ctx, out, session, forced, timeUp, strings.TrimSpace(line))
			if done || err != nil {
				return err
			}
		}
	}
}

// handleTakeInput applies one line of user input. It reports done once the
// session has ended one way or another. After time is up only submitting and
// quitting are accepted.
func handleTakeInput(ctx context.Context, out io.Writer, session *app.Session, forced <-chan forcedResult, timeUp bool, line string) (bool, error) {
	tracker := session.Tracker()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	if timeUp && fields[0] != "s" && fields[0] != "q" {
		fmt.Fprintln(out, "Time is up: type s to retry the submission or q to quit.")
		return false, nil
	}

	switch fields[0] {
	case "?", "h", "help":
		fmt.Fprintln(out, takeHelp)
	case "n":
		tracker.Next()
		renderQuestion(out, session)
	case "p":
		tracker.Previous()
		renderQuestion(out, session)
	case "g":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: g <question number>")
			return false, nil
		}
		k, err := strconv.Atoi(fields[1])
		if err != nil || k < 1 || k > tracker.Count() {
			fmt.Fprintf(out, "pick a question between 1 and %d\n", tracker.Count())
			return false, nil
		}
		tracker.GoTo(k - 1)
		renderQuestion(out, session)
	case "t":
		fmt.Fprintf(out, "%s remaining\n", app.FormatElapsed(time.Duration(session.Remaining())*time.Second))
	case "q":
		fmt.Fprintln(out, "Quiz abandoned.")
		return true, nil
	case "s":
		report, err := session.Submit(ctx)
		switch {
		case errors.Is(err, domain.ErrSubmitInProgress):
			res := <-forced
			return true, finishTake(out, res.report, res.err)
		case errors.Is(err, domain.ErrSubmissionFailed):
			fmt.Fprintf(out, "Submission failed, your answers are kept. Try again with s. (%v)\n", err)
			return false, nil
		}
		return true, finishTake(out, report, err)
	default:
		n, err := strconv.Atoi(fields[0])
		q, ok := session.Current()
		if err != nil || !ok {
			fmt.Fprintln(out, "unknown command, type ? for help")
			return false, nil
		}
		if n < 1 || n > len(q.Choices) {
			fmt.Fprintf(out, "pick a choice between 1 and %d\n", len(q.Choices))
			return false, nil
		}
		tracker.Select(q.ID, q.Choices[n-1].ID)
		fmt.Fprintf(out, "Selected: %s (%d/%d answered)\n", q.Choices[n-1].Text, tracker.AnsweredCount(), tracker.Count())
	}
	return false, nil
}

func finishTake(out io.Writer, report domain.Report, err error) error {
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			fmt.Fprintln(out, sessionExpiredMessage)
			return nil
		}
		return err
	}
	renderReport(out, report)
	return nil
}

func renderQuestion(out io.Writer, session *app.Session) {
	q, ok := session.Current()
	if !ok {
		return
	}
	tracker := session.Tracker()
	selected, _ := tracker.Selection(q.ID)

	fmt.Fprintf(out, "Question %d of %d", tracker.Index()+1, tracker.Count())
	if q.Score > 0 {
		fmt.Fprintf(out, " (%s pts)", formatScore(q.Score))
	}
	fmt.Fprintf(out, "\n%s\n", q.Text)
	for i, c := range q.Choices {
		mark := " "
		if c.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %d) %s\n", mark, i+1, c.Text)
	}
}

func renderReport(out io.Writer, r domain.Report) {
	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(out, "\n== %s ==\n", r.QuizTitle)
	fmt.Fprintf(out, "Correct: %d of %d answered (%d questions, %d needed to pass) %s\n",
		r.Score, r.TotalQuestions, r.QuestionCount, r.PassingScore, verdict)
	fmt.Fprintf(out, "Total score: %s\n", formatScore(r.TotalScore))
	fmt.Fprintf(out, "Time spent: %s\n", r.TimeSpent)
	fmt.Fprintf(out, "Taken: %s\n\n", r.DateTaken.Local().Format("2006-01-02 15:04"))

	for i, q := range r.Questions {
		result := "wrong"
		if q.IsCorrect {
			result = "correct"
		} else if q.UserAnswer == domain.NotAnswered {
			result = "skipped"
		}
		fmt.Fprintf(out, "%d. %s [%s]\n", i+1, q.Text, result)
		fmt.Fprintf(out, "   Your answer:    %s\n", q.UserAnswer)
		fmt.Fprintf(out, "   Correct answer: %s\n", q.CorrectAnswer)
	}

	if r.FailedAnswers > 0 {
		fmt.Fprintf(out, "\nWarning: %d answer(s) could not be submitted.\n", r.FailedAnswers)
	}
	if r.ScoreErr != nil {
		fmt.Fprintf(out, "Warning: quiz score was not recorded: %v\n", r.ScoreErr)
	}
}
