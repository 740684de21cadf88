package app

import (
	"fmt"
	"math"
	"time"

	"quizki/internal/domain"
)

// ReconcileInput is everything the final report is built from.
type ReconcileInput struct {
	Quiz      domain.Quiz
	Questions []domain.Question
	// History is the user's full answer history as returned by the backend.
	History []domain.Answer
	// AnswerKeys holds cached correct choices for the session's questions.
	AnswerKeys    map[string]domain.AnswerKey
	AnsweredCount int
	RunningScore  float64
	FailedAnswers int
	ScoreErr      error
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Reconcile builds the report from backend-confirmed answer records. A question
// without a record is reported unanswered and incorrect, whatever was selected
// locally. The latest record for a question decides what was answered.
func Reconcile(in ReconcileInput) domain.Report {
	relevant := make(map[string]struct{}, len(in.Questions))
	for _, q := range in.Questions {
		relevant[q.ID] = struct{}{}
	}
	latest := latestAnswers(in.History, relevant)

	report := domain.Report{
		QuizID:         in.Quiz.ID,
		QuizTitle:      in.Quiz.Title,
		TotalQuestions: in.AnsweredCount,
		QuestionCount:  len(in.Questions),
		PassingScore:   PassingScore(len(in.Questions)),
		TimeSpent:      FormatElapsed(in.FinishedAt.Sub(in.StartedAt)),
		DateTaken:      in.FinishedAt,
		FailedAnswers:  in.FailedAnswers,
		ScoreErr:       in.ScoreErr,
		Questions:      make([]domain.QuestionResult, 0, len(in.Questions)),
	}

	var confirmedScore float64
	for _, q := range in.Questions {
		key, hasKey := in.AnswerKeys[q.ID]
		result := domain.QuestionResult{
			ID:         q.ID,
			Text:       q.Text,
			UserAnswer: domain.NotAnswered,
		}

		record, answered := latest[q.ID]
		if answered {
			result.UserAnswer = choiceLabel(q, record.ChoiceID)
			result.IsCorrect = isConfirmedCorrect(record, key, hasKey)
			confirmedScore += record.Score
		}
		result.CorrectAnswer = correctAnswerText(q, record, answered && result.IsCorrect, key, hasKey)

		if result.IsCorrect {
			report.Score++
		}
		report.Questions = append(report.Questions, result)
	}

	report.TotalScore = in.RunningScore
	if len(latest) > 0 {
		report.TotalScore = confirmedScore
	}
	report.Passed = report.QuestionCount > 0 && report.Score >= report.PassingScore
	return report
}

// isConfirmedCorrect reads correctness from the backend record: its explicit flag
// first, then whether the backend awarded points, and only then the cached
// answer key.
func isConfirmedCorrect(record domain.Answer, key domain.AnswerKey, hasKey bool) bool {
	if record.IsCorrect != nil {
		return *record.IsCorrect
	}
	if record.Score > 0 {
		return true
	}
	return hasKey && key.ChoiceID == record.ChoiceID
}

func correctAnswerText(q domain.Question, record domain.Answer, recordCorrect bool, key domain.AnswerKey, hasKey bool) string {
	if choice, ok := q.CorrectChoice(); ok {
		return choice.Text
	}
	if recordCorrect {
		if text, ok := q.ChoiceText(record.ChoiceID); ok {
			return text
		}
	}
	if hasKey && key.Text != "" {
		return key.Text
	}
	return domain.UnknownAnswer
}

func choiceLabel(q domain.Question, choiceID string) string {
	if text, ok := q.ChoiceText(choiceID); ok && text != "" {
		return text
	}
	return "choice " + choiceID
}

// latestAnswers keeps the newest record per relevant question. Records with equal
// timestamps resolve to the one listed last.
func latestAnswers(history []domain.Answer, relevant map[string]struct{}) map[string]domain.Answer {
	latest := make(map[string]domain.Answer)
	for _, a := range history {
		if _, ok := relevant[a.QuestionID]; !ok {
			continue
		}
		if prev, ok := latest[a.QuestionID]; ok && a.CreatedAt.Before(prev.CreatedAt) {
			continue
		}
		latest[a.QuestionID] = a
	}
	return latest
}

// PassingScore is 60% of the question count, rounded up.
func PassingScore(questionCount int) int {
	return int(math.Ceil(float64(questionCount) * 0.6))
}

// FormatElapsed renders d as MM:SS. Minutes are not wrapped at an hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
