package app_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quizki/internal/domain"
)

var errDuplicate = errors.New("You have already answered this question or invalid data")

// fakeBackend mimics the REST backend for a single logged-in user.
type fakeBackend struct {
	mu sync.Mutex

	quizzes   map[string]domain.Quiz
	questions map[string]domain.Question
	answers   []domain.Answer
	scores    map[string]domain.QuizScore

	// hideCorrectness strips is_correct from question detail, as for non-admin users.
	hideCorrectness bool
	// flagAnswers makes answer submits report is_correct.
	flagAnswers bool

	questionErrs map[string]error
	submitErrs   map[string]error
	scoreErr     error
	historyErrs  []error
	deleteErr    error
	submitDelay  time.Duration

	submitCalls  int
	scoreCalls   int
	historyCalls int
	deleteCalls  int
	seq          int
	now          time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		quizzes:      make(map[string]domain.Quiz),
		questions:    make(map[string]domain.Question),
		scores:       make(map[string]domain.QuizScore),
		questionErrs: make(map[string]error),
		submitErrs:   make(map[string]error),
		now:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

// exampleBackend is quiz Q1 with questions 101..103 whose correct choices are 1001..1003.
func exampleBackend() *fakeBackend {
	b := newFakeBackend()
	b.quizzes["Q1"] = domain.Quiz{ID: "Q1", Title: "Example", QuestionIDs: []string{"101", "102", "103"}}
	for i := 1; i <= 3; i++ {
		qid := strconv.Itoa(100 + i)
		correctID := strconv.Itoa(1000 + i)
		b.questions[qid] = domain.Question{
			ID:    qid,
			Text:  "Question " + qid,
			Score: 1,
			Choices: []domain.Choice{
				{ID: correctID, Text: "right " + qid, IsCorrect: boolPtr(true)},
				{ID: "9999", Text: "wrong", IsCorrect: boolPtr(false)},
			},
		}
	}
	return b
}

func (b *fakeBackend) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	quiz, ok := b.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}
	return quiz, nil
}

func (b *fakeBackend) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.questionErrs[questionID]; err != nil {
		return domain.Question{}, err
	}
	q, ok := b.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if b.hideCorrectness {
		choices := make([]domain.Choice, len(q.Choices))
		for i, c := range q.Choices {
			choices[i] = domain.Choice{ID: c.ID, Text: c.Text}
		}
		q.Choices = choices
	}
	return q, nil
}

func (b *fakeBackend) DeleteAnswer(_ context.Context, questionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	kept := b.answers[:0]
	found := false
	for _, a := range b.answers {
		if a.QuestionID == questionID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	b.answers = kept
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (b *fakeBackend) DeleteQuizScore(_ context.Context, quizID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls++
	if _, ok := b.scores[quizID]; !ok {
		return domain.ErrNotFound
	}
	delete(b.scores, quizID)
	return nil
}

func (b *fakeBackend) SubmitAnswer(_ context.Context, s domain.AnswerSubmission) (domain.Answer, error) {
	if b.submitDelay > 0 {
		time.Sleep(b.submitDelay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitCalls++
	if err := b.submitErrs[s.QuestionID]; err != nil {
		return domain.Answer{}, err
	}
	for _, a := range b.answers {
		if a.QuestionID == s.QuestionID {
			return domain.Answer{}, errDuplicate
		}
	}

	q := b.questions[s.QuestionID]
	correct := false
	for _, c := range q.Choices {
		if c.ID == s.ChoiceID && c.IsCorrect != nil && *c.IsCorrect {
			correct = true
		}
	}
	b.seq++
	answer := domain.Answer{
		ID:         strconv.Itoa(b.seq),
		UserID:     "1",
		QuestionID: s.QuestionID,
		ChoiceID:   s.ChoiceID,
		CreatedAt:  b.now.Add(time.Duration(b.seq) * time.Second),
	}
	if correct {
		answer.Score = q.Score
	}
	b.answers = append(b.answers, answer)
	if b.flagAnswers {
		answer.IsCorrect = boolPtr(correct)
	}
	return answer, nil
}

func (b *fakeBackend) SubmitQuizScore(_ context.Context, score domain.QuizScore) (domain.QuizScore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scoreCalls++
	if b.scoreErr != nil {
		return domain.QuizScore{}, b.scoreErr
	}
	b.scores[score.QuizID] = score
	return score, nil
}

func (b *fakeBackend) ListMyAnswers(context.Context) ([]domain.Answer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyCalls++
	if len(b.historyErrs) > 0 {
		err := b.historyErrs[0]
		b.historyErrs = b.historyErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]domain.Answer, len(b.answers))
	copy(out, b.answers)
	return out, nil
}

func (b *fakeBackend) counts() (submits, scores, histories int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitCalls, b.scoreCalls, b.historyCalls
}

func boolPtr(v bool) *bool {
	return &v
}
