package memory

import (
	"context"
	"testing"

	"quizki/internal/app"
	"quizki/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	service := app.NewQuizService(
		NewStaticQuizRepository([]domain.Quiz{sampleQuiz()}, sampleQuestions()),
		nopAttempts{},
		AnswerKeyFactory(),
		app.WithSessionRepository(store),
	)

	first, err := service.Start(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx := context.Background()
	if id, ok, err := service.Active(ctx, "quiz-1"); err != nil || !ok || id != first.ID() {
		t.Fatalf("expected first session registered, got %q %v %v", id, ok, err)
	}

	second, err := service.Start(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if id, _, _ := store.Active(ctx, "quiz-1"); id != second.ID() {
		t.Fatalf("expected restart to replace the active session")
	}

	// closing a replaced session must not evict its successor
	first.Close()
	if id, _, _ := store.Active(ctx, "quiz-1"); id != second.ID() {
		t.Fatalf("expected second session to stay active")
	}

	second.Close()
	if _, ok, _ := service.Active(ctx, "quiz-1"); ok {
		t.Fatalf("expected session removed once closed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

type nopAttempts struct{}

func (nopAttempts) DeleteAnswer(context.Context, string) error   { return nil }
func (nopAttempts) DeleteQuizScore(context.Context, string) error { return nil }

func (nopAttempts) SubmitAnswer(_ context.Context, s domain.AnswerSubmission) (domain.Answer, error) {
	return domain.Answer{QuestionID: s.QuestionID, ChoiceID: s.ChoiceID}, nil
}

func (nopAttempts) SubmitQuizScore(_ context.Context, score domain.QuizScore) (domain.QuizScore, error) {
	return score, nil
}

func (nopAttempts) ListMyAnswers(context.Context) ([]domain.Answer, error) { return nil, nil }
