package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"quizki/internal/domain"
)

func TestGetQuestionNormalizesFieldVariants(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /questions/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":            1,
				"question_text": "Capital of France?",
				"score":         2.5,
				"choices": []map[string]any{
					{"id": 10, "choice_text": "Paris", "is_correct": true},
					{"id": 11, "choice_text": "Rome", "is_correct": false},
				},
			})
		case "2":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":         "2",
				"text":       "2 + 2?",
				"category":   "Math",
				"difficulty": "beginner",
				"choices": []map[string]any{
					{"id": "20", "text": "4"},
				},
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Question not found"})
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)

	q1, err := client.GetQuestion(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "1", q1.ID)
	require.Equal(t, "Capital of France?", q1.Text)
	require.Equal(t, 2.5, q1.Score)
	require.Equal(t, domain.DefaultCategory, q1.Category)
	require.Equal(t, domain.DifficultyMedium, q1.Difficulty)
	correct, ok := q1.CorrectChoice()
	require.True(t, ok)
	require.Equal(t, "Paris", correct.Text)

	q2, err := client.GetQuestion(context.Background(), "2")
	require.NoError(t, err)
	require.Equal(t, "2 + 2?", q2.Text)
	require.Equal(t, 1.0, q2.Score)
	require.Equal(t, domain.DifficultyEasy, q2.Difficulty)
	require.Nil(t, q2.Choices[0].IsCorrect)
	_, ok = q2.CorrectChoice()
	require.False(t, ok)

	_, err = client.GetQuestion(context.Background(), "3")
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestGetQuizAcceptsEitherTimeLimitSpelling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /quizzes/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "7":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": 7, "title": "Geo", "time_limit": 12, "questions": []int{3, 1, 2},
			})
		case "8":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "8", "title": "Mixed", "timeLimit": 4,
				"questions": []map[string]any{{"id": 5}, {"id": 6}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)

	quiz, err := client.GetQuiz(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, 12, quiz.TimeLimitMinutes)
	require.Equal(t, []string{"3", "1", "2"}, quiz.QuestionIDs)

	quiz, err = client.GetQuiz(context.Background(), "8")
	require.NoError(t, err)
	require.Equal(t, 4, quiz.TimeLimitMinutes)
	require.Equal(t, []string{"5", "6"}, quiz.QuestionIDs)

	_, err = client.GetQuiz(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestSubmitAnswerSendsNumericIdentifiers(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /answers", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 99, "user_id": 1, "question_id": 101, "choice_id": 1001, "score": 1,
			"created_at": "2024-05-01T10:00:00.123456",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1"})))

	answer, err := client.SubmitAnswer(context.Background(), domain.AnswerSubmission{QuestionID: "101", ChoiceID: "1001"})
	require.NoError(t, err)
	require.Equal(t, float64(101), body["question_id"])
	require.Equal(t, float64(1001), body["choice_id"])
	require.Equal(t, "101", answer.QuestionID)
	require.Equal(t, "1001", answer.ChoiceID)
	require.Equal(t, 1.0, answer.Score)
	require.Nil(t, answer.IsCorrect)
	require.Equal(t, 2024, answer.CreatedAt.Year())
}

func TestUnauthorizedInvokesHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /my-answers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var calls atomic.Int32
	client := NewClient(server.URL,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale"})),
		WithUnauthorizedHandler(func() { calls.Add(1) }),
	)

	_, err := client.ListMyAnswers(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Could not validate credentials", apiErr.Message)
	require.Equal(t, int32(1), calls.Load())

	_, err = client.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, int32(1), calls.Load(), "login rejection must not signal expiry")
}

func TestTokenSourceFailureShortCircuits(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	var calls atomic.Int32
	client := NewClient(server.URL,
		WithTokenSource(failingTokenSource{err: domain.ErrUnauthorized}),
		WithUnauthorizedHandler(func() { calls.Add(1) }),
	)

	_, err := client.Me(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, int32(0), hits.Load())
	require.Equal(t, int32(1), calls.Load())
}

func TestTransportFailureIsServiceUnavailable(t *testing.T) {
	client := NewClient("http://quizki.invalid", WithHTTPClient(&http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		}),
	}))

	err := client.Health(context.Background())
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestDeleteAnswerReportsNotFound(t *testing.T) {
	client := NewClient("http://quizki.test", WithHTTPClient(&http.Client{
		Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/my-answers/42", r.URL.Path)
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Status:     "404 Not Found",
				Body:       io.NopCloser(strings.NewReader(`{"detail":"Answer not found"}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}))

	err := client.DeleteAnswer(context.Background(), "42")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUsersReadsPublicProjection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"username": "ada", "total_score": 12.5},
			{"username": "bob", "total_score": 3},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	users, err := NewClient(server.URL).ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "ada", users[0].Username)
	require.Equal(t, 12.5, users[0].TotalScore)
}

func TestProfileEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /my-quiz-scores", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 3, "quiz_id": 1, "score": 2.5, "total_questions": 3, "correct_answers": 2, "created_at": "2024-05-01T10:00:00"},
		})
	})
	stats := []map[string]any{
		{"quizzesTaken": 4, "questionsAnswered": 12, "correctAnswers": 9, "averageScore": 75.5},
		{"quizzes_taken": 2, "questions_answered": 6, "correct_answers": 3, "average_score": 50},
	}
	var calls atomic.Int32
	mux.HandleFunc("GET /my-stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats[calls.Add(1)-1])
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	client := NewClient(server.URL)

	scores, err := client.ListMyQuizScores(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Equal(t, "1", scores[0].QuizID)
	require.Equal(t, 2, scores[0].CorrectAnswers)
	require.False(t, scores[0].CreatedAt.IsZero())

	camel, err := client.MyStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.UserStats{QuizzesTaken: 4, QuestionsAnswered: 12, CorrectAnswers: 9, AverageScore: 75.5}, camel)

	snake, err := client.MyStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.UserStats{QuizzesTaken: 2, QuestionsAnswered: 6, CorrectAnswers: 3, AverageScore: 50}, snake)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type failingTokenSource struct {
	err error
}

func (s failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, s.err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
