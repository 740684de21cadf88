// Package fakeapi is an in-process QuizKi backend for tests. It speaks the same
// JSON as the real service: numeric IDs, bearer tokens issued by /login and
// {"detail": ...} error bodies.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type Choice struct {
	ID      int
	Text    string
	Correct bool
}

type Question struct {
	ID         int
	Text       string
	Category   string
	Difficulty string
	Score      float64
	Choices    []Choice
}

type Quiz struct {
	ID          int
	Title       string
	Description string
	Category    string
	Difficulty  string
	TimeLimit   int
	QuestionIDs []int
}

// Answer is a stored answer record.
type Answer struct {
	ID         int
	Username   string
	QuestionID int
	ChoiceID   int
	Score      float64
	CreatedAt  time.Time
}

// QuizScore is a stored aggregate score.
type QuizScore struct {
	Username       string
	QuizID         int
	Score          float64
	TotalQuestions int
	CorrectAnswers int
}

type user struct {
	id       int
	username string
	email    string
	password string
	role     string
}

type Server struct {
	*httptest.Server

	// HideCorrectness strips is_correct from served choices.
	HideCorrectness bool
	// ServeStats enables GET /my-stats, which the reference backend lacks.
	ServeStats bool

	mu        sync.Mutex
	users     map[string]*user
	tokens    map[string]string
	questions map[int]Question
	order     []int
	quizzes   map[int]Quiz
	quizOrder []int
	answers   []Answer
	scores    []QuizScore
	nextID    int
	failures  map[string]int
}

// New starts an empty backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     make(map[string]*user),
		tokens:    make(map[string]string),
		questions: make(map[int]Question),
		quizzes:   make(map[int]Quiz),
		failures:  make(map[string]int),
		nextID:    1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// Sample starts a backend with user alice/secret and quiz 1 holding three
// questions whose correct choices are the first of each.
func Sample(t testing.TB) *Server {
	s := New(t)
	s.AddUser("alice", "secret")
	s.AddQuestion(Question{ID: 101, Text: "2 + 2 = ?", Category: "Math", Difficulty: "easy", Score: 1,
		Choices: []Choice{{ID: 1001, Text: "4", Correct: true}, {ID: 1002, Text: "5"}}})
	s.AddQuestion(Question{ID: 102, Text: "Capital of France?", Category: "Geography", Difficulty: "medium", Score: 1,
		Choices: []Choice{{ID: 1003, Text: "Paris", Correct: true}, {ID: 1004, Text: "Lyon"}}})
	s.AddQuestion(Question{ID: 103, Text: "H2O is?", Category: "Science", Difficulty: "hard", Score: 2,
		Choices: []Choice{{ID: 1005, Text: "Water", Correct: true}, {ID: 1006, Text: "Salt"}}})
	s.AddQuiz(Quiz{ID: 1, Title: "General Knowledge", Description: "A bit of everything",
		Category: "General", Difficulty: "medium", TimeLimit: 5, QuestionIDs: []int{101, 102, 103}})
	return s
}

func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &user{id: s.id(), username: username, email: username + "@example.com", password: password, role: "user"}
}

func (s *Server) AddQuestion(q Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		s.order = append(s.order, q.ID)
	}
	s.questions[q.ID] = q
}

func (s *Server) AddQuiz(q Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[q.ID]; !ok {
		s.quizOrder = append(s.quizOrder, q.ID)
	}
	s.quizzes[q.ID] = q
}

// Login returns a valid token for username without going through /login.
func (s *Server) Login(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "token-" + username + "-" + strconv.Itoa(s.id())
	s.tokens[token] = username
	return token
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// FailNext makes the next n requests matching "METHOD /path" answer 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = n
}

func (s *Server) Answers(username string) []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Answer
	for _, a := range s.answers {
		if a.Username == username {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) QuizScores(username string) []QuizScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QuizScore
	for _, q := range s.scores {
		if q.Username == username {
			out = append(out, q)
		}
	}
	return out
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health-check", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /me", s.authed(s.handleMe))
	mux.HandleFunc("GET /users", s.authed(s.handleUsers))
	mux.HandleFunc("GET /questions", s.authed(s.handleQuestions))
	mux.HandleFunc("GET /questions/{id}", s.authed(s.handleQuestion))
	mux.HandleFunc("GET /quizzes", s.authed(s.handleQuizzes))
	mux.HandleFunc("GET /quizzes/{id}", s.authed(s.handleQuiz))
	mux.HandleFunc("POST /answers", s.authed(s.handleSubmitAnswer))
	mux.HandleFunc("GET /my-answers", s.authed(s.handleMyAnswers))
	mux.HandleFunc("DELETE /my-answers/{id}", s.authed(s.handleDeleteAnswer))
	mux.HandleFunc("POST /quiz-scores", s.authed(s.handleSubmitScore))
	mux.HandleFunc("DELETE /my-quiz-score/{id}", s.authed(s.handleDeleteScore))
	mux.HandleFunc("GET /my-quiz-scores", s.authed(s.handleMyScores))
	mux.HandleFunc("GET /my-stats", s.authed(s.handleMyStats))
	return s.injectFailures(mux)
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		n := s.failures[route]
		if n > 0 {
			s.failures[route] = n - 1
		}
		s.mu.Unlock()
		if n > 0 {
			writeDetail(w, http.StatusInternalServerError, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *user)

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		username, ok := s.tokens[token]
		u := s.users[username]
		s.mu.Unlock()
		if !ok || u == nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r, u)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.Login(u.username), "token_type": "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}
	u := &user{id: s.id(), username: req.Username, email: req.Email, password: req.Password, role: role}
	s.users[u.username] = u
	writeJSON(w, http.StatusOK, s.userJSON(u))
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, u *user) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userJSON(u))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ *user) {
	s.mu.Lock()
	list := make([]map[string]any, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, map[string]any{"username": u.username, "total_score": s.totalScore(u.username)})
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i]["total_score"].(float64) > list[j]["total_score"].(float64)
	})
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit < len(list) {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request, _ *user) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for i := skip; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, s.questionJSON(s.questions[s.order[i]]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request, _ *user) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Question not found")
		return
	}
	writeJSON(w, http.StatusOK, s.questionJSON(q))
}

func (s *Server) handleQuizzes(w http.ResponseWriter, _ *http.Request, _ *user) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, id := range s.quizOrder {
		out = append(out, quizJSON(s.quizzes[id]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request, _ *user) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, quizJSON(q))
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request, u *user) {
	var req struct {
		QuestionID int `json:"question_id"`
		ChoiceID   int `json:"choice_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[req.QuestionID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Question not found")
		return
	}
	var choice *Choice
	for i := range q.Choices {
		if q.Choices[i].ID == req.ChoiceID {
			choice = &q.Choices[i]
		}
	}
	if choice == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid choice for this question")
		return
	}
	for _, a := range s.answers {
		if a.Username == u.username && a.QuestionID == req.QuestionID {
			writeDetail(w, http.StatusBadRequest, "You have already answered this question")
			return
		}
	}
	score := 0.0
	if choice.Correct {
		score = q.Score
	}
	a := Answer{ID: s.id(), Username: u.username, QuestionID: q.ID, ChoiceID: choice.ID, Score: score, CreatedAt: time.Now().UTC()}
	s.answers = append(s.answers, a)
	writeJSON(w, http.StatusOK, answerJSON(a, u.id))
}

func (s *Server) handleMyAnswers(w http.ResponseWriter, _ *http.Request, u *user) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, a := range s.answers {
		if a.Username == u.username {
			out = append(out, answerJSON(a, u.id))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteAnswer(w http.ResponseWriter, r *http.Request, u *user) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.answers {
		if a.Username == u.username && a.QuestionID == id {
			s.answers = append(s.answers[:i], s.answers[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Answer deleted"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Answer not found")
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request, u *user) {
	var req struct {
		QuizID         int     `json:"quiz_id"`
		Score          float64 `json:"score"`
		TotalQuestions int     `json:"total_questions"`
		CorrectAnswers int     `json:"correct_answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	score := QuizScore{Username: u.username, QuizID: req.QuizID, Score: req.Score, TotalQuestions: req.TotalQuestions, CorrectAnswers: req.CorrectAnswers}
	s.scores = append(s.scores, score)
	writeJSON(w, http.StatusOK, scoreJSON(score, s.id(), u.id))
}

func (s *Server) handleMyScores(w http.ResponseWriter, _ *http.Request, u *user) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for i, score := range s.scores {
		if score.Username == u.username {
			out = append(out, scoreJSON(score, i+1, u.id))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyStats(w http.ResponseWriter, _ *http.Request, u *user) {
	if !s.ServeStats {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var taken, answered, correct int
	for _, score := range s.scores {
		if score.Username == u.username {
			taken++
		}
	}
	for _, a := range s.answers {
		if a.Username == u.username {
			answered++
			if a.Score > 0 {
				correct++
			}
		}
	}
	average := 0.0
	if answered > 0 {
		average = float64(correct) / float64(answered) * 100
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quizzesTaken": taken, "questionsAnswered": answered,
		"correctAnswers": correct, "averageScore": average,
	})
}

func scoreJSON(score QuizScore, id, userID int) map[string]any {
	return map[string]any{
		"id": id, "quiz_id": score.QuizID, "user_id": userID, "score": score.Score,
		"total_questions": score.TotalQuestions, "correct_answers": score.CorrectAnswers,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request, u *user) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.scores[:0]
	removed := false
	for _, score := range s.scores {
		if score.Username == u.username && score.QuizID == id {
			removed = true
			continue
		}
		kept = append(kept, score)
	}
	s.scores = kept
	if !removed {
		writeDetail(w, http.StatusNotFound, "Quiz score not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz score deleted"})
}

// id must be called with mu held.
func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

func (s *Server) totalScore(username string) float64 {
	total := 0.0
	for _, a := range s.answers {
		if a.Username == username {
			total += a.Score
		}
	}
	return total
}

func (s *Server) userJSON(u *user) map[string]any {
	return map[string]any{
		"id": u.id, "username": u.username, "email": u.email, "role": u.role,
		"total_score": s.totalScore(u.username), "created_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) questionJSON(q Question) map[string]any {
	choices := make([]map[string]any, 0, len(q.Choices))
	for _, c := range q.Choices {
		entry := map[string]any{"id": c.ID, "choice_text": c.Text}
		if !s.HideCorrectness {
			entry["is_correct"] = c.Correct
		}
		choices = append(choices, entry)
	}
	return map[string]any{
		"id": q.ID, "question_text": q.Text, "category": q.Category,
		"difficulty": q.Difficulty, "score": q.Score, "choices": choices,
	}
}

func quizJSON(q Quiz) map[string]any {
	return map[string]any{
		"id": q.ID, "title": q.Title, "description": q.Description, "category": q.Category,
		"difficulty": q.Difficulty, "time_limit": q.TimeLimit, "questions": q.QuestionIDs,
	}
}

func answerJSON(a Answer, userID int) map[string]any {
	return map[string]any{
		"id": a.ID, "user_id": userID, "question_id": a.QuestionID, "choice_id": a.ChoiceID,
		"score": a.Score, "created_at": a.CreatedAt.Format(time.RFC3339Nano),
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(fmt.Sprintf("fakeapi: encode response: %v", err))
	}
}
