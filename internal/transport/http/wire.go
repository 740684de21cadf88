package http

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"quizki/internal/domain"
)

// Every backend payload passes through this file. Field-name variants are
// resolved here so the rest of the module only sees domain types.

// flexID accepts identifiers encoded as JSON numbers or strings.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

// outID re-emits numeric identifiers as JSON numbers.
type outID string

func (id outID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// questionRef is either a bare identifier or an embedded question object.
type questionRef struct {
	ID flexID
}

func (r *questionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID flexID `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.ID = obj.ID
		return nil
	}
	return r.ID.UnmarshalJSON(data)
}

type choiceWire struct {
	ID             flexID `json:"id"`
	ChoiceText     string `json:"choice_text"`
	Text           string `json:"text"`
	IsCorrect      *bool  `json:"is_correct"`
	IsCorrectCamel *bool  `json:"isCorrect"`
}

type questionWire struct {
	ID           flexID       `json:"id"`
	QuestionText string       `json:"question_text"`
	Text         string       `json:"text"`
	Category     string       `json:"category"`
	Difficulty   string       `json:"difficulty"`
	Score        *float64     `json:"score"`
	Points       *float64     `json:"points"`
	Choices      []choiceWire `json:"choices"`
	Options      []choiceWire `json:"options"`
}

type quizWire struct {
	ID             flexID        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Category       string        `json:"category"`
	Difficulty     string        `json:"difficulty"`
	TimeLimit      *int          `json:"time_limit"`
	TimeLimitCamel *int          `json:"timeLimit"`
	Questions      []questionRef `json:"questions"`
	QuestionIDs    []flexID      `json:"question_ids"`
}

type answerWire struct {
	ID         flexID   `json:"id"`
	UserID     flexID   `json:"user_id"`
	QuestionID flexID   `json:"question_id"`
	ChoiceID   flexID   `json:"choice_id"`
	Score      float64  `json:"score"`
	IsCorrect  *bool    `json:"is_correct"`
	CreatedAt  wireTime `json:"created_at"`
}

type answerRequest struct {
	QuestionID outID `json:"question_id"`
	ChoiceID   outID `json:"choice_id"`
}

type quizScoreWire struct {
	ID             flexID   `json:"id"`
	QuizID         flexID   `json:"quiz_id"`
	UserID         flexID   `json:"user_id"`
	Score          float64  `json:"score"`
	TotalQuestions int      `json:"total_questions"`
	CorrectAnswers int      `json:"correct_answers"`
	CreatedAt      wireTime `json:"created_at"`
}

type quizScoreRequest struct {
	QuizID         outID   `json:"quiz_id"`
	Score          float64 `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
}

type userWire struct {
	ID         flexID   `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	TotalScore float64  `json:"total_score"`
	CreatedAt  wireTime `json:"created_at"`
}

// statsWire accepts both camelCase and snake_case field names.
type statsWire struct {
	QuizzesTaken           *int     `json:"quizzesTaken"`
	QuizzesTakenSnake      *int     `json:"quizzes_taken"`
	QuestionsAnswered      *int     `json:"questionsAnswered"`
	QuestionsAnsweredSnake *int     `json:"questions_answered"`
	CorrectAnswers         *int     `json:"correctAnswers"`
	CorrectAnswersSnake    *int     `json:"correct_answers"`
	AverageScore           *float64 `json:"averageScore"`
	AverageScoreSnake      *float64 `json:"average_score"`
}

func (w statsWire) toDomain() domain.UserStats {
	return domain.UserStats{
		QuizzesTaken:      firstOf(w.QuizzesTaken, w.QuizzesTakenSnake),
		QuestionsAnswered: firstOf(w.QuestionsAnswered, w.QuestionsAnsweredSnake),
		CorrectAnswers:    firstOf(w.CorrectAnswers, w.CorrectAnswersSnake),
		AverageScore:      firstOf(w.AverageScore, w.AverageScoreSnake),
	}
}

func firstOf[T int | float64](values ...*T) T {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	var zero T
	return zero
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type tokenWire struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	TokenType   string `json:"token_type"`
}

// errorWire covers both {"detail": "..."} and {"error": "..."} bodies. FastAPI
// validation errors carry a list under detail, which is kept raw.
type errorWire struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

func (e errorWire) message() string {
	if strings.TrimSpace(e.Error) != "" {
		return e.Error
	}
	if len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return string(e.Detail)
}

// wireTime tolerates timestamps with or without a zone offset.
type wireTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || raw == "" {
		*t = wireTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	*t = wireTime{}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (w choiceWire) toDomain() domain.Choice {
	correct := w.IsCorrect
	if correct == nil {
		correct = w.IsCorrectCamel
	}
	return domain.Choice{
		ID:        string(w.ID),
		Text:      firstNonEmpty(w.ChoiceText, w.Text),
		IsCorrect: correct,
	}
}

func (w questionWire) toDomain() domain.Question {
	wires := w.Choices
	if len(wires) == 0 {
		wires = w.Options
	}
	choices := make([]domain.Choice, 0, len(wires))
	for _, c := range wires {
		choices = append(choices, c.toDomain())
	}

	score := 1.0
	switch {
	case w.Score != nil:
		score = *w.Score
	case w.Points != nil:
		score = *w.Points
	}

	category := w.Category
	if strings.TrimSpace(category) == "" {
		category = domain.DefaultCategory
	}

	return domain.Question{
		ID:         string(w.ID),
		Text:       firstNonEmpty(w.QuestionText, w.Text),
		Category:   category,
		Difficulty: domain.ParseDifficulty(w.Difficulty),
		Score:      score,
		Choices:    choices,
	}
}

func (w quizWire) toDomain() domain.Quiz {
	limit := 0
	switch {
	case w.TimeLimit != nil:
		limit = *w.TimeLimit
	case w.TimeLimitCamel != nil:
		limit = *w.TimeLimitCamel
	}

	ids := make([]string, 0, len(w.Questions)+len(w.QuestionIDs))
	for _, ref := range w.Questions {
		ids = append(ids, string(ref.ID))
	}
	if len(ids) == 0 {
		for _, id := range w.QuestionIDs {
			ids = append(ids, string(id))
		}
	}

	return domain.Quiz{
		ID:               string(w.ID),
		Title:            w.Title,
		Description:      w.Description,
		Category:         w.Category,
		Difficulty:       domain.ParseDifficulty(w.Difficulty),
		TimeLimitMinutes: limit,
		QuestionIDs:      ids,
	}
}

func (w answerWire) toDomain() domain.Answer {
	return domain.Answer{
		ID:         string(w.ID),
		UserID:     string(w.UserID),
		QuestionID: string(w.QuestionID),
		ChoiceID:   string(w.ChoiceID),
		Score:      w.Score,
		IsCorrect:  w.IsCorrect,
		CreatedAt:  time.Time(w.CreatedAt),
	}
}

func (w quizScoreWire) toDomain() domain.QuizScore {
	return domain.QuizScore{
		ID:             string(w.ID),
		QuizID:         string(w.QuizID),
		UserID:         string(w.UserID),
		Score:          w.Score,
		TotalQuestions: w.TotalQuestions,
		CorrectAnswers: w.CorrectAnswers,
		CreatedAt:      time.Time(w.CreatedAt),
	}
}

func (w userWire) toDomain() domain.User {
	return domain.User{
		ID:         string(w.ID),
		Username:   w.Username,
		Email:      w.Email,
		Role:       w.Role,
		TotalScore: w.TotalScore,
		CreatedAt:  time.Time(w.CreatedAt),
	}
}
