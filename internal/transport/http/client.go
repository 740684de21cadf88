package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"quizki/internal/domain"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Is lets callers match backend statuses against the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Client talks to the QuizKi REST backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         oauth2.TokenSource
	onUnauthorized func()
	logger         *slog.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource attaches a bearer token to every authenticated request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHandler registers fn to run whenever an authenticated request is rejected.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListQuestions(ctx context.Context, skip, limit int) ([]domain.Question, error) {
	var payload []questionWire
	if err := c.doJSON(ctx, http.MethodGet, "/questions?"+pageQuery(skip, limit), nil, &payload); err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(payload))
	for _, item := range payload {
		questions = append(questions, item.toDomain())
	}
	return questions, nil
}

func (c *Client) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var payload questionWire
	if err := c.doJSON(ctx, http.MethodGet, "/questions/"+url.PathEscape(questionID), nil, &payload); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
		}
		return domain.Question{}, err
	}
	return payload.toDomain(), nil
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var payload []quizWire
	if err := c.doJSON(ctx, http.MethodGet, "/quizzes", nil, &payload); err != nil {
		return nil, err
	}
	quizzes := make([]domain.Quiz, 0, len(payload))
	for _, item := range payload {
		quizzes = append(quizzes, item.toDomain())
	}
	return quizzes, nil
}

func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var payload quizWire
	if err := c.doJSON(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil, &payload); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
		}
		return domain.Quiz{}, err
	}
	return payload.toDomain(), nil
}

func (c *Client) SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) (domain.Answer, error) {
	request := answerRequest{
		QuestionID: outID(submission.QuestionID),
		ChoiceID:   outID(submission.ChoiceID),
	}
	var payload answerWire
	if err := c.doJSON(ctx, http.MethodPost, "/answers", request, &payload); err != nil {
		return domain.Answer{}, err
	}
	return payload.toDomain(), nil
}

func (c *Client) DeleteAnswer(ctx context.Context, questionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/my-answers/"+url.PathEscape(questionID), nil, nil)
}

func (c *Client) ListMyAnswers(ctx context.Context) ([]domain.Answer, error) {
	var payload []answerWire
	if err := c.doJSON(ctx, http.MethodGet, "/my-answers", nil, &payload); err != nil {
		return nil, err
	}
	answers := make([]domain.Answer, 0, len(payload))
	for _, item := range payload {
		answers = append(answers, item.toDomain())
	}
	return answers, nil
}

func (c *Client) SubmitQuizScore(ctx context.Context, score domain.QuizScore) (domain.QuizScore, error) {
	request := quizScoreRequest{
		QuizID:         outID(score.QuizID),
		Score:          score.Score,
		TotalQuestions: score.TotalQuestions,
		CorrectAnswers: score.CorrectAnswers,
	}
	var payload quizScoreWire
	if err := c.doJSON(ctx, http.MethodPost, "/quiz-scores", request, &payload); err != nil {
		return domain.QuizScore{}, err
	}
	return payload.toDomain(), nil
}

// ListMyQuizScores returns the caller's recorded quiz scores.
func (c *Client) ListMyQuizScores(ctx context.Context) ([]domain.QuizScore, error) {
	var payload []quizScoreWire
	if err := c.doJSON(ctx, http.MethodGet, "/my-quiz-scores", nil, &payload); err != nil {
		return nil, err
	}
	scores := make([]domain.QuizScore, 0, len(payload))
	for _, item := range payload {
		scores = append(scores, item.toDomain())
	}
	return scores, nil
}

// MyStats fetches the caller's summary stats. Not every backend serves it.
func (c *Client) MyStats(ctx context.Context) (domain.UserStats, error) {
	var payload statsWire
	if err := c.doJSON(ctx, http.MethodGet, "/my-stats", nil, &payload); err != nil {
		return domain.UserStats{}, err
	}
	return payload.toDomain(), nil
}

func (c *Client) DeleteQuizScore(ctx context.Context, quizID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/my-quiz-score/"+url.PathEscape(quizID), nil, nil)
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var payload userWire
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, &payload); err != nil {
		return domain.User{}, err
	}
	return payload.toDomain(), nil
}

// ListUsers returns the backend's user ranking. Non-admin callers only receive
// username and total score.
func (c *Client) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	var payload []userWire
	if err := c.doJSON(ctx, http.MethodGet, "/users?"+pageQuery(skip, limit), nil, &payload); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(payload))
	for _, item := range payload {
		users = append(users, item.toDomain())
	}
	return users, nil
}

// Login exchanges credentials for an access token. A rejected login never
// triggers the unauthorized handler.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	request := loginRequest{Username: creds.Username, Password: creds.Password}
	var payload tokenWire
	if err := c.do(ctx, http.MethodPost, "/login", request, &payload, false); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return "", fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, apiErr.Message)
		}
		return "", err
	}
	token := firstNonEmpty(payload.AccessToken, payload.Token)
	if token == "" {
		return "", errors.New("login response carried no access token")
	}
	return token, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	request := registerRequest{
		Username: reg.Username,
		Email:    reg.Email,
		Password: reg.Password,
		Role:     reg.Role,
	}
	var payload userWire
	if err := c.do(ctx, http.MethodPost, "/register", request, &payload, false); err != nil {
		return domain.User{}, err
	}
	return payload.toDomain(), nil
}

// Health probes the backend's health-check endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health-check", nil, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	return c.do(ctx, method, path, requestBody, responseBody, true)
}

func (c *Client) do(ctx context.Context, method, path string, requestBody any, responseBody any, authenticated bool) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				c.unauthorized()
			}
			return err
		}
		token.SetAuthHeader(request)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorWire
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.message()
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		if authenticated && response.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("backend rejected credentials", "method", method, "path", path)
			c.unauthorized()
		}
		return &apiErr
	}

	if responseBody == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

func (c *Client) unauthorized() {
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func pageQuery(skip, limit int) string {
	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit <= 0 {
		limit = 100
	}
	query.Set("limit", strconv.Itoa(limit))
	return query.Encode()
}
