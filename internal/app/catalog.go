package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"quizki/internal/domain"
)

// CatalogSource is the backend surface the catalog reads quizzes and questions from.
type CatalogSource interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuestions(ctx context.Context, skip, limit int) ([]domain.Question, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

type CatalogMode string

const (
	// CatalogRemote serves the backend's own quizzes.
	CatalogRemote CatalogMode = "remote"
	// CatalogDerived groups the question bank by category, one quiz per category.
	CatalogDerived CatalogMode = "derived"
)

const questionPageSize = 100

// Catalog lists quizzes and resolves them for sessions. It satisfies QuizRepository.
type Catalog struct {
	source CatalogSource
	mode   CatalogMode
}

func NewCatalog(source CatalogSource, mode CatalogMode) *Catalog {
	if mode != CatalogDerived {
		mode = CatalogRemote
	}
	return &Catalog{source: source, mode: mode}
}

func (c *Catalog) Mode() CatalogMode {
	return c.mode
}

func (c *Catalog) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if c.mode == CatalogRemote {
		return c.source.ListQuizzes(ctx)
	}
	questions, err := c.AllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return DeriveQuizzes(questions), nil
}

func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if c.mode == CatalogRemote {
		return c.source.GetQuiz(ctx, quizID)
	}
	quizzes, err := c.ListQuizzes(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, quiz := range quizzes {
		if quiz.ID == quizID {
			return quiz, nil
		}
	}
	return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
}

func (c *Catalog) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return c.source.GetQuestion(ctx, questionID)
}

// AllQuestions pages through the whole question bank.
func (c *Catalog) AllQuestions(ctx context.Context) ([]domain.Question, error) {
	var all []domain.Question
	for skip := 0; ; skip += questionPageSize {
		page, err := c.source.ListQuestions(ctx, skip, questionPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < questionPageSize {
			return all, nil
		}
	}
}

// DeriveQuizzes builds one quiz per question category, in order of first
// appearance. The time limit is a minute and a half per question with a five
// minute floor; the difficulty is the average of the questions' difficulties.
func DeriveQuizzes(questions []domain.Question) []domain.Quiz {
	var order []string
	groups := make(map[string][]domain.Question)
	for _, q := range questions {
		category := strings.TrimSpace(q.Category)
		if category == "" {
			category = domain.DefaultCategory
		}
		if _, ok := groups[category]; !ok {
			order = append(order, category)
		}
		groups[category] = append(groups[category], q)
	}

	quizzes := make([]domain.Quiz, 0, len(order))
	for i, category := range order {
		group := groups[category]
		ids := make([]string, 0, len(group))
		levels := 0
		for _, q := range group {
			ids = append(ids, q.ID)
			levels += q.Difficulty.Level()
		}
		quizzes = append(quizzes, domain.Quiz{
			ID:               "quiz-" + strconv.Itoa(i+1),
			Title:            category + " Quiz",
			Description:      "Test your knowledge on " + category + " topics",
			Category:         category,
			Difficulty:       averageDifficulty(levels, len(group)),
			TimeLimitMinutes: max(5, int(math.Ceil(float64(len(group))*1.5))),
			QuestionIDs:      ids,
		})
	}
	return quizzes
}

func averageDifficulty(levels, n int) domain.Difficulty {
	if n == 0 {
		return domain.DifficultyMedium
	}
	avg := float64(levels) / float64(n)
	switch {
	case avg <= 1.5:
		return domain.DifficultyEasy
	case avg <= 2.5:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyHard
	}
}

// QuestionFilter narrows a question list. Empty fields match everything.
type QuestionFilter struct {
	Search     string
	Category   string
	Difficulty string
}

func FilterQuestions(questions []domain.Question, f QuestionFilter) []domain.Question {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := strings.TrimSpace(f.Category)
	var difficulty domain.Difficulty
	if strings.TrimSpace(f.Difficulty) != "" {
		difficulty = domain.ParseDifficulty(f.Difficulty)
	}

	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if search != "" && !strings.Contains(strings.ToLower(q.Text), search) {
			continue
		}
		if category != "" && !strings.EqualFold(q.Category, category) {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}
