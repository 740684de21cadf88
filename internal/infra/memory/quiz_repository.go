package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quizki/internal/app"
	"quizki/internal/domain"
)

// QuizRepository caches quizzes and questions with a TTL in front of a slower
// repository (usually the REST catalog), so repeated attempts skip the round trips.
type QuizRepository struct {
	next  app.QuizRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu        sync.RWMutex
	quizzes   map[string]cachedQuiz
	questions map[string]cachedQuestion
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

var _ app.QuizRepository = (*QuizRepository)(nil)

func NewQuizRepository(next app.QuizRepository, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		next:      next,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:   make(map[string]cachedQuiz),
		questions: make(map[string]cachedQuestion),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cachedQuiz(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cachedQuiz(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.next.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.quizzes[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := r.cachedQuestion(questionID); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do("question:"+questionID, func() (interface{}, error) {
		if q, ok := r.cachedQuestion(questionID); ok {
			return q, nil
		}

		q, err := r.next.GetQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		r.questions[questionID] = cachedQuestion{
			question:  q,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops every cached entry.
func (r *QuizRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes = make(map[string]cachedQuiz)
	r.questions = make(map[string]cachedQuestion)
}

func (r *QuizRepository) cachedQuiz(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.quizzes[quizID]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.Quiz{}, false
}

func (r *QuizRepository) cachedQuestion(questionID string) (domain.Question, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.questions[questionID]; ok && entry.expiresAt.After(now) {
		return entry.question, true
	}
	return domain.Question{}, false
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizRepository serves fixed quizzes and questions (useful for tests/demos).
type StaticQuizRepository struct {
	quizzes   map[string]domain.Quiz
	questions map[string]domain.Question
}

func NewStaticQuizRepository(quizzes []domain.Quiz, questions []domain.Question) *StaticQuizRepository {
	r := &StaticQuizRepository{
		quizzes:   make(map[string]domain.Quiz, len(quizzes)),
		questions: make(map[string]domain.Question, len(questions)),
	}
	for _, quiz := range quizzes {
		r.quizzes[quiz.ID] = quiz
	}
	for _, q := range questions {
		r.questions[q.ID] = q
	}
	return r
}

func (r *StaticQuizRepository) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (r *StaticQuizRepository) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := r.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
