package domain

import "time"

// DefaultCategory is assigned to questions the backend leaves uncategorised.
const DefaultCategory = "General Knowledge"

// Difficulty is the canonical difficulty label of a quiz or question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Level maps a difficulty onto the 1..3 scale used when averaging a group of questions.
func (d Difficulty) Level() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// ParseDifficulty accepts both the short labels and the beginner/intermediate/advanced
// vocabulary. Unknown values fall back to medium.
func ParseDifficulty(raw string) Difficulty {
	switch raw {
	case "easy", "Easy", "beginner", "Beginner":
		return DifficultyEasy
	case "hard", "Hard", "advanced", "Advanced":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Label is the human-facing name of the difficulty.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Beginner"
	case DifficultyHard:
		return "Advanced"
	default:
		return "Intermediate"
	}
}

type Quiz struct {
	ID               string
	Title            string
	Description      string
	Category         string
	Difficulty       Difficulty
	TimeLimitMinutes int
	QuestionIDs      []string
}

type Choice struct {
	ID   string
	Text string
	// IsCorrect is nil when the backend withholds correctness.
	IsCorrect *bool
}

type Question struct {
	ID         string
	Text       string
	Category   string
	Difficulty Difficulty
	Score      float64
	Choices    []Choice
}

// CorrectChoice returns the choice flagged correct, if correctness is visible.
func (q Question) CorrectChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if c.IsCorrect != nil && *c.IsCorrect {
			return c, true
		}
	}
	return Choice{}, false
}

// ChoiceText resolves a choice identifier to its text.
func (q Question) ChoiceText(choiceID string) (string, bool) {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return c.Text, true
		}
	}
	return "", false
}

// AnswerKey is the known correct choice of a question.
type AnswerKey struct {
	ChoiceID string
	Text     string
}

// Answer is a backend submission record.
type Answer struct {
	ID         string
	UserID     string
	QuestionID string
	ChoiceID   string
	Score      float64
	IsCorrect  *bool
	CreatedAt  time.Time
}

// AnswerSubmission is the payload of a single answer submit.
type AnswerSubmission struct {
	QuestionID string
	ChoiceID   string
}

// QuizScore is the aggregate record of one completed attempt.
type QuizScore struct {
	ID             string
	QuizID         string
	UserID         string
	Score          float64
	TotalQuestions int
	CorrectAnswers int
	CreatedAt      time.Time
}

type User struct {
	ID         string
	Username   string
	Email      string
	Role       string
	TotalScore float64
	CreatedAt  time.Time
}

type Credentials struct {
	Username string
	Password string
}

type Registration struct {
	Username string
	Email    string
	Password string
	Role     string
}

type LeaderboardEntry struct {
	Rank       int
	Username   string
	TotalScore float64
}

type Leaderboard struct {
	Entries []LeaderboardEntry
	// CurrentRank is 0 when the current user is not on the board.
	CurrentRank int
}

// UserStats is the backend's optional per-user summary.
type UserStats struct {
	QuizzesTaken      int
	QuestionsAnswered int
	CorrectAnswers    int
	AverageScore      float64
}

// Profile summarizes the current user's quiz history.
type Profile struct {
	User   User
	Scores []QuizScore
	// QuizzesTaken counts score records.
	QuizzesTaken int
	// AverageScore is the rounded mean percentage of correct answers.
	AverageScore int
	Rank         string
	// Stats is nil when the backend offers no stats.
	Stats *UserStats
}

// Pair is one tracked question→choice selection.
type Pair struct {
	QuestionID string
	ChoiceID   string
}

// SessionState is the position of a session in the submission state machine.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateSubmitting
	StateReconciling
	StateDone
	// StateEmpty is terminal: the quiz had no resolvable questions.
	StateEmpty
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

const (
	NotAnswered   = "Not answered"
	UnknownAnswer = "Unknown"
)

type QuestionResult struct {
	ID            string
	Text          string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
}

// Report is the final result of a quiz attempt.
type Report struct {
	QuizID    string
	QuizTitle string
	// Score is the number of backend-confirmed correct answers.
	Score int
	// TotalQuestions is the number of questions the user answered.
	TotalQuestions int
	QuestionCount  int
	TotalScore     float64
	PassingScore   int
	Passed         bool
	TimeSpent      string
	DateTaken      time.Time
	Questions      []QuestionResult
	// FailedAnswers counts individual submits the backend rejected.
	FailedAnswers int
	// ScoreErr is set when the aggregate score could not be recorded.
	ScoreErr error
}
