package app

import (
	"sort"
	"sync"

	"quizki/internal/domain"
)

// Tracker holds the question→choice selections of a session and its navigation cursor.
type Tracker struct {
	mu         sync.RWMutex
	order      []string
	index      int
	selections map[string]string
}

func NewTracker(questionIDs []string) *Tracker {
	order := make([]string, len(questionIDs))
	copy(order, questionIDs)
	return &Tracker{
		order:      order,
		selections: make(map[string]string),
	}
}

// Select records choiceID for questionID, replacing any earlier selection.
// The choice is not validated against the question's choices.
func (t *Tracker) Select(questionID, choiceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selections[questionID] = choiceID
}

func (t *Tracker) Selection(questionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	choiceID, ok := t.selections[questionID]
	return choiceID, ok
}

func (t *Tracker) Index() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Current returns the question under the cursor.
func (t *Tracker) Current() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.order) == 0 {
		return "", false
	}
	return t.order[t.index], true
}

// GoTo moves the cursor; indexes outside the question range are ignored.
func (t *Tracker) GoTo(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.order) {
		return
	}
	t.index = index
}

func (t *Tracker) Next() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index+1 < len(t.order) {
		t.index++
	}
}

func (t *Tracker) Previous() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index > 0 {
		t.index--
	}
}

func (t *Tracker) AnsweredCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.selections)
}

// Pairs lists selections in question order. Selections for questions outside
// the session come last, ordered by question ID.
func (t *Tracker) Pairs() []domain.Pair {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pairs := make([]domain.Pair, 0, len(t.selections))
	known := make(map[string]struct{}, len(t.order))
	for _, id := range t.order {
		known[id] = struct{}{}
		if choiceID, ok := t.selections[id]; ok {
			pairs = append(pairs, domain.Pair{QuestionID: id, ChoiceID: choiceID})
		}
	}

	var extra []domain.Pair
	for id, choiceID := range t.selections {
		if _, ok := known[id]; !ok {
			extra = append(extra, domain.Pair{QuestionID: id, ChoiceID: choiceID})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].QuestionID < extra[j].QuestionID })
	return append(pairs, extra...)
}
