package memory

import (
	"context"
	"sort"
	"sync"

	"daily-quiz-service/internal/domain"
)

// ResultStore is an append-only in-memory app.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.TestResult // by quiz ID
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.TestResult)}
}

func (s *ResultStore) Save(_ context.Context, result domain.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.QuizID]; ok {
		return nil
	}
	result.Answers = append([]domain.GradedAnswer(nil), result.Answers...)
	s.results[result.QuizID] = result
	return nil
}

func (s *ResultStore) ListByLearner(_ context.Context, learnerID string) ([]domain.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TestResult
	for _, r := range s.results {
		if r.LearnerID == learnerID {
			r.Answers = append([]domain.GradedAnswer(nil), r.Answers...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ResultStore) CountPerfect(_ context.Context, learnerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.LearnerID == learnerID && r.Perfect() {
			n++
		}
	}
	return n, nil
}
