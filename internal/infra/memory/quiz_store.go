package memory

import (
	"context"
	"sort"
	"sync"

	"daily-quiz-service/internal/domain"
)

// QuizStore is an in-memory app.QuizStore. It also implements
// app.UsageIndex by scanning the instances it holds.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.QuizInstance
	byDay   map[learnerDay]string
}

type learnerDay struct {
	learnerID string
	day       domain.Day
}

func NewQuizStore() *QuizStore {
	return &QuizStore{
		quizzes: make(map[string]domain.QuizInstance),
		byDay:   make(map[learnerDay]string),
	}
}

func (s *QuizStore) Create(_ context.Context, quiz domain.QuizInstance) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := learnerDay{quiz.LearnerID, quiz.AssignedOn}
	if _, ok := s.byDay[key]; ok {
		return domain.ErrDuplicateQuiz
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	s.byDay[key] = quiz.ID
	return nil
}

func (s *QuizStore) Get(_ context.Context, quizID string) (domain.QuizInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizInstance{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) FindByLearnerDay(_ context.Context, learnerID string, day domain.Day) (domain.QuizInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDay[learnerDay{learnerID, day}]
	if !ok {
		return domain.QuizInstance{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(s.quizzes[id]), nil
}

func (s *QuizStore) ListByLearner(_ context.Context, learnerID string) ([]domain.QuizInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizInstance
	for _, quiz := range s.quizzes {
		if quiz.LearnerID == learnerID {
			out = append(out, cloneQuiz(quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedOn < out[j].AssignedOn })
	return out, nil
}

func (s *QuizStore) Update(_ context.Context, quiz domain.QuizInstance) (domain.QuizInstance, error) {
	if err := quiz.Validate(); err != nil {
		return domain.QuizInstance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.QuizInstance{}, domain.ErrQuizNotFound
	}
	if stored.Version != quiz.Version {
		return domain.QuizInstance{}, domain.ErrVersionConflict
	}
	quiz.Version++
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) Delete(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	delete(s.byDay, learnerDay{quiz.LearnerID, quiz.AssignedOn})
	return nil
}

func (s *QuizStore) DeleteByLearner(_ context.Context, learnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, quiz := range s.quizzes {
		if quiz.LearnerID == learnerID {
			delete(s.quizzes, id)
			delete(s.byDay, learnerDay{quiz.LearnerID, quiz.AssignedOn})
		}
	}
	return nil
}

// ListUsedQuestionIDs collects the questions of other learners' quizzes
// for the locality and day.
func (s *QuizStore) ListUsedQuestionIDs(_ context.Context, localityID string, day domain.Day, excludeLearnerID string) (map[string]struct{}, error) {
	used := make(map[string]struct{})
	if localityID == "" {
		return used, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, quiz := range s.quizzes {
		if quiz.AssignedOn != day || quiz.LocalityID != localityID || quiz.LearnerID == excludeLearnerID {
			continue
		}
		for _, slot := range quiz.Slots {
			used[slot.QuestionID] = struct{}{}
		}
	}
	return used, nil
}

// MarkUsed is a no-op: usage is derived from the stored instances.
func (s *QuizStore) MarkUsed(context.Context, string, domain.Day, string, []string) error {
	return nil
}

// Release is a no-op: deleting the instance already releases its questions.
func (s *QuizStore) Release(context.Context, string, domain.Day, string) error {
	return nil
}

func cloneQuiz(q domain.QuizInstance) domain.QuizInstance {
	out := q
	out.Slots = make([]domain.QuestionSlot, len(q.Slots))
	for i, slot := range q.Slots {
		out.Slots[i] = slot
		if slot.ChosenIndex != nil {
			v := *slot.ChosenIndex
			out.Slots[i].ChosenIndex = &v
		}
		if slot.AnsweredAt != nil {
			v := *slot.AnsweredAt
			out.Slots[i].AnsweredAt = &v
		}
	}
	if q.CompletedAt != nil {
		v := *q.CompletedAt
		out.CompletedAt = &v
	}
	return out
}
