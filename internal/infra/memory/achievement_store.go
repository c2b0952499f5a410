package memory

import (
	"context"
	"sync"

	"daily-quiz-service/internal/domain"
)

// AchievementStore keeps definitions and grants in memory and credits
// grant rewards through the learner directory.
type AchievementStore struct {
	learners *LearnerDirectory

	mu          sync.Mutex
	definitions []domain.AchievementDefinition
	grants      map[string]map[string]domain.AchievementGrant
}

func NewAchievementStore(learners *LearnerDirectory, definitions ...domain.AchievementDefinition) *AchievementStore {
	return &AchievementStore{
		learners:    learners,
		definitions: append([]domain.AchievementDefinition(nil), definitions...),
		grants:      make(map[string]map[string]domain.AchievementGrant),
	}
}

func (s *AchievementStore) ListActive(context.Context) ([]domain.AchievementDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AchievementDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		if def.Active {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *AchievementStore) GrantedIDs(_ context.Context, learnerID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.grants[learnerID]))
	for id := range s.grants[learnerID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Grants returns the learner's grants.
func (s *AchievementStore) Grants(learnerID string) []domain.AchievementGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AchievementGrant, 0, len(s.grants[learnerID]))
	for _, g := range s.grants[learnerID] {
		out = append(out, g)
	}
	return out
}

func (s *AchievementStore) Grant(ctx context.Context, grant domain.AchievementGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.grants[grant.LearnerID]
	if !ok {
		byID = make(map[string]domain.AchievementGrant)
		s.grants[grant.LearnerID] = byID
	}
	if _, exists := byID[grant.AchievementID]; exists {
		return false, nil
	}
	if grant.RewardCoins != 0 {
		if err := s.learners.AddCoins(ctx, grant.LearnerID, grant.RewardCoins); err != nil {
			return false, err
		}
	}
	byID[grant.AchievementID] = grant
	return true, nil
}
