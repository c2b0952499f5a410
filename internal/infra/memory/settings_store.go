package memory

import (
	"context"
	"sync"

	"daily-quiz-service/internal/domain"
)

// SettingsStore holds the live reward settings in process.
type SettingsStore struct {
	mu       sync.RWMutex
	settings domain.RewardSettings
}

func NewSettingsStore(initial domain.RewardSettings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

func (s *SettingsStore) RewardSettings(context.Context) (domain.RewardSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *SettingsStore) SetRewardSettings(_ context.Context, settings domain.RewardSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}
