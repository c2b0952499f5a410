package redis

import (
	"context"
	"fmt"
	"strconv"

	"daily-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const settingsKey = "settings:rewards"

// SettingsStore keeps the live reward settings in a Redis hash so every
// instance grades with the same rates:
//
//	HSET settings:rewards per_correct 10 completion_bonus 50
//
// Missing fields fall back to the configured defaults.
type SettingsStore struct {
	client   *redis.Client
	defaults domain.RewardSettings
}

func NewSettingsStore(client *redis.Client, defaults domain.RewardSettings) *SettingsStore {
	return &SettingsStore{client: client, defaults: defaults}
}

func (s *SettingsStore) RewardSettings(ctx context.Context) (domain.RewardSettings, error) {
	fields, err := s.client.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		if isMiss(err) {
			return s.defaults, nil
		}
		return domain.RewardSettings{}, fmt.Errorf("read reward settings: %w", err)
	}
	settings := s.defaults
	if raw, ok := fields["per_correct"]; ok {
		if settings.PerCorrect, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.RewardSettings{}, fmt.Errorf("parse per_correct: %w", err)
		}
	}
	if raw, ok := fields["completion_bonus"]; ok {
		if settings.CompletionBonus, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.RewardSettings{}, fmt.Errorf("parse completion_bonus: %w", err)
		}
	}
	return settings, nil
}

func (s *SettingsStore) SetRewardSettings(ctx context.Context, settings domain.RewardSettings) error {
	return s.client.HSet(ctx, settingsKey,
		"per_correct", settings.PerCorrect,
		"completion_bonus", settings.CompletionBonus,
	).Err()
}
