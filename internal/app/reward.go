package app

import "daily-quiz-service/internal/domain"

// CalculateReward converts a finished quiz's score into coins.
func CalculateReward(score int, settings domain.RewardSettings) int64 {
	return int64(score)*settings.PerCorrect + settings.CompletionBonus
}
