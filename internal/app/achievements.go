package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// AchievementEvaluator grants first-time unlocks whose condition the
// learner's current statistics satisfy.
type AchievementEvaluator struct {
	learners     LearnerDirectory
	quizzes      QuizStore
	results      ResultStore
	achievements AchievementStore
}

func NewAchievementEvaluator(learners LearnerDirectory, quizzes QuizStore, results ResultStore, achievements AchievementStore) *AchievementEvaluator {
	return &AchievementEvaluator{
		learners:     learners,
		quizzes:      quizzes,
		results:      results,
		achievements: achievements,
	}
}

// Evaluate returns the definitions newly granted by this call. Failures on
// individual definitions do not stop the scan; they are joined into err.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, learnerID string, today domain.Day, now time.Time) ([]domain.AchievementDefinition, error) {
	definitions, err := e.achievements.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	granted, err := e.achievements.GrantedIDs(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	learner, err := e.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	stats := learnerProgress{stats: learner.Stats, streak: -1, perfect: -1}
	var (
		unlocked []domain.AchievementDefinition
		errs     []error
	)
	for _, def := range definitions {
		if !def.Active {
			continue
		}
		if _, ok := granted[def.ID]; ok {
			continue
		}
		value, err := e.progressFor(ctx, learnerID, today, def.Condition, &stats)
		if err != nil {
			errs = append(errs, fmt.Errorf("achievement %s: %w", def.ID, err))
			continue
		}
		if value < def.Threshold {
			continue
		}
		created, err := e.achievements.Grant(ctx, domain.AchievementGrant{
			ID:            uuid.NewString(),
			LearnerID:     learnerID,
			AchievementID: def.ID,
			RewardCoins:   def.RewardCoins,
			GrantedAt:     now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("grant %s: %w", def.ID, err))
			continue
		}
		if created {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked, errors.Join(errs...)
}

type learnerProgress struct {
	stats   domain.LearnerStats
	streak  int
	perfect int
}

// progressFor loads streak and perfect counts lazily, once per evaluation.
func (e *AchievementEvaluator) progressFor(ctx context.Context, learnerID string, today domain.Day, condition domain.ConditionType, p *learnerProgress) (int, error) {
	switch condition {
	case domain.ConditionCorrectAnswers:
		return p.stats.CorrectAnswers, nil
	case domain.ConditionCompletedQuizzes:
		return p.stats.CompletedQuizzes, nil
	case domain.ConditionStreakDays:
		if p.streak < 0 {
			quizzes, err := e.quizzes.ListByLearner(ctx, learnerID)
			if err != nil {
				return 0, err
			}
			days := make(map[domain.Day]struct{}, len(quizzes))
			for _, q := range quizzes {
				if q.Status == domain.StatusCompleted {
					days[q.AssignedOn] = struct{}{}
				}
			}
			p.streak = CurrentStreak(days, today)
		}
		return p.streak, nil
	case domain.ConditionPerfectQuizzes:
		if p.perfect < 0 {
			n, err := e.results.CountPerfect(ctx, learnerID)
			if err != nil {
				return 0, err
			}
			p.perfect = n
		}
		return p.perfect, nil
	default:
		return 0, fmt.Errorf("unknown condition %q", condition)
	}
}

// CurrentStreak walks backward from today until a day without a completed quiz.
func CurrentStreak(completedDays map[domain.Day]struct{}, today domain.Day) int {
	streak := 0
	for day := today; ; {
		if _, ok := completedDays[day]; !ok {
			return streak
		}
		streak++
		prev := day.AddDays(-1)
		if prev == day {
			return streak
		}
		day = prev
	}
}
