package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// AnswerOutcome is the feedback for one submitted answer. The completion
// fields are only set when this answer finished the quiz.
type AnswerOutcome struct {
	QuizID          string                         `json:"quizId"`
	Slot            int                            `json:"slot"`
	IsCorrect       bool                           `json:"isCorrect"`
	Explanation     string                         `json:"explanation"`
	CorrectIndex    *int                           `json:"correctOptionIndex,omitempty"`
	Completed       bool                           `json:"completed"`
	Status          domain.QuizStatus              `json:"status"`
	Score           *int                           `json:"score,omitempty"`
	CoinsEarned     *int64                         `json:"coinsEarned,omitempty"`
	Rating          *domain.RatingPosition         `json:"ratingPosition,omitempty"`
	NewAchievements []domain.AchievementDefinition `json:"newAchievements,omitempty"`
}

// SubmitAnswer grades one slot. Answers are final: a second write to the
// same slot fails with domain.ErrSlotAnswered and changes nothing.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID string, slot, option int, learnerID string) (AnswerOutcome, error) {
	learner, err := s.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return AnswerOutcome{}, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		now, _ := s.clock()
		quiz, err := s.quizzes.Get(ctx, quizID)
		if err != nil {
			return AnswerOutcome{}, err
		}
		if quiz.LearnerID != learner.ID {
			return AnswerOutcome{}, domain.ErrForbidden
		}
		if quiz, err = s.expireIfDue(ctx, learner, quiz, now); err != nil {
			return AnswerOutcome{}, err
		}
		if quiz.Status.Terminal() {
			return AnswerOutcome{}, domain.ErrAlreadyFinished
		}
		if slot < 0 || slot >= len(quiz.Slots) {
			return AnswerOutcome{}, domain.ErrInvalidSlot
		}
		if quiz.Slots[slot].Answered() {
			return AnswerOutcome{}, domain.ErrSlotAnswered
		}

		question, err := s.question(ctx, quiz.Slots[slot].QuestionID)
		if err != nil {
			return AnswerOutcome{}, err
		}
		if option < 0 || option >= len(question.Options) {
			return AnswerOutcome{}, domain.ErrInvalidOption
		}
		correct := option == question.CorrectIndex()

		next, completing, err := s.applyAnswer(ctx, quiz, slot, option, correct, now)
		if err != nil {
			return AnswerOutcome{}, err
		}
		updated, err := s.quizzes.Update(ctx, next)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return AnswerOutcome{}, fmt.Errorf("save answer: %w", err)
		}
		s.metrics.Answer(correct)

		outcome := AnswerOutcome{
			QuizID:      updated.ID,
			Slot:        slot,
			IsCorrect:   correct,
			Explanation: question.Explanation,
			Status:      updated.Status,
		}
		if !completing {
			return outcome, nil
		}
		idx := question.CorrectIndex()
		outcome.CorrectIndex = &idx
		if err := s.complete(ctx, learner, updated, &outcome); err != nil {
			return AnswerOutcome{}, err
		}
		return outcome, nil
	}
	return AnswerOutcome{}, fmt.Errorf("submit answer to quiz %s: %w", quizID, domain.ErrVersionConflict)
}

func (s *QuizService) question(ctx context.Context, questionID string) (domain.Question, error) {
	questions, err := s.catalog.GetQuestions(ctx, []string{questionID})
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	q, ok := questions[questionID]
	if !ok {
		return domain.Question{}, fmt.Errorf("question %s: %w", questionID, domain.ErrQuestionNotFound)
	}
	return q, nil
}

// applyAnswer returns a copy of quiz with the slot written. When it was the
// last open slot, the copy is already completed with score and coins, so
// the status transition and the answer commit in one versioned update.
func (s *QuizService) applyAnswer(ctx context.Context, quiz domain.QuizInstance, slot, option int, correct bool, now time.Time) (domain.QuizInstance, bool, error) {
	next := quiz
	next.Slots = append([]domain.QuestionSlot(nil), quiz.Slots...)
	chosen := option
	answeredAt := now
	next.Slots[slot] = domain.QuestionSlot{
		QuestionID:  quiz.Slots[slot].QuestionID,
		ChosenIndex: &chosen,
		Correct:     correct,
		AnsweredAt:  &answeredAt,
	}

	if next.AnsweredCount() < len(next.Slots) {
		next.Status = domain.StatusInProgress
		return next, false, nil
	}

	settings, err := s.rewards.RewardSettings(ctx)
	if err != nil {
		return domain.QuizInstance{}, false, fmt.Errorf("load reward settings: %w", err)
	}
	next.Status = domain.StatusCompleted
	next.Score = next.CorrectCount()
	next.CoinsAwarded = CalculateReward(next.Score, settings)
	next.CompletedAt = &answeredAt
	return next, true, nil
}

// complete runs the post-transition steps: test result, history ledger,
// learner stats and coins, then best-effort rating, achievements and
// notifications. The completed status written before this call fences it
// from running twice. The three bookkeeping steps are independent; each is
// attempted even if another fails, and their failures are returned joined.
// The result comes first as the audit record of the attempt.
func (s *QuizService) complete(ctx context.Context, learner domain.Learner, quiz domain.QuizInstance, outcome *AnswerOutcome) error {
	completedAt := *quiz.CompletedAt
	log := s.log.With("learner_id", learner.ID, "quiz_id", quiz.ID)

	var errs []error
	result, err := s.testResult(ctx, quiz)
	if err != nil {
		errs = append(errs, err)
	} else if err := s.results.Save(ctx, result); err != nil {
		errs = append(errs, fmt.Errorf("save test result: %w", err))
	}
	for _, slot := range quiz.Slots {
		if err := s.history.RecordExposure(ctx, learner.ID, slot.QuestionID, slot.Correct, completedAt); err != nil {
			errs = append(errs, fmt.Errorf("record exposure: %w", err))
			break
		}
	}
	if err := s.learners.ApplyCompletion(ctx, learner.ID, quiz.Score, quiz.CoinsAwarded); err != nil {
		errs = append(errs, fmt.Errorf("apply completion to learner: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		s.metrics.DownstreamFailure("completion")
		log.Error("quiz completed with failed bookkeeping", "score", quiz.Score, "error", err)
		return err
	}

	s.metrics.QuizCompleted(quiz.Score)
	log.Info("quiz completed", "score", quiz.Score, "coins", quiz.CoinsAwarded)

	score, coins := quiz.Score, quiz.CoinsAwarded
	outcome.Completed = true
	outcome.Score = &score
	outcome.CoinsEarned = &coins

	if position, err := s.rating.PositionOf(ctx, learner.ID); err != nil {
		s.metrics.DownstreamFailure("rating")
		log.Warn("rating refresh failed", "error", err)
	} else {
		outcome.Rating = &position
	}

	unlocked, err := s.achievements.Evaluate(ctx, learner.ID, quiz.AssignedOn, completedAt)
	if err != nil {
		s.metrics.DownstreamFailure("achievements")
		log.Warn("achievement evaluation failed", "error", err)
	}
	outcome.NewAchievements = unlocked

	s.notifier.Notify(ctx, learner.ID, domain.Event{Type: domain.EventQuizCompleted, Payload: result, At: completedAt})
	for _, def := range unlocked {
		s.notifier.Notify(ctx, learner.ID, domain.Event{Type: domain.EventAchievementUnlocked, Payload: def, At: completedAt})
	}
	return nil
}

func (s *QuizService) testResult(ctx context.Context, quiz domain.QuizInstance) (domain.TestResult, error) {
	questions, err := s.catalog.GetQuestions(ctx, quiz.QuestionIDs())
	if err != nil {
		return domain.TestResult{}, fmt.Errorf("load quiz questions: %w", err)
	}
	answers := make([]domain.GradedAnswer, len(quiz.Slots))
	for i, slot := range quiz.Slots {
		answers[i] = domain.GradedAnswer{
			QuestionID:   slot.QuestionID,
			ChosenIndex:  *slot.ChosenIndex,
			CorrectIndex: -1,
			Correct:      slot.Correct,
		}
		if q, ok := questions[slot.QuestionID]; ok {
			answers[i].CorrectIndex = q.CorrectIndex()
		}
	}
	return domain.TestResult{
		ID:         uuid.NewString(),
		QuizID:     quiz.ID,
		LearnerID:  quiz.LearnerID,
		AssignedOn: quiz.AssignedOn,
		Answers:    answers,
		Score:      quiz.Score,
		Percentage: domain.Percentage(quiz.Score),
		Coins:      quiz.CoinsAwarded,
		CreatedAt:  *quiz.CompletedAt,
	}, nil
}
