package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// maxUpdateAttempts bounds optimistic-concurrency retries on one quiz.
const maxUpdateAttempts = 5

// IsExpired reports whether an unfinished quiz has passed its deadline.
func IsExpired(quiz domain.QuizInstance, now time.Time) bool {
	return !quiz.Status.Terminal() && !now.Before(quiz.Deadline)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrQuizNotFound)
}

// Generate returns today's quiz for the learner, creating it when needed.
// An unfinished quiz is returned unchanged; a completed one fails with
// domain.ErrAlreadyCompletedToday.
func (s *QuizService) Generate(ctx context.Context, learnerID string) (domain.QuizInstance, error) {
	learner, err := s.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return domain.QuizInstance{}, err
	}
	now, today := s.clock()

	existing, err := s.quizzes.FindByLearnerDay(ctx, learner.ID, today)
	if err == nil {
		return s.resume(ctx, learner, existing, now)
	}
	if !isNotFound(err) {
		return domain.QuizInstance{}, err
	}

	ids, err := s.selector.SelectQuestions(ctx, learner, today)
	if err != nil {
		var shortage *domain.InsufficientQuestionsError
		if errors.As(err, &shortage) {
			s.metrics.InsufficientQuestions(string(shortage.Reason))
			s.log.Warn("cannot generate quiz", "learner_id", learner.ID, "group_id", learner.GroupID,
				"reason", shortage.Reason, "eligible", shortage.Eligible, "unseen", shortage.Unseen)
		}
		return domain.QuizInstance{}, err
	}

	quiz := newQuizInstance(learner, today, ids, now)
	if err := quiz.Validate(); err != nil {
		return domain.QuizInstance{}, err
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		if !errors.Is(err, domain.ErrDuplicateQuiz) {
			return domain.QuizInstance{}, fmt.Errorf("create quiz: %w", err)
		}
		// Lost the race against a concurrent generate; serve the winner.
		existing, ferr := s.quizzes.FindByLearnerDay(ctx, learner.ID, today)
		if ferr != nil {
			return domain.QuizInstance{}, ferr
		}
		return s.resume(ctx, learner, existing, now)
	}

	if quiz.LocalityID != "" {
		if err := s.usage.MarkUsed(ctx, quiz.LocalityID, today, learner.ID, ids); err != nil {
			s.metrics.DownstreamFailure("usage_index")
			s.log.Warn("mark questions used", "learner_id", learner.ID, "quiz_id", quiz.ID, "error", err)
		}
	}
	s.metrics.QuizGenerated()
	s.log.Info("quiz generated", "learner_id", learner.ID, "quiz_id", quiz.ID, "day", today)
	return quiz, nil
}

func (s *QuizService) resume(ctx context.Context, learner domain.Learner, quiz domain.QuizInstance, now time.Time) (domain.QuizInstance, error) {
	quiz, err := s.expireIfDue(ctx, learner, quiz, now)
	if err != nil {
		return domain.QuizInstance{}, err
	}
	if quiz.Status == domain.StatusCompleted {
		s.log.Debug("generate rejected", "learner_id", learner.ID, "quiz_id", quiz.ID, "reason", domain.ErrAlreadyCompletedToday)
		return domain.QuizInstance{}, domain.ErrAlreadyCompletedToday
	}
	return quiz, nil
}

func newQuizInstance(learner domain.Learner, day domain.Day, questionIDs []string, now time.Time) domain.QuizInstance {
	slots := make([]domain.QuestionSlot, len(questionIDs))
	for i, id := range questionIDs {
		slots[i] = domain.QuestionSlot{QuestionID: id}
	}
	locality := learner.LocalityID
	if learner.IsAdmin() {
		locality = ""
	}
	return domain.QuizInstance{
		ID:         uuid.NewString(),
		LearnerID:  learner.ID,
		LocalityID: locality,
		AssignedOn: day,
		Slots:      slots,
		Status:     domain.StatusPending,
		Deadline:   domain.StartOfNextDay(now),
		CreatedAt:  now,
	}
}

// expireIfDue flips an overdue quiz to expired. Admins are never expired.
// An expired quiz with answers has shown its questions, so they enter the
// history ledger as on reset.
func (s *QuizService) expireIfDue(ctx context.Context, learner domain.Learner, quiz domain.QuizInstance, now time.Time) (domain.QuizInstance, error) {
	if learner.IsAdmin() {
		return quiz, nil
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if !IsExpired(quiz, now) {
			return quiz, nil
		}
		quiz.Status = domain.StatusExpired
		updated, err := s.quizzes.Update(ctx, quiz)
		if err == nil {
			s.log.Debug("quiz expired", "learner_id", quiz.LearnerID, "quiz_id", quiz.ID, "answered", updated.AnsweredCount())
			s.recordShown(ctx, updated, now)
			return updated, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.QuizInstance{}, fmt.Errorf("expire quiz: %w", err)
		}
		if quiz, err = s.quizzes.Get(ctx, quiz.ID); err != nil {
			return domain.QuizInstance{}, err
		}
	}
	return domain.QuizInstance{}, domain.ErrVersionConflict
}

// recordShown writes every slot of a partly answered quiz to the ledger.
// Failures are logged only: the selector also treats such instances as seen.
func (s *QuizService) recordShown(ctx context.Context, quiz domain.QuizInstance, now time.Time) {
	if quiz.AnsweredCount() == 0 {
		return
	}
	for _, slot := range quiz.Slots {
		if err := s.history.RecordExposure(ctx, quiz.LearnerID, slot.QuestionID, slot.Correct, now); err != nil {
			s.metrics.DownstreamFailure("history")
			s.log.Warn("record exposure of expired quiz", "learner_id", quiz.LearnerID, "quiz_id", quiz.ID, "error", err)
			return
		}
	}
}

// ResetToday deletes the learner's quiz for today. If any slot was
// answered, every slot question is first written to the history ledger so
// the reset never grants a second look at a shown question.
func (s *QuizService) ResetToday(ctx context.Context, learnerID string) error {
	learner, err := s.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return err
	}
	now, today := s.clock()
	quiz, err := s.quizzes.FindByLearnerDay(ctx, learner.ID, today)
	if err != nil {
		return err
	}

	if quiz.AnsweredCount() > 0 {
		for _, slot := range quiz.Slots {
			if err := s.history.RecordExposure(ctx, learner.ID, slot.QuestionID, slot.Correct, now); err != nil {
				return fmt.Errorf("record exposure before reset: %w", err)
			}
		}
	}
	if err := s.quizzes.Delete(ctx, quiz.ID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if quiz.LocalityID != "" {
		if err := s.usage.Release(ctx, quiz.LocalityID, today, learner.ID); err != nil {
			s.log.Warn("release used questions", "learner_id", learner.ID, "quiz_id", quiz.ID, "error", err)
		}
	}
	s.log.Info("quiz reset", "learner_id", learner.ID, "quiz_id", quiz.ID, "answered", quiz.AnsweredCount())
	return nil
}

// ResetAll purges the learner's history and quiz instances; afterwards the
// entire catalog is eligible again for that learner.
func (s *QuizService) ResetAll(ctx context.Context, learnerID string) error {
	learner, err := s.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return err
	}
	_, today := s.clock()
	if err := s.history.PurgeAll(ctx, learner.ID); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	if err := s.quizzes.DeleteByLearner(ctx, learner.ID); err != nil {
		return fmt.Errorf("delete quizzes: %w", err)
	}
	if learner.LocalityID != "" {
		if err := s.usage.Release(ctx, learner.LocalityID, today, learner.ID); err != nil {
			s.log.Warn("release used questions", "learner_id", learner.ID, "error", err)
		}
	}
	s.log.Info("learner history reset", "learner_id", learner.ID)
	return nil
}
