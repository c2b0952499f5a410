package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound is returned when a quiz instance does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLearnerNotFound indicates the learner directory has no such learner.
	ErrLearnerNotFound = errors.New("learner not found")
	// ErrHistoryNotFound indicates the learner never saw the question.
	ErrHistoryNotFound = errors.New("history record not found")
	// ErrQuestionNotFound indicates a referenced question is missing from the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrForbidden is returned when a learner acts on another learner's quiz.
	ErrForbidden = errors.New("quiz belongs to another learner")
	// ErrAlreadyCompletedToday is returned when today's quiz is already completed.
	ErrAlreadyCompletedToday = errors.New("quiz already completed today")
	// ErrAlreadyFinished is returned when answering a completed or expired quiz.
	ErrAlreadyFinished = errors.New("quiz already finished")
	// ErrSlotAnswered is returned when a slot already carries an answer.
	ErrSlotAnswered = errors.New("slot already answered")
	// ErrInvalidSlot indicates a slot index outside the quiz.
	ErrInvalidSlot = errors.New("invalid slot index")
	// ErrInvalidOption indicates an option index outside the question.
	ErrInvalidOption = errors.New("invalid option index")
	// ErrInsufficientQuestions is matched by InsufficientQuestionsError.
	ErrInsufficientQuestions = errors.New("insufficient questions")
	// ErrInvalidQuiz guards the exactly-five-distinct-slots invariant.
	ErrInvalidQuiz = errors.New("quiz must hold exactly 5 distinct questions")

	// ErrDuplicateQuiz is returned by stores when a learner already has a quiz for the day.
	ErrDuplicateQuiz = errors.New("quiz already exists for learner and day")
	// ErrVersionConflict is returned by stores when an optimistic update loses a race.
	ErrVersionConflict = errors.New("quiz was modified concurrently")
)

type ShortageReason string

const (
	// ShortageCatalogTooSmall means the group has fewer than QuizSize active questions.
	ShortageCatalogTooSmall ShortageReason = "catalog_too_small"
	// ShortageCatalogExhausted means the learner has already seen nearly the whole catalog.
	ShortageCatalogExhausted ShortageReason = "catalog_exhausted"
)

// InsufficientQuestionsError carries the diagnostics operators need to
// tell "add more questions" apart from "learner exhausted the bank".
type InsufficientQuestionsError struct {
	Reason   ShortageReason
	GroupID  string
	Eligible int
	Unseen   int
}

func (e *InsufficientQuestionsError) Error() string {
	switch e.Reason {
	case ShortageCatalogTooSmall:
		return fmt.Sprintf("insufficient questions: group %q has only %d active questions, at least %d required",
			e.GroupID, e.Eligible, QuizSize)
	default:
		return fmt.Sprintf("insufficient questions: learner has seen all but %d of %d eligible questions",
			e.Unseen, e.Eligible)
	}
}

func (e *InsufficientQuestionsError) Is(target error) bool {
	return target == ErrInsufficientQuestions
}
