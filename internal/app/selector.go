package app

import (
	"context"
	"fmt"
	"math/rand"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/logger"
)

// Selector picks the day's questions for one learner.
type Selector struct {
	catalog QuestionCatalog
	history HistoryLedger
	quizzes QuizStore
	usage   UsageIndex
	log     *logger.Logger
	shuffle func([]domain.Question)
}

func NewSelector(catalog QuestionCatalog, history HistoryLedger, quizzes QuizStore, usage UsageIndex, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{
		catalog: catalog,
		history: history,
		quizzes: quizzes,
		usage:   usage,
		log:     log,
		shuffle: shuffleQuestions,
	}
}

func shuffleQuestions(qs []domain.Question) {
	rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

// SelectQuestions returns exactly domain.QuizSize question IDs the learner
// has never seen, or an *domain.InsufficientQuestionsError.
func (s *Selector) SelectQuestions(ctx context.Context, learner domain.Learner, day domain.Day) ([]string, error) {
	groupID := learner.GroupID
	if learner.IsAdmin() {
		groupID = ""
	}

	catalog, err := s.catalog.ListActive(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	eligible := make([]domain.Question, 0, len(catalog))
	for _, q := range catalog {
		if q.Active && (groupID == "" || q.VisibleTo(groupID)) {
			eligible = append(eligible, q)
		}
	}

	seen, err := s.seenSet(ctx, learner.ID)
	if err != nil {
		return nil, err
	}
	unseen := excluding(eligible, seen)

	pool := unseen
	if !learner.IsAdmin() {
		used, err := s.usage.ListUsedQuestionIDs(ctx, learner.LocalityID, day, learner.ID)
		if err != nil {
			s.log.Warn("usage index unavailable, skipping population exclusion",
				"learner_id", learner.ID, "locality_id", learner.LocalityID, "error", err)
		} else {
			pool = excluding(unseen, used)
		}
	}
	// The population exclusion is relaxed before the personal one ever is.
	if len(pool) < domain.QuizSize {
		pool = unseen
	}
	if len(pool) < domain.QuizSize {
		reason := domain.ShortageCatalogExhausted
		if len(eligible) < domain.QuizSize {
			reason = domain.ShortageCatalogTooSmall
		}
		return nil, &domain.InsufficientQuestionsError{
			Reason:   reason,
			GroupID:  groupID,
			Eligible: len(eligible),
			Unseen:   len(unseen),
		}
	}

	s.shuffle(pool)

	ids := pickBalanced(pool, domain.QuizSize)
	if len(ids) != domain.QuizSize {
		return nil, fmt.Errorf("selected %d questions: %w", len(ids), domain.ErrInvalidQuiz)
	}
	return ids, nil
}

// seenSet unions the ledger with the questions of every instance the
// learner answered at least once: completed ones, and expired or abandoned
// ones that never reached the ledger.
func (s *Selector) seenSet(ctx context.Context, learnerID string) (map[string]struct{}, error) {
	seen, err := s.history.SeenQuestionIDs(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	quizzes, err := s.quizzes.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list learner quizzes: %w", err)
	}
	for _, quiz := range quizzes {
		if quiz.Status != domain.StatusCompleted && quiz.AnsweredCount() == 0 {
			continue
		}
		for _, id := range quiz.QuestionIDs() {
			seen[id] = struct{}{}
		}
	}
	return seen, nil
}

func excluding(questions []domain.Question, ids map[string]struct{}) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if _, skip := ids[q.ID]; !skip {
			out = append(out, q)
		}
	}
	return out
}

// pickBalanced takes one question per category in discovery order, then
// keeps cycling through the categories until n questions are chosen. The
// refill is round-robin rather than pool order, so the remaining slots
// spread over categories too.
func pickBalanced(pool []domain.Question, n int) []string {
	byCategory := make(map[string][]domain.Question)
	var order []string
	for _, q := range pool {
		if _, ok := byCategory[q.CategoryID]; !ok {
			order = append(order, q.CategoryID)
		}
		byCategory[q.CategoryID] = append(byCategory[q.CategoryID], q)
	}

	picked := make([]string, 0, n)
	for round := 0; len(picked) < n; round++ {
		progressed := false
		for _, category := range order {
			if len(picked) == n {
				break
			}
			if round < len(byCategory[category]) {
				picked = append(picked, byCategory[category][round].ID)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return picked
}
