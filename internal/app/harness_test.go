package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/infra/memory"
)

// correctOption is the index of the right answer in every test question.
const correctOption = 1

type harness struct {
	svc          *app.QuizService
	learners     *memory.LearnerDirectory
	catalog      *memory.StaticCatalog
	quizzes      *memory.QuizStore
	history      *memory.HistoryLedger
	results      *memory.ResultStore
	achievements *memory.AchievementStore
	settings     *memory.SettingsStore
	notifier     *recordingNotifier
	now          time.Time
}

type harnessOption func(*app.Dependencies, *harness)

func withAchievements(defs ...domain.AchievementDefinition) harnessOption {
	return func(deps *app.Dependencies, h *harness) {
		h.achievements = memory.NewAchievementStore(h.learners, defs...)
		deps.Achievements = h.achievements
	}
}

func withDeps(fn func(*app.Dependencies)) harnessOption {
	return func(deps *app.Dependencies, _ *harness) { fn(deps) }
}

func newHarness(t *testing.T, questions []domain.Question, learners []domain.Learner, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		learners: memory.NewLearnerDirectory(learners...),
		catalog:  memory.NewStaticCatalog(questions),
		quizzes:  memory.NewQuizStore(),
		history:  memory.NewHistoryLedger(),
		results:  memory.NewResultStore(),
		settings: memory.NewSettingsStore(domain.RewardSettings{PerCorrect: 10, CompletionBonus: 50}),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}
	h.achievements = memory.NewAchievementStore(h.learners)
	deps := app.Dependencies{
		Learners:     h.learners,
		Catalog:      h.catalog,
		Quizzes:      h.quizzes,
		Usage:        h.quizzes,
		History:      h.history,
		Results:      h.results,
		Achievements: h.achievements,
		Rewards:      h.settings,
		Notifier:     h.notifier,
		Now:          func() time.Time { return h.now },
		Shuffle:      func([]domain.Question) {},
	}
	for _, opt := range opts {
		opt(&deps, h)
	}
	h.svc = app.NewQuizService(deps)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// answerAll answers every slot in order, the first `correct` of them correctly.
func (h *harness) answerAll(t *testing.T, quiz domain.QuizInstance, correct int) app.AnswerOutcome {
	t.Helper()
	var outcome app.AnswerOutcome
	for i := range quiz.Slots {
		option := 0
		if i < correct {
			option = correctOption
		}
		var err error
		outcome, err = h.svc.SubmitAnswer(context.Background(), quiz.ID, i, option, quiz.LearnerID)
		if err != nil {
			t.Fatalf("answer slot %d: %v", i, err)
		}
	}
	return outcome
}

func (h *harness) learner(t *testing.T, id string) domain.Learner {
	t.Helper()
	l, err := h.learners.GetLearner(context.Background(), id)
	if err != nil {
		t.Fatalf("get learner: %v", err)
	}
	return l
}

func question(id, category string, groups ...string) domain.Question {
	return domain.Question{
		ID:          id,
		CategoryID:  category,
		GroupIDs:    groups,
		Prompt:      "prompt " + id,
		Explanation: "because " + id,
		Options: []domain.Option{
			{Text: "wrong"},
			{Text: "right", Correct: true},
			{Text: "also wrong"},
		},
		Active: true,
	}
}

// bank returns n questions in group g, each in its own category.
func bank(n int, prefix string) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		id := fmt.Sprintf("%s%02d", prefix, i+1)
		qs[i] = question(id, "cat-"+id, "g")
	}
	return qs
}

func learner(id, locality string) domain.Learner {
	return domain.Learner{ID: id, DisplayName: id, GroupID: "g", LocalityID: locality, Role: domain.RoleLearner, Active: true}
}

func admin(id string) domain.Learner {
	return domain.Learner{ID: id, DisplayName: id, GroupID: "ops", LocalityID: "hq", Role: domain.RoleAdmin, Active: true}
}

func idSet(quiz domain.QuizInstance) map[string]struct{} {
	out := make(map[string]struct{}, len(quiz.Slots))
	for _, id := range quiz.QuestionIDs() {
		out[id] = struct{}{}
	}
	return out
}

type recordingNotifier struct {
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, event domain.Event) {
	n.events = append(n.events, event)
}
