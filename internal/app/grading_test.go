package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/infra/memory"
)

func TestCompletionScoresAndRewards(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")})
	ctx := context.Background()

	quiz, err := h.svc.Generate(ctx, "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	outcome := h.answerAll(t, quiz, 3)

	if !outcome.Completed || outcome.Status != domain.StatusCompleted {
		t.Fatalf("expected completion, got %+v", outcome)
	}
	if outcome.Score == nil || *outcome.Score != 3 {
		t.Fatalf("expected score 3, got %v", outcome.Score)
	}
	if outcome.CoinsEarned == nil || *outcome.CoinsEarned != 80 {
		t.Fatalf("expected 80 coins (3x10+50), got %v", outcome.CoinsEarned)
	}
	if outcome.CorrectIndex == nil || *outcome.CorrectIndex != correctOption {
		t.Fatalf("expected correct index revealed on completion")
	}
	if outcome.Rating == nil || outcome.Rating.Rank != 1 || outcome.Rating.TotalPeers != 1 {
		t.Fatalf("expected rating position, got %+v", outcome.Rating)
	}

	stored, _ := h.quizzes.Get(ctx, quiz.ID)
	if stored.Status != domain.StatusCompleted || stored.Score != 3 || stored.CoinsAwarded != 80 || stored.CompletedAt == nil {
		t.Fatalf("unexpected stored quiz %+v", stored)
	}

	l := h.learner(t, "u1")
	if l.Coins != 80 || l.Stats.CompletedQuizzes != 1 || l.Stats.CorrectAnswers != 3 || l.Stats.TotalAnswers != 5 {
		t.Fatalf("unexpected learner after completion %+v", l)
	}
	if l.Stats.AverageScore != 60 {
		t.Fatalf("expected average 60%%, got %v", l.Stats.AverageScore)
	}

	results, _ := h.results.ListByLearner(ctx, "u1")
	if len(results) != 1 || results[0].Score != 3 || results[0].Percentage != 60 || results[0].Coins != 80 {
		t.Fatalf("unexpected test results %+v", results)
	}
	for _, id := range quiz.QuestionIDs() {
		rec, err := h.history.Get(ctx, "u1", id)
		if err != nil || rec.Exposures != 1 {
			t.Fatalf("expected one exposure for %s, got %+v %v", id, rec, err)
		}
	}
	if len(h.notifier.events) != 1 || h.notifier.events[0].Type != domain.EventQuizCompleted {
		t.Fatalf("expected a quiz.completed notification, got %+v", h.notifier.events)
	}
}

func TestRewardUsesSettingsAtCompletionTime(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north"), learner("u2", "north")})
	ctx := context.Background()

	early, _ := h.svc.Generate(ctx, "u1")
	h.answerAll(t, early, 5)

	late, _ := h.svc.Generate(ctx, "u2")
	for i := 0; i < 4; i++ {
		if _, err := h.svc.SubmitAnswer(ctx, late.ID, i, correctOption, "u2"); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	_ = h.settings.SetRewardSettings(ctx, domain.RewardSettings{PerCorrect: 20, CompletionBonus: 5})
	outcome, err := h.svc.SubmitAnswer(ctx, late.ID, 4, correctOption, "u2")
	if err != nil {
		t.Fatalf("final answer: %v", err)
	}
	if *outcome.CoinsEarned != 105 {
		t.Fatalf("expected new rates (5x20+5), got %d", *outcome.CoinsEarned)
	}

	done, _ := h.quizzes.Get(ctx, early.ID)
	if done.CoinsAwarded != 100 {
		t.Fatalf("earlier completion must keep its reward (5x10+50), got %d", done.CoinsAwarded)
	}
}

func TestSubmitAnswerIsFinalPerSlot(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")})
	ctx := context.Background()

	quiz, _ := h.svc.Generate(ctx, "u1")
	first, err := h.svc.SubmitAnswer(ctx, quiz.ID, 0, 0, "u1")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if first.IsCorrect || first.Completed || first.CorrectIndex != nil {
		t.Fatalf("unexpected partial feedback %+v", first)
	}
	if first.Explanation != "because "+quiz.Slots[0].QuestionID {
		t.Fatalf("expected explanation, got %q", first.Explanation)
	}

	before, _ := h.quizzes.Get(ctx, quiz.ID)
	if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, 0, correctOption, "u1"); !errors.Is(err, domain.ErrSlotAnswered) {
		t.Fatalf("expected slot already answered, got %v", err)
	}
	after, _ := h.quizzes.Get(ctx, quiz.ID)
	if after.Version != before.Version || *after.Slots[0].ChosenIndex != 0 || after.Slots[0].Correct {
		t.Fatalf("rejected answer mutated state: %+v", after.Slots[0])
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north"), learner("u2", "north")})
	ctx := context.Background()
	quiz, _ := h.svc.Generate(ctx, "u1")

	cases := []struct {
		name    string
		quizID  string
		slot    int
		option  int
		learner string
		want    error
	}{
		{"missing quiz", "nope", 0, 0, "u1", domain.ErrQuizNotFound},
		{"other learner", quiz.ID, 0, 0, "u2", domain.ErrForbidden},
		{"negative slot", quiz.ID, -1, 0, "u1", domain.ErrInvalidSlot},
		{"slot past end", quiz.ID, domain.QuizSize, 0, "u1", domain.ErrInvalidSlot},
		{"option past end", quiz.ID, 0, 3, "u1", domain.ErrInvalidOption},
		{"unknown learner", quiz.ID, 0, 0, "ghost", domain.ErrLearnerNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.SubmitAnswer(ctx, tc.quizID, tc.slot, tc.option, tc.learner)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	stored, _ := h.quizzes.Get(ctx, quiz.ID)
	if stored.AnsweredCount() != 0 || stored.Status != domain.StatusPending {
		t.Fatalf("rejected submissions mutated the quiz: %+v", stored)
	}
}

func TestSubmitAnswerAfterCompletion(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")})
	ctx := context.Background()
	quiz, _ := h.svc.Generate(ctx, "u1")
	h.answerAll(t, quiz, 5)

	if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, 0, correctOption, "u1"); !errors.Is(err, domain.ErrAlreadyFinished) {
		t.Fatalf("expected already finished, got %v", err)
	}
	l := h.learner(t, "u1")
	if l.Stats.CompletedQuizzes != 1 {
		t.Fatalf("completion must run once, got %d", l.Stats.CompletedQuizzes)
	}
}

func TestConcurrentAnswersToSameSlot(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")})
	ctx := context.Background()
	quiz, _ := h.svc.Generate(ctx, "u1")

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			_, err := h.svc.SubmitAnswer(ctx, quiz.ID, 0, option%3, "u1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrSlotAnswered):
				rejected++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || rejected != writers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d rejected=%d", wins, rejected)
	}
}

func TestConcurrentAnswersToDifferentSlotsAllLand(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")})
	ctx := context.Background()
	quiz, _ := h.svc.Generate(ctx, "u1")

	var wg sync.WaitGroup
	for slot := 0; slot < 3; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, slot, correctOption, "u1"); err != nil {
				t.Errorf("slot %d: %v", slot, err)
			}
		}(slot)
	}
	wg.Wait()

	stored, _ := h.quizzes.Get(ctx, quiz.ID)
	if stored.AnsweredCount() != 3 {
		t.Fatalf("expected 3 answers, got %d", stored.AnsweredCount())
	}
}

func TestDownstreamFailuresDoNotFailCompletion(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")},
		withDeps(func(d *app.Dependencies) {
			d.Achievements = brokenAchievements{}
			d.Learners = peerlessDirectory{d.Learners.(*memory.LearnerDirectory)}
		}))
	ctx := context.Background()

	quiz, _ := h.svc.Generate(ctx, "u1")
	outcome := h.answerAll(t, quiz, 5)

	if !outcome.Completed || *outcome.Score != 5 || *outcome.CoinsEarned != 100 {
		t.Fatalf("expected graded completion, got %+v", outcome)
	}
	if outcome.Rating != nil || len(outcome.NewAchievements) != 0 {
		t.Fatalf("expected downstream fields empty, got %+v", outcome)
	}
	if h.learner(t, "u1").Coins != 100 {
		t.Fatalf("reward must be applied despite downstream failures")
	}
}

func TestCompletionBookkeepingFailureKeepsQuizFinished(t *testing.T) {
	h := newHarness(t, bank(10, "q"), []domain.Learner{learner("u1", "north")},
		withDeps(func(d *app.Dependencies) {
			d.Learners = failingDirectory{d.Learners.(*memory.LearnerDirectory)}
			d.History = failingLedger{d.History.(*memory.HistoryLedger)}
		}))
	ctx := context.Background()

	quiz, err := h.svc.Generate(ctx, "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	last := len(quiz.Slots) - 1
	for i := 0; i < last; i++ {
		if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, i, correctOption, "u1"); err != nil {
			t.Fatalf("answer slot %d: %v", i, err)
		}
	}
	if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, last, correctOption, "u1"); err == nil {
		t.Fatalf("expected the completing answer to report bookkeeping failures")
	}

	stored, err := h.quizzes.Get(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if stored.Status != domain.StatusCompleted || stored.Score != domain.QuizSize {
		t.Fatalf("expected completed quiz with full score, got %s score %d", stored.Status, stored.Score)
	}

	results, err := h.results.ListByLearner(ctx, "u1")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 || results[0].QuizID != quiz.ID || results[0].Score != domain.QuizSize {
		t.Fatalf("expected the test result to be saved first, got %+v", results)
	}
	if l := h.learner(t, "u1"); l.Coins != 0 || l.Stats.CompletedQuizzes != 0 {
		t.Fatalf("expected stats untouched after failed write, got %+v", l)
	}

	if _, err := h.svc.SubmitAnswer(ctx, quiz.ID, last, correctOption, "u1"); !errors.Is(err, domain.ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished on retry, got %v", err)
	}
	if got, _ := h.results.ListByLearner(ctx, "u1"); len(got) != 1 {
		t.Fatalf("retry must not save a second result, got %d", len(got))
	}

	h.advance(24 * time.Hour)
	next, err := h.svc.Generate(ctx, "u1")
	if err != nil {
		t.Fatalf("next day generate: %v", err)
	}
	done := idSet(quiz)
	for _, id := range next.QuestionIDs() {
		if _, ok := done[id]; ok {
			t.Fatalf("question %s from the completed quiz was served again", id)
		}
	}
}

type failingDirectory struct {
	*memory.LearnerDirectory
}

func (failingDirectory) ApplyCompletion(context.Context, string, int, int64) error {
	return errors.New("directory write timeout")
}

type failingLedger struct {
	*memory.HistoryLedger
}

func (failingLedger) RecordExposure(context.Context, string, string, bool, time.Time) error {
	return errors.New("ledger unavailable")
}

type brokenAchievements struct{}

func (brokenAchievements) ListActive(context.Context) ([]domain.AchievementDefinition, error) {
	return nil, errors.New("catalog offline")
}

func (brokenAchievements) GrantedIDs(context.Context, string) (map[string]struct{}, error) {
	return nil, errors.New("catalog offline")
}

func (brokenAchievements) Grant(context.Context, domain.AchievementGrant) (bool, error) {
	return false, errors.New("catalog offline")
}

type peerlessDirectory struct {
	*memory.LearnerDirectory
}

func (peerlessDirectory) ListPeers(context.Context, string) ([]domain.Learner, error) {
	return nil, errors.New("directory timeout")
}

func TestCalculateReward(t *testing.T) {
	settings := domain.RewardSettings{PerCorrect: 10, CompletionBonus: 50}
	cases := map[int]int64{0: 50, 3: 80, 5: 100}
	for score, want := range cases {
		if got := app.CalculateReward(score, settings); got != want {
			t.Fatalf("score %d: expected %d, got %d", score, want, got)
		}
	}
}
