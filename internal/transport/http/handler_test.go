package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	hub      *memory.NotificationHub
	settings *memory.SettingsStore
	loader   *countingCatalog
}

type countingCatalog struct {
	*memory.StaticCatalog
	mu    sync.Mutex
	calls int
}

func (c *countingCatalog) ListActive(ctx context.Context, groupID string) ([]domain.Question, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.StaticCatalog.ListActive(ctx, groupID)
}

func (c *countingCatalog) loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestServer(t *testing.T, questionCount int) *testServer {
	t.Helper()
	learners := memory.NewLearnerDirectory(
		domain.Learner{ID: "u1", DisplayName: "Ada", GroupID: "g", LocalityID: "north", Role: domain.RoleLearner, Active: true},
		domain.Learner{ID: "u2", DisplayName: "Bob", GroupID: "g", LocalityID: "north", Role: domain.RoleLearner, Active: true},
		domain.Learner{ID: "root", DisplayName: "Root", GroupID: "ops", LocalityID: "hq", Role: domain.RoleAdmin, Active: true},
	)
	quizzes := memory.NewQuizStore()
	hub := memory.NewNotificationHub()
	settings := memory.NewSettingsStore(domain.RewardSettings{PerCorrect: 10, CompletionBonus: 50})
	loader := &countingCatalog{StaticCatalog: memory.NewStaticCatalog(sampleQuestions(questionCount))}
	catalog := memory.NewCatalogCache(loader, time.Minute)
	service := app.NewQuizService(app.Dependencies{
		Learners:     learners,
		Catalog:      catalog,
		Quizzes:      quizzes,
		Usage:        quizzes,
		History:      memory.NewHistoryLedger(),
		Results:      memory.NewResultStore(),
		Achievements: memory.NewAchievementStore(learners),
		Rewards:      settings,
		Notifier:     hub,
		Now:          func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})

	mux := http.NewServeMux()
	NewHandler(service, settings, catalog, hub, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{Server: server, hub: hub, settings: settings, loader: loader}
}

func (s *testServer) do(t *testing.T, method, path, learnerID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if learnerID != "" {
		req.Header.Set(LearnerHeader, learnerID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func TestQuizFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, 10)

	resp := srv.do(t, http.MethodGet, "/v1/quizzes/today", "u1", nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	view := decode[app.QuizView](t, resp)
	if len(view.Questions) != domain.QuizSize || view.Quiz.Status != domain.StatusPending {
		t.Fatalf("unexpected view %+v", view)
	}
	for _, q := range view.Questions {
		if q.CorrectIndex != nil {
			t.Fatalf("correct option leaked: %+v", q)
		}
	}

	again := decode[app.QuizView](t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil))
	if again.Quiz.ID != view.Quiz.ID {
		t.Fatalf("expected idempotent generate, got %s and %s", view.Quiz.ID, again.Quiz.ID)
	}

	path := "/v1/quizzes/" + view.Quiz.ID + "/answers"
	var last app.AnswerOutcome
	for slot := 0; slot < domain.QuizSize; slot++ {
		resp := srv.do(t, http.MethodPost, path, "u1", map[string]int{"slot": slot, "option": 1})
		expectStatus(t, resp, http.StatusOK)
		last = decode[app.AnswerOutcome](t, resp)
	}
	if !last.Completed || last.Score == nil || *last.Score != 5 || *last.CoinsEarned != 100 {
		t.Fatalf("unexpected final outcome %+v", last)
	}
	if last.Rating == nil || last.Rating.Rank != 1 {
		t.Fatalf("expected rating in outcome, got %+v", last.Rating)
	}

	expectStatus(t, srv.do(t, http.MethodPost, path, "u1", map[string]int{"slot": 0, "option": 1}), http.StatusConflict)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil), http.StatusConflict)

	position := decode[domain.RatingPosition](t, srv.do(t, http.MethodGet, "/v1/rating", "u1", nil))
	if position.Rank != 1 || position.TotalPeers != 2 || len(position.Top) != 2 {
		t.Fatalf("unexpected rating %+v", position)
	}

	results := decode[[]domain.TestResult](t, srv.do(t, http.MethodGet, "/v1/results", "u1", nil))
	if len(results) != 1 || results[0].Score != 5 {
		t.Fatalf("unexpected results %+v", results)
	}
	empty := decode[[]domain.TestResult](t, srv.do(t, http.MethodGet, "/v1/results", "u2", nil))
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v", empty)
	}
}

func TestAnswerErrorsMapToStatus(t *testing.T) {
	srv := newTestServer(t, 10)
	view := decode[app.QuizView](t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil))
	path := "/v1/quizzes/" + view.Quiz.ID + "/answers"

	cases := []struct {
		name    string
		path    string
		learner string
		body    any
		status  int
		code    string
	}{
		{"missing identity", path, "", map[string]int{"slot": 0, "option": 0}, http.StatusUnauthorized, "unauthenticated"},
		{"bad body", path, "u1", "nonsense", http.StatusBadRequest, "bad_request"},
		{"missing option", path, "u1", map[string]int{"slot": 0}, http.StatusBadRequest, "bad_request"},
		{"invalid slot", path, "u1", map[string]int{"slot": 9, "option": 0}, http.StatusBadRequest, "invalid_slot"},
		{"invalid option", path, "u1", map[string]int{"slot": 0, "option": 7}, http.StatusBadRequest, "invalid_option"},
		{"other learner", path, "u2", map[string]int{"slot": 0, "option": 0}, http.StatusForbidden, "forbidden"},
		{"unknown quiz", "/v1/quizzes/nope/answers", "u1", map[string]int{"slot": 0, "option": 0}, http.StatusNotFound, "not_found"},
		{"unknown learner", path, "ghost", map[string]int{"slot": 0, "option": 0}, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := srv.do(t, http.MethodPost, tc.path, tc.learner, tc.body)
			expectStatus(t, resp, tc.status)
			if body := decode[errorBody](t, resp); body.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, body)
			}
		})
	}
}

func TestInsufficientQuestionsReportsDiagnostics(t *testing.T) {
	srv := newTestServer(t, 3)
	resp := srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	body := decode[errorBody](t, resp)
	if body.Reason != string(domain.ShortageCatalogTooSmall) || body.Eligible == nil || *body.Eligible != 3 {
		t.Fatalf("unexpected diagnostics %+v", body)
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, 10)
	view := decode[app.QuizView](t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil))

	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/learners/u1/quiz/today", "u2", nil), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/learners/u1/quiz/today", "root", nil), http.StatusNoContent)
	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/learners/u1/quiz/today", "root", nil), http.StatusNotFound)

	fresh := decode[app.QuizView](t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil))
	if fresh.Quiz.ID == view.Quiz.ID {
		t.Fatalf("expected a new quiz after reset")
	}
	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/learners/u1/history", "root", nil), http.StatusNoContent)
	expectStatus(t, srv.do(t, http.MethodGet, "/v1/quizzes/today", "u1", nil), http.StatusNoContent)

	rewards := decode[domain.RewardSettings](t, srv.do(t, http.MethodGet, "/v1/admin/rewards", "root", nil))
	if rewards.PerCorrect != 10 || rewards.CompletionBonus != 50 {
		t.Fatalf("unexpected rewards %+v", rewards)
	}
	expectStatus(t, srv.do(t, http.MethodPut, "/v1/admin/rewards", "root", domain.RewardSettings{PerCorrect: -1}), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodPut, "/v1/admin/rewards", "root", domain.RewardSettings{PerCorrect: 3, CompletionBonus: 7}), http.StatusOK)
	if got, _ := srv.settings.RewardSettings(context.Background()); got.PerCorrect != 3 || got.CompletionBonus != 7 {
		t.Fatalf("settings not stored: %+v", got)
	}
	expectStatus(t, srv.do(t, http.MethodGet, "/v1/admin/rewards", "u1", nil), http.StatusForbidden)
}

func TestAdminDropsCatalogCache(t *testing.T) {
	srv := newTestServer(t, 12)

	expectStatus(t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u2", nil), http.StatusOK)
	if got := srv.loader.loads(); got != 1 {
		t.Fatalf("expected group list cached after first load, loads=%d", got)
	}

	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/catalog/cache?group=g", "u1", nil), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/catalog/cache?group=g", "root", nil), http.StatusNoContent)

	expectStatus(t, srv.do(t, http.MethodDelete, "/v1/admin/learners/u1/quiz/today", "root", nil), http.StatusNoContent)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/quizzes/today", "u1", nil), http.StatusOK)
	if got := srv.loader.loads(); got != 2 {
		t.Fatalf("expected reload after invalidation, loads=%d", got)
	}
}

func sampleQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		id := fmt.Sprintf("q%02d", i+1)
		out[i] = domain.Question{
			ID:          id,
			CategoryID:  "cat-" + id,
			GroupIDs:    []string{"g"},
			Prompt:      "prompt " + id,
			Explanation: "because " + id,
			Options: []domain.Option{
				{Text: "wrong"},
				{Text: "right", Correct: true},
			},
			Active: true,
		}
	}
	return out
}
