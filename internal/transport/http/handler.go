package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/logger"
	"github.com/gorilla/websocket"
)

// LearnerHeader carries the caller identity set by the upstream identity service.
const LearnerHeader = "X-Learner-ID"

// RewardSettingsStore is the live reward configuration the admin API edits.
type RewardSettingsStore interface {
	RewardSettings(ctx context.Context) (domain.RewardSettings, error)
	SetRewardSettings(ctx context.Context, settings domain.RewardSettings) error
}

// CatalogInvalidator drops cached question lists after catalog edits.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, groupIDs ...string) error
}

// Subscriber hands out per-learner event streams.
type Subscriber interface {
	Subscribe(learnerID string) (<-chan domain.Event, func())
}

type Handler struct {
	service  *app.QuizService
	settings RewardSettingsStore
	events   Subscriber
	catalog  CatalogInvalidator
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service *app.QuizService, settings RewardSettingsStore, catalog CatalogInvalidator, events Subscriber, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		service:  service,
		settings: settings,
		events:   events,
		catalog:  catalog,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the quiz API on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/quizzes/today", h.generate)
	mux.HandleFunc("GET /v1/quizzes/today", h.current)
	mux.HandleFunc("POST /v1/quizzes/{id}/answers", h.answer)
	mux.HandleFunc("GET /v1/rating", h.rating)
	mux.HandleFunc("GET /v1/results", h.results)
	mux.HandleFunc("DELETE /v1/admin/learners/{id}/quiz/today", h.admin(h.resetToday))
	mux.HandleFunc("DELETE /v1/admin/learners/{id}/history", h.admin(h.resetAll))
	mux.HandleFunc("GET /v1/admin/rewards", h.admin(h.getRewards))
	mux.HandleFunc("PUT /v1/admin/rewards", h.admin(h.putRewards))
	mux.HandleFunc("DELETE /v1/admin/catalog/cache", h.admin(h.dropCatalogCache))
	mux.HandleFunc("GET /ws", h.ServeWS)
}

var errMissingIdentity = errors.New("missing " + LearnerHeader + " header")

func callerID(r *http.Request) string {
	return r.Header.Get(LearnerHeader)
}

// withCaller rejects requests without an identity header.
func (h *Handler) withCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := callerID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errMissingIdentity.Error(), Code: "unauthenticated"})
		return "", false
	}
	return id, true
}

func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.withCaller(w, r)
		if !ok {
			return
		}
		caller, err := h.service.Learner(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !caller.IsAdmin() {
			h.writeError(w, r, domain.ErrForbidden)
			return
		}
		next(w, r)
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.withCaller(w, r)
	if !ok {
		return
	}
	quiz, err := h.service.Generate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.View(r.Context(), quiz)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	id, ok := h.withCaller(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetCurrent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerRequest struct {
	Slot   *int `json:"slot"`
	Option *int `json:"option"`
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.withCaller(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slot == nil || req.Option == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be {\"slot\": int, \"option\": int}", Code: "bad_request"})
		return
	}
	outcome, err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), *req.Slot, *req.Option, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) rating(w http.ResponseWriter, r *http.Request) {
	id, ok := h.withCaller(w, r)
	if !ok {
		return
	}
	position, err := h.service.RatingPosition(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	id, ok := h.withCaller(w, r)
	if !ok {
		return
	}
	results, err := h.service.ListResults(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.TestResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) resetToday(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetToday(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetAll(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRewards(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.RewardSettings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) putRewards(w http.ResponseWriter, r *http.Request) {
	var settings domain.RewardSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil || settings.PerCorrect < 0 || settings.CompletionBonus < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "rates must be non-negative integers", Code: "bad_request"})
		return
	}
	if err := h.settings.SetRewardSettings(r.Context(), settings); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info("reward settings updated", "per_correct", settings.PerCorrect, "completion_bonus", settings.CompletionBonus)
	writeJSON(w, http.StatusOK, settings)
}

// dropCatalogCache invalidates the groups named by ?group= (repeatable)
// together with the whole-catalog list.
func (h *Handler) dropCatalogCache(w http.ResponseWriter, r *http.Request) {
	groups := r.URL.Query()["group"]
	if err := h.catalog.Invalidate(r.Context(), groups...); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info("catalog cache invalidated", "groups", groups)
	w.WriteHeader(http.StatusNoContent)
}
