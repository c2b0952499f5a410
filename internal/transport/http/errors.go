package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"daily-quiz-service/internal/domain"
)

type errorBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Reason   string `json:"reason,omitempty"`
	Eligible *int   `json:"eligible,omitempty"`
	Unseen   *int   `json:"unseen,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrQuizNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrLearnerNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrAlreadyCompletedToday, http.StatusConflict, "already_completed_today"},
	{domain.ErrAlreadyFinished, http.StatusConflict, "already_finished"},
	{domain.ErrSlotAnswered, http.StatusConflict, "slot_already_answered"},
	{domain.ErrInvalidSlot, http.StatusBadRequest, "invalid_slot"},
	{domain.ErrInvalidOption, http.StatusBadRequest, "invalid_option"},
}

// statusFor maps an engine error onto an HTTP status and body.
func statusFor(err error) (int, errorBody) {
	var shortage *domain.InsufficientQuestionsError
	if errors.As(err, &shortage) {
		eligible, unseen := shortage.Eligible, shortage.Unseen
		return http.StatusUnprocessableEntity, errorBody{
			Error:    shortage.Error(),
			Code:     "insufficient_questions",
			Reason:   string(shortage.Reason),
			Eligible: &eligible,
			Unseen:   &unseen,
		}
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, errorBody{Error: c.err.Error(), Code: c.code}
		}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	case status == http.StatusUnprocessableEntity:
		h.log.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
