package memory

import (
	"context"
	"sync"
	"time"

	"daily-quiz-service/internal/domain"
)

// HistoryLedger is an in-memory app.HistoryLedger.
type HistoryLedger struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.HistoryRecord
}

func NewHistoryLedger() *HistoryLedger {
	return &HistoryLedger{records: make(map[string]map[string]domain.HistoryRecord)}
}

func (h *HistoryLedger) RecordExposure(_ context.Context, learnerID, questionID string, correct bool, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	byQuestion, ok := h.records[learnerID]
	if !ok {
		byQuestion = make(map[string]domain.HistoryRecord)
		h.records[learnerID] = byQuestion
	}
	rec, ok := byQuestion[questionID]
	if !ok {
		rec = domain.HistoryRecord{
			LearnerID:   learnerID,
			QuestionID:  questionID,
			FirstSeenAt: at,
		}
	}
	rec.Exposures++
	rec.EverCorrect = correct
	rec.LastSeenAt = at
	byQuestion[questionID] = rec
	return nil
}

func (h *HistoryLedger) SeenQuestionIDs(_ context.Context, learnerID string) (map[string]struct{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{}, len(h.records[learnerID]))
	for id := range h.records[learnerID] {
		seen[id] = struct{}{}
	}
	return seen, nil
}

func (h *HistoryLedger) Get(_ context.Context, learnerID, questionID string) (domain.HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.records[learnerID][questionID]
	if !ok {
		return domain.HistoryRecord{}, domain.ErrHistoryNotFound
	}
	return rec, nil
}

func (h *HistoryLedger) PurgeAll(_ context.Context, learnerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, learnerID)
	return nil
}
