package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"daily-quiz-service/internal/domain"
)

func TestHistoryLedgerUpsert(t *testing.T) {
	ctx := context.Background()
	ledger := NewHistoryLedger()
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(24 * time.Hour)

	if err := ledger.RecordExposure(ctx, "u1", "q1", true, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.RecordExposure(ctx, "u1", "q1", false, later); err != nil {
		t.Fatalf("record again: %v", err)
	}

	rec, err := ledger.Get(ctx, "u1", "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Exposures != 2 {
		t.Fatalf("expected 2 exposures, got %d", rec.Exposures)
	}
	if rec.EverCorrect {
		t.Fatalf("expected latest outcome to overwrite the correct flag")
	}
	if !rec.FirstSeenAt.Equal(first) || !rec.LastSeenAt.Equal(later) {
		t.Fatalf("unexpected timestamps %+v", rec)
	}
}

func TestHistoryLedgerPurge(t *testing.T) {
	ctx := context.Background()
	ledger := NewHistoryLedger()
	_ = ledger.RecordExposure(ctx, "u1", "q1", true, time.Now())
	_ = ledger.RecordExposure(ctx, "u1", "q2", true, time.Now())
	_ = ledger.RecordExposure(ctx, "u2", "q1", true, time.Now())

	seen, _ := ledger.SeenQuestionIDs(ctx, "u1")
	if len(seen) != 2 {
		t.Fatalf("expected 2 seen, got %d", len(seen))
	}

	if err := ledger.PurgeAll(ctx, "u1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	seen, _ = ledger.SeenQuestionIDs(ctx, "u1")
	if len(seen) != 0 {
		t.Fatalf("expected empty seen set after purge, got %d", len(seen))
	}
	if _, err := ledger.Get(ctx, "u1", "q1"); !errors.Is(err, domain.ErrHistoryNotFound) {
		t.Fatalf("expected not found after purge, got %v", err)
	}
	if _, err := ledger.Get(ctx, "u2", "q1"); err != nil {
		t.Fatalf("other learner's history must survive: %v", err)
	}
}
