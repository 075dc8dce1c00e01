package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

func TestClaimEvent_FirstWinsThenConflict(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedEvent{})
	ctx := context.Background()

	ok, err := ClaimEvent(ctx, db, &domain.ProcessedEvent{EventID: "evt_1", IntentKind: domain.IntentTicket, UserID: 3})
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = ClaimEvent(ctx, db, &domain.ProcessedEvent{EventID: "evt_1", IntentKind: domain.IntentTicket, UserID: 3})
	if err != nil || ok {
		t.Fatalf("second claim should lose: ok=%v err=%v", ok, err)
	}

	rec, err := GetProcessedEvent(ctx, db, "evt_1")
	if err != nil {
		t.Fatalf("GetProcessedEvent: %v", err)
	}
	if rec.Outcome != domain.OutcomePending {
		t.Fatalf("new claim outcome = %q; want pending", rec.Outcome)
	}
}

func TestClaimEvent_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedEvent{})
	ctx := context.Background()

	const n = 16
	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ClaimEvent(ctx, db, &domain.ProcessedEvent{EventID: "evt_race", IntentKind: domain.IntentMembership})
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRecordOutcome(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedEvent{})
	ctx := context.Background()

	if err := RecordOutcome(ctx, db, "missing", domain.OutcomeCompleted, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown event, got %v", err)
	}

	if _, err := ClaimEvent(ctx, db, &domain.ProcessedEvent{EventID: "evt_2", IntentKind: domain.IntentTicket}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := RecordOutcome(ctx, db, "evt_2", domain.OutcomeRejected, domain.ReasonCapacityExceeded); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	rec, err := GetProcessedEvent(ctx, db, "evt_2")
	if err != nil {
		t.Fatalf("GetProcessedEvent: %v", err)
	}
	if rec.Outcome != domain.OutcomeRejected || rec.Reason != domain.ReasonCapacityExceeded {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetProcessedEvent_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedEvent{})
	if _, err := GetProcessedEvent(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProcessedEventsPage_OrderAndFilter(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedEvent{})
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedEvent(t, db, "a", domain.OutcomeCompleted, base)
	seedEvent(t, db, "b", domain.OutcomeRejected, base.Add(time.Minute))
	seedEvent(t, db, "c", domain.OutcomeCompleted, base.Add(2*time.Minute))

	all, err := ListProcessedEventsPage(ctx, db, "", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].EventID != "c" || all[2].EventID != "a" {
		t.Fatalf("expected newest first [c b a], got %+v", all)
	}

	page, err := ListProcessedEventsPage(ctx, db, "completed", 1, 1)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(page) != 1 || page[0].EventID != "a" {
		t.Fatalf("expected second completed row to be a, got %+v", page)
	}

	n, err := CountProcessedEvents(ctx, db, " completed ")
	if err != nil || n != 2 {
		t.Fatalf("CountProcessedEvents = (%d, %v); want 2", n, err)
	}
}
