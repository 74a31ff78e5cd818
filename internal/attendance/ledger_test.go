package attendance

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"classroll/internal/calendar"
)

func TestLedgerSetClearRoundTrip(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("expected unmarked, got %s", got)
	}
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day); err != nil {
		t.Fatalf("set present: %v", err)
	}
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day); err != nil {
		t.Fatalf("set present twice: %v", err)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Present {
		t.Fatalf("expected present, got %s", got)
	}
	if err := env.svc.Ledger.Clear(ctx, "S001", day); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := env.svc.Ledger.Clear(ctx, "S001", day); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("expected unmarked after clear, got %s", got)
	}
}

func TestLedgerToggleIsInvolution(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001", "S002")
	env.present(t, "S002", "2024-06-13")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	for _, id := range []string{"S001", "S002"} {
		before := env.svc.Ledger.Status(ctx, id, day)
		first, err := env.svc.Ledger.Toggle(ctx, id, day)
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if first == before {
			t.Fatalf("%s: toggle did not change status", id)
		}
		second, err := env.svc.Ledger.Toggle(ctx, id, day)
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if second != before {
			t.Fatalf("%s: expected %s after double toggle, got %s", id, before, second)
		}
	}
}

func TestLedgerUnknownStudent(t *testing.T) {
	env := newEnv(t, thursday)
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	if got := env.svc.Ledger.Status(ctx, "GHOST", day); got != Unmarked {
		t.Fatalf("expected unmarked for unknown student")
	}
	mustErr(t, env.svc.Ledger.SetPresent(ctx, "GHOST", day), ErrNotFound)
	_, err := env.svc.Ledger.Toggle(ctx, "ghost", day)
	mustErr(t, err, ErrNotFound)
}

func TestLedgerMarkPurgesPendingRequest(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	if _, err := env.svc.Requests.Submit(ctx, "S001", day); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.svc.Requests.Submit(ctx, "S001", day.AddDays(1)); err != nil {
		t.Fatalf("submit next day: %v", err)
	}
	if err := env.svc.Ledger.Clear(ctx, "S001", day); err != nil {
		t.Fatalf("clear: %v", err)
	}
	reqs, _ := env.svc.Requests.List(ctx)
	if len(reqs) != 1 || reqs[0].Date != day.AddDays(1) {
		t.Fatalf("expected only next-day request to remain, got %+v", reqs)
	}
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day.AddDays(1)); err != nil {
		t.Fatalf("set present: %v", err)
	}
	reqs, _ = env.svc.Requests.List(ctx)
	if len(reqs) != 0 {
		t.Fatalf("expected queue empty, got %+v", reqs)
	}
}

func TestLedgerFailedWriteKeepsRequestAndMarkApart(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")
	if _, err := env.svc.Requests.Submit(ctx, "S001", day); err != nil {
		t.Fatalf("submit: %v", err)
	}

	env.flaky.failOn(KeyRequests)
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day); err == nil {
		t.Fatalf("expected error when the request queue cannot be saved")
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("mark must not land when the purge failed, got %s", got)
	}

	env.flaky.failOn(KeyLedger)
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day); err == nil {
		t.Fatalf("expected error when the ledger cannot be saved")
	}
	if pending, _ := env.svc.Requests.Pending(ctx, "S001", day); !pending {
		t.Fatalf("purged request must be restored after a failed ledger write")
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("expected unmarked, got %s", got)
	}

	env.flaky.failOn()
	if err := env.svc.Ledger.SetPresent(ctx, "S001", day); err != nil {
		t.Fatalf("set present: %v", err)
	}
	if pending, _ := env.svc.Requests.Pending(ctx, "S001", day); pending {
		t.Fatalf("request should be purged once the mark lands")
	}
}

func TestSnapshotStatusNormalisesID(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.present(t, "S001", "2024-06-12")
	snap, err := env.svc.Ledger.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := snap.Status(" s001 ", calendar.MustParse("2024-06-12")); got != Present {
		t.Fatalf("expected present for a lowercase id, got %s", got)
	}
}

func TestLedgerMutationIsDurable(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.present(t, "S001", "2024-06-12")

	raw, err := env.kv.Load(context.Background(), KeyLedger)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(raw) != `{"S001":{"2024-06-12":true}}` {
		t.Fatalf("unexpected persisted ledger %s", raw)
	}

	// A second service over the same store sees the write.
	other := NewService(Options{KV: env.kv, Calendar: env.svc.cal, Logger: zerolog.Nop()})
	if got := other.Ledger.Status(context.Background(), "S001", calendar.MustParse("2024-06-12")); got != Present {
		t.Fatalf("expected present from fresh service, got %s", got)
	}
}

func TestLedgerEmitsEvents(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.events = nil
	if _, err := env.svc.Ledger.Toggle(context.Background(), "S001", calendar.MustParse("2024-06-13")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(env.events) != 1 || env.events[0].Type != EventMarkedPresent || env.events[0].StudentID != "S001" {
		t.Fatalf("unexpected events %+v", env.events)
	}
}
