package attendance

import (
	"context"
	"testing"

	"classroll/internal/calendar"
)

func TestSubmitRejectsDuplicate(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	if _, err := env.svc.Requests.Submit(ctx, "S001", day); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := env.svc.Requests.Submit(ctx, "s001", day)
	mustErr(t, err, ErrDuplicateRequest)
	reqs, _ := env.svc.Requests.List(ctx)
	if len(reqs) != 1 {
		t.Fatalf("expected queue length 1, got %d", len(reqs))
	}
}

func TestSubmitRejectsAlreadyPresent(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.present(t, "S001", "2024-06-13")
	_, err := env.svc.Requests.Submit(context.Background(), "S001", calendar.MustParse("2024-06-13"))
	mustErr(t, err, ErrDuplicateRequest)
}

func TestSubmitUnknownStudent(t *testing.T) {
	env := newEnv(t, thursday)
	_, err := env.svc.Requests.Submit(context.Background(), "NOPE", calendar.MustParse("2024-06-13"))
	mustErr(t, err, ErrNotFound)
}

func TestApproveMarksPresent(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	req, err := env.svc.Requests.Submit(ctx, "S001", day)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.svc.Requests.Approve(ctx, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Present {
		t.Fatalf("expected present after approve, got %s", got)
	}
	if pending, _ := env.svc.Requests.Pending(ctx, "S001", day); pending {
		t.Fatalf("request should be gone after approve")
	}
	_, err = env.svc.Requests.Approve(ctx, req.ID)
	mustErr(t, err, ErrNotFound)
}

func TestRejectLeavesLedger(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	req, _ := env.svc.Requests.Submit(ctx, "S001", day)
	if _, err := env.svc.Requests.Reject(ctx, req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("reject must not mark present, got %s", got)
	}
	reqs, _ := env.svc.Requests.List(ctx)
	if len(reqs) != 0 {
		t.Fatalf("expected empty queue, got %d", len(reqs))
	}
}

func TestDecisionsAreRandomAccessAndOrderIsFIFO(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001", "S002", "S003")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")

	var ids []string
	for _, s := range []string{"S001", "S002", "S003"} {
		req, err := env.svc.Requests.Submit(ctx, s, day)
		if err != nil {
			t.Fatalf("submit %s: %v", s, err)
		}
		ids = append(ids, req.ID)
	}
	if _, err := env.svc.Requests.Approve(ctx, ids[1]); err != nil {
		t.Fatalf("approve middle: %v", err)
	}
	reqs, _ := env.svc.Requests.List(ctx)
	if len(reqs) != 2 || reqs[0].StudentID != "S001" || reqs[1].StudentID != "S003" {
		t.Fatalf("unexpected queue %+v", reqs)
	}
}

func TestApproveLedgerFailureKeepsRequest(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	ctx := context.Background()
	day := calendar.MustParse("2024-06-13")
	req, err := env.svc.Requests.Submit(ctx, "S001", day)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	env.flaky.failOn(KeyLedger)
	if _, err := env.svc.Requests.Approve(ctx, req.ID); err == nil {
		t.Fatalf("expected approve to fail")
	}
	reqs, _ := env.svc.Requests.List(ctx)
	if len(reqs) != 1 || reqs[0].ID != req.ID {
		t.Fatalf("request must stay pending after a failed approve, got %+v", reqs)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("expected unmarked, got %s", got)
	}

	env.flaky.failOn(KeyRequests)
	if _, err := env.svc.Requests.Approve(ctx, req.ID); err == nil {
		t.Fatalf("expected approve to fail")
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Unmarked {
		t.Fatalf("ledger must not be written while the request stays queued, got %s", got)
	}

	env.flaky.failOn()
	if _, err := env.svc.Requests.Approve(ctx, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := env.svc.Ledger.Status(ctx, "S001", day); got != Present {
		t.Fatalf("expected present, got %s", got)
	}
}
