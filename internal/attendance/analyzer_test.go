package attendance

import (
	"context"
	"testing"
	"time"

	"classroll/internal/calendar"
)

func TestConsecutiveAbsencesStopsAtPresent(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.present(t, "S001", "2024-06-12")

	got, err := env.svc.Analyzer.ConsecutiveAbsences(context.Background(), "S001", calendar.MustParse("2024-06-13"), 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestConsecutiveAbsencesSkipsWeekend(t *testing.T) {
	present := map[string]bool{"2024-06-06": true} // thursday
	fn := func(d calendar.Date) bool { return present[d.String()] }

	// monday 06-10 back through fri 06-07, weekend skipped, stopping at thu 06-06
	if got := CountConsecutiveAbsences(fn, calendar.MustParse("2024-06-10"), 7); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	// a sunday asOf counts nothing for itself
	if got := CountConsecutiveAbsences(fn, calendar.MustParse("2024-06-09"), 7); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestConsecutiveAbsencesBoundedByLookback(t *testing.T) {
	never := func(calendar.Date) bool { return false }
	if got := CountConsecutiveAbsences(never, calendar.MustParse("2024-06-13"), 7); got != 5 {
		t.Fatalf("expected 5 working days in 7 calendar days, got %d", got)
	}
	if got := CountConsecutiveAbsences(never, calendar.MustParse("2024-06-13"), 2); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := CountConsecutiveAbsences(never, calendar.MustParse("2024-06-13"), 0); got != 5 {
		t.Fatalf("expected default lookback, got %d", got)
	}
}

func TestPresentTodayMeansZero(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001")
	env.present(t, "S001", "2024-06-13")
	got, _ := env.svc.Analyzer.ConsecutiveAbsences(context.Background(), "S001", calendar.MustParse("2024-06-13"), 7)
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestEligibilityGate(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001", "S002")
	env.present(t, "S001", "2024-06-10") // monday; tue-thu absent
	env.present(t, "S002", "2024-06-12")
	ctx := context.Background()
	today := calendar.MustParse("2024-06-13")

	ok, streak, err := env.svc.Analyzer.Eligible(ctx, "S001", today)
	if err != nil || !ok || streak != 3 {
		t.Fatalf("expected eligible with streak 3, got ok=%v streak=%d err=%v", ok, streak, err)
	}
	// evaluating again has no side effect
	if ok, _, _ := env.svc.Analyzer.Eligible(ctx, "S001", today); !ok {
		t.Fatalf("eligibility must be re-evaluable")
	}
	if ok, _, _ := env.svc.Analyzer.Eligible(ctx, "S002", today); ok {
		t.Fatalf("S002 has a streak of 1 and should not be eligible")
	}

	if err := env.svc.Notifications.MarkSent(ctx, "S001"); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if ok, _, _ := env.svc.Analyzer.Eligible(ctx, "S001", today); ok {
		t.Fatalf("expected ineligible after mark sent")
	}

	// next calendar day: streak unchanged as of the same date, gate resets
	*env.now = thursday.Add(24 * time.Hour)
	if ok, _, _ := env.svc.Analyzer.Eligible(ctx, "S001", today); !ok {
		t.Fatalf("expected eligible again on the next day")
	}
}

func TestCandidates(t *testing.T) {
	env := newEnv(t, thursday)
	env.enroll(t, "S001", "S002", "S003")
	env.present(t, "S002", "2024-06-13")
	ctx := context.Background()
	_ = env.svc.Notifications.MarkSent(ctx, "S003")

	cands, err := env.svc.Analyzer.Candidates(ctx, calendar.MustParse("2024-06-13"))
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].Student.ID != "S001" || cands[0].Streak != 5 {
		t.Fatalf("unexpected candidates %+v", cands)
	}
}
