package attendance

import (
	"context"

	"classroll/internal/calendar"
)

const (
	// AbsenceThreshold is the streak length that makes a student alertable.
	AbsenceThreshold = 3
	// DefaultLookback is the number of calendar days scanned backward.
	DefaultLookback = 7
)

// CountConsecutiveAbsences walks back from asOf (inclusive) over lookback
// calendar days. Rest days are skipped without breaking the streak; every
// unmarked working day adds one; the first present working day stops the walk.
func CountConsecutiveAbsences(present func(calendar.Date) bool, asOf calendar.Date, lookback int) int {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	count := 0
	day := asOf
	for i := 0; i < lookback; i, day = i+1, day.AddDays(-1) {
		if day.IsRestDay() {
			continue
		}
		if present(day) {
			break
		}
		count++
	}
	return count
}

// Candidate is a student currently eligible for an absence alert.
type Candidate struct {
	Student Student       `json:"student"`
	Streak  int           `json:"streak"`
	AsOf    calendar.Date `json:"as_of"`
}

// Analyzer derives absence streaks from the ledger. It never writes.
type Analyzer struct {
	roster        *Roster
	ledger        *Ledger
	notifications *NotificationLedger
	cal           calendar.Calendar
}

// NewAnalyzer wires an analyzer.
func NewAnalyzer(roster *Roster, ledger *Ledger, notifications *NotificationLedger, cal calendar.Calendar) *Analyzer {
	return &Analyzer{roster: roster, ledger: ledger, notifications: notifications, cal: cal}
}

// ConsecutiveAbsences counts the student's current absence streak as of asOf.
func (a *Analyzer) ConsecutiveAbsences(ctx context.Context, studentID string, asOf calendar.Date, lookback int) (int, error) {
	snap, err := a.ledger.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	id := NormalizeID(studentID)
	return CountConsecutiveAbsences(func(d calendar.Date) bool {
		return snap.Status(id, d) == Present
	}, asOf, lookback), nil
}

// Eligible reports whether the student should be alerted: a streak of at
// least AbsenceThreshold as of asOf and no alert sent today. It returns the
// streak either way.
func (a *Analyzer) Eligible(ctx context.Context, studentID string, asOf calendar.Date) (bool, int, error) {
	streak, err := a.ConsecutiveAbsences(ctx, studentID, asOf, DefaultLookback)
	if err != nil {
		return false, 0, err
	}
	if streak < AbsenceThreshold {
		return false, streak, nil
	}
	sent, err := a.notifications.HasSentToday(ctx, studentID)
	if err != nil {
		return false, streak, err
	}
	return !sent, streak, nil
}

// Candidates lists every eligible student as of asOf in roster order.
func (a *Analyzer) Candidates(ctx context.Context, asOf calendar.Date) ([]Candidate, error) {
	students, err := a.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := a.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := a.notifications.sentOn(ctx, a.cal.Today())
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, s := range students {
		id := s.ID
		streak := CountConsecutiveAbsences(func(d calendar.Date) bool {
			return snap.Status(id, d) == Present
		}, asOf, DefaultLookback)
		if streak >= AbsenceThreshold && !sent[id] {
			out = append(out, Candidate{Student: s, Streak: streak, AsOf: asOf})
		}
	}
	return out, nil
}
