package attendance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"classroll/internal/calendar"
)

// Status is a student's recorded state for one day. Absence is never stored;
// it is the lack of a Present entry.
type Status string

const (
	Present  Status = "present"
	Unmarked Status = "unmarked"
)

// Ledger is the authoritative per-student per-day attendance record.
type Ledger struct {
	repo *Repository
	cal  calendar.Calendar
	bus  Observer
	log  zerolog.Logger
}

// NewLedger creates a ledger over repo.
func NewLedger(repo *Repository, cal calendar.Calendar, bus Observer, log zerolog.Logger) *Ledger {
	return &Ledger{repo: repo, cal: cal, bus: bus, log: log}
}

// Status never fails: unknown students, days or an unreadable store yield Unmarked.
func (l *Ledger) Status(ctx context.Context, studentID string, day calendar.Date) Status {
	p, err := l.repo.ledger(ctx)
	if err != nil {
		l.log.Error().Err(err).Str("student", studentID).Stringer("date", day).Msg("ledger read failed")
		return Unmarked
	}
	if p.has(NormalizeID(studentID), day) {
		return Present
	}
	return Unmarked
}

// SetPresent marks the student present. Any pending request for the same day
// is dropped since the direct mark supersedes it.
func (l *Ledger) SetPresent(ctx context.Context, studentID string, day calendar.Date) error {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	return l.setLocked(ctx, NormalizeID(studentID), day, true)
}

// Clear reverts the student to Unmarked and drops pending requests for the day.
func (l *Ledger) Clear(ctx context.Context, studentID string, day calendar.Date) error {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	return l.setLocked(ctx, NormalizeID(studentID), day, false)
}

// Toggle flips the status and returns the new one.
func (l *Ledger) Toggle(ctx context.Context, studentID string, day calendar.Date) (Status, error) {
	id := NormalizeID(studentID)

	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()

	p, err := l.repo.ledger(ctx)
	if err != nil {
		return Unmarked, err
	}
	present := !p.has(id, day)
	if err := l.setLocked(ctx, id, day, present); err != nil {
		return Unmarked, err
	}
	if present {
		return Present, nil
	}
	return Unmarked, nil
}

func (l *Ledger) setLocked(ctx context.Context, id string, day calendar.Date, present bool) error {
	ok, err := l.repo.studentExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	// requests before the ledger, so Present and a pending request for the
	// same day never persist together
	restore, err := l.repo.purgeRequests(ctx, id, day)
	if err != nil {
		return err
	}
	if err := l.writeLocked(ctx, id, day, present); err != nil {
		if rerr := restore(ctx); rerr != nil {
			l.log.Error().Err(rerr).Str("student", id).Stringer("date", day).Msg("restore pending requests")
		}
		return err
	}
	evt := EventCleared
	if present {
		evt = EventMarkedPresent
	}
	l.emit(ctx, evt, id, day)
	return nil
}

// writeLocked changes only the ledger collection. Callers hold repo.mu.
func (l *Ledger) writeLocked(ctx context.Context, id string, day calendar.Date, present bool) error {
	p, err := l.repo.ledger(ctx)
	if err != nil {
		return err
	}
	if p.has(id, day) == present {
		return nil
	}
	if present {
		if p[id] == nil {
			p[id] = map[calendar.Date]bool{}
		}
		p[id][day] = true
	} else {
		delete(p[id], day)
		if len(p[id]) == 0 {
			delete(p, id)
		}
	}
	return l.repo.saveLedger(ctx, p)
}

func (l *Ledger) emit(ctx context.Context, t EventType, id string, day calendar.Date) {
	if l.bus == nil {
		return
	}
	l.bus.Observe(ctx, Event{Type: t, StudentID: id, Date: day, At: l.cal.Now().UTC()})
}

// Snapshot is a read-only view of the ledger taken at one instant.
type Snapshot struct {
	p presence
}

// Snapshot loads the whole ledger once for bulk reads.
func (l *Ledger) Snapshot(ctx context.Context) (Snapshot, error) {
	p, err := l.repo.ledger(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{p: p}, nil
}

// Status reads from the snapshot.
func (s Snapshot) Status(studentID string, day calendar.Date) Status {
	if s.p.has(NormalizeID(studentID), day) {
		return Present
	}
	return Unmarked
}
