package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classroll/internal/calendar"
)

// Request is a student's self-service ask to be marked present for a day.
type Request struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	Date        calendar.Date `json:"date"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// RequestQueue holds pending requests in submission order. Decisions may
// target any entry, not only the head.
type RequestQueue struct {
	repo   *Repository
	ledger *Ledger
	cal    calendar.Calendar
	bus    Observer
}

// NewRequestQueue creates a queue that approves into ledger.
func NewRequestQueue(repo *Repository, ledger *Ledger, cal calendar.Calendar, bus Observer) *RequestQueue {
	return &RequestQueue{repo: repo, ledger: ledger, cal: cal, bus: bus}
}

// Submit enqueues a request. It fails with ErrDuplicateRequest when one is
// already pending for the day or the student is already present.
func (q *RequestQueue) Submit(ctx context.Context, studentID string, day calendar.Date) (Request, error) {
	id := NormalizeID(studentID)

	q.repo.mu.Lock()
	defer q.repo.mu.Unlock()

	ok, err := q.repo.studentExists(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	p, err := q.repo.ledger(ctx)
	if err != nil {
		return Request{}, err
	}
	if p.has(id, day) {
		return Request{}, fmt.Errorf("%w: %s already present on %s", ErrDuplicateRequest, id, day)
	}
	reqs, err := q.repo.requests(ctx)
	if err != nil {
		return Request{}, err
	}
	for _, r := range reqs {
		if r.StudentID == id && r.Date == day {
			return Request{}, fmt.Errorf("%w: %s already pending for %s", ErrDuplicateRequest, id, day)
		}
	}

	req := Request{
		ID:          uuid.NewString(),
		StudentID:   id,
		Date:        day,
		SubmittedAt: q.cal.Now().UTC(),
	}
	if err := q.repo.saveRequests(ctx, append(reqs, req)); err != nil {
		return Request{}, err
	}
	q.emit(ctx, EventRequestSubmitted, req)
	return req, nil
}

// Approve removes the request and marks the student present for its day.
// A failed ledger write puts the queue back as it was.
func (q *RequestQueue) Approve(ctx context.Context, requestID string) (Request, error) {
	q.repo.mu.Lock()
	defer q.repo.mu.Unlock()

	req, _, err := q.take(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	exists, err := q.repo.studentExists(ctx, req.StudentID)
	if err != nil {
		return Request{}, err
	}
	// the purge covers req itself: at most one request per student and day
	restore, err := q.repo.purgeRequests(ctx, req.StudentID, req.Date)
	if err != nil {
		return Request{}, err
	}
	if exists {
		if err := q.ledger.writeLocked(ctx, req.StudentID, req.Date, true); err != nil {
			if rerr := restore(ctx); rerr != nil {
				q.ledger.log.Error().Err(rerr).Str("request", req.ID).Msg("restore pending requests")
			}
			return Request{}, err
		}
		q.ledger.emit(ctx, EventMarkedPresent, req.StudentID, req.Date)
	}
	q.emit(ctx, EventRequestApproved, req)
	return req, nil
}

// Reject discards the request without touching the ledger.
func (q *RequestQueue) Reject(ctx context.Context, requestID string) (Request, error) {
	q.repo.mu.Lock()
	defer q.repo.mu.Unlock()

	req, rest, err := q.take(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if err := q.repo.saveRequests(ctx, rest); err != nil {
		return Request{}, err
	}
	q.emit(ctx, EventRequestRejected, req)
	return req, nil
}

// List returns pending requests oldest first.
func (q *RequestQueue) List(ctx context.Context) ([]Request, error) {
	return q.repo.requests(ctx)
}

// Pending reports whether a request is outstanding for (studentID, day).
func (q *RequestQueue) Pending(ctx context.Context, studentID string, day calendar.Date) (bool, error) {
	reqs, err := q.repo.requests(ctx)
	if err != nil {
		return false, err
	}
	id := NormalizeID(studentID)
	for _, r := range reqs {
		if r.StudentID == id && r.Date == day {
			return true, nil
		}
	}
	return false, nil
}

// take finds requestID and returns it with the remaining queue. Callers hold repo.mu.
func (q *RequestQueue) take(ctx context.Context, requestID string) (Request, []Request, error) {
	reqs, err := q.repo.requests(ctx)
	if err != nil {
		return Request{}, nil, err
	}
	for i, r := range reqs {
		if r.ID == requestID {
			rest := make([]Request, 0, len(reqs)-1)
			rest = append(rest, reqs[:i]...)
			rest = append(rest, reqs[i+1:]...)
			return r, rest, nil
		}
	}
	return Request{}, nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
}

func purge(reqs []Request, studentID string, day calendar.Date) []Request {
	out := reqs[:0]
	for _, r := range reqs {
		if r.StudentID == studentID && r.Date == day {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (q *RequestQueue) emit(ctx context.Context, t EventType, req Request) {
	if q.bus == nil {
		return
	}
	q.bus.Observe(ctx, Event{Type: t, StudentID: req.StudentID, Date: req.Date, RequestID: req.ID, At: q.cal.Now().UTC()})
}
