package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"classroll/internal/calendar"
	"classroll/internal/store"
)

// Persistence keys, one saved collection each.
const (
	KeyRoster        = "roster"
	KeyLedger        = "ledger"
	KeyRequests      = "request-queue"
	KeyNotifications = "notification-ledger"
)

// presence is the persisted ledger: student id -> day -> present.
type presence map[string]map[calendar.Date]bool

func (p presence) has(studentID string, day calendar.Date) bool {
	return p[studentID][day]
}

// sentLog is the persisted notification ledger: student id -> day -> sent.
type sentLog map[string]map[calendar.Date]bool

// Repository persists attendance collections in a key-value store. Every
// collection is read fresh and written back whole; mu serialises those
// read-modify-write cycles within the process.
type Repository struct {
	kv store.KV
	mu sync.Mutex
}

// NewRepository creates a repo over kv.
func NewRepository(kv store.KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) load(ctx context.Context, key string, dst any) error {
	raw, err := r.kv.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (r *Repository) roster(ctx context.Context) ([]Student, error) {
	var students []Student
	err := r.load(ctx, KeyRoster, &students)
	return students, err
}

func (r *Repository) saveRoster(ctx context.Context, students []Student) error {
	if students == nil {
		students = []Student{}
	}
	return r.save(ctx, KeyRoster, students)
}

func (r *Repository) ledger(ctx context.Context) (presence, error) {
	p := presence{}
	err := r.load(ctx, KeyLedger, &p)
	return p, err
}

func (r *Repository) saveLedger(ctx context.Context, p presence) error {
	return r.save(ctx, KeyLedger, p)
}

func (r *Repository) requests(ctx context.Context) ([]Request, error) {
	var reqs []Request
	err := r.load(ctx, KeyRequests, &reqs)
	return reqs, err
}

func (r *Repository) saveRequests(ctx context.Context, reqs []Request) error {
	if reqs == nil {
		reqs = []Request{}
	}
	return r.save(ctx, KeyRequests, reqs)
}

func (r *Repository) notifications(ctx context.Context) (sentLog, error) {
	s := sentLog{}
	err := r.load(ctx, KeyNotifications, &s)
	return s, err
}

func (r *Repository) saveNotifications(ctx context.Context, s sentLog) error {
	return r.save(ctx, KeyNotifications, s)
}

func (r *Repository) studentExists(ctx context.Context, id string) (bool, error) {
	students, err := r.roster(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range students {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// purgeRequests drops pending requests for (studentID, day). The returned
// restore func writes the previous queue back; it is a no-op when nothing was
// removed. Callers hold mu.
func (r *Repository) purgeRequests(ctx context.Context, studentID string, day calendar.Date) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	reqs, err := r.requests(ctx)
	if err != nil {
		return noop, err
	}
	prev := append([]Request(nil), reqs...)
	kept := purge(reqs, studentID, day)
	if len(kept) == len(prev) {
		return noop, nil
	}
	if err := r.saveRequests(ctx, kept); err != nil {
		return noop, err
	}
	return func(ctx context.Context) error { return r.saveRequests(ctx, prev) }, nil
}
