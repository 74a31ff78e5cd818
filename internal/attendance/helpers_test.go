package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"classroll/internal/calendar"
	"classroll/internal/store"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// slowMailer holds each send open for delay, widening the window in which a
// second dispatcher could slip past the claim.
type slowMailer struct {
	fakeMailer
	delay time.Duration
}

func (m *slowMailer) Send(ctx context.Context, to, subject, body string) error {
	time.Sleep(m.delay)
	return m.fakeMailer.Send(ctx, to, subject, body)
}

// flakyKV fails Save for the keys passed to failOn.
type flakyKV struct {
	store.KV
	mu   sync.Mutex
	fail map[string]bool
}

func (f *flakyKV) failOn(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = map[string]bool{}
	for _, k := range keys {
		f.fail[k] = true
	}
}

func (f *flakyKV) Save(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	failing := f.fail[key]
	f.mu.Unlock()
	if failing {
		return context.DeadlineExceeded
	}
	return f.KV.Save(ctx, key, value)
}

type fakePhotos struct {
	err   error
	calls int
}

func (p *fakePhotos) Upload(_ context.Context, filename string, _ []byte) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "https://cdn.test/" + filename, nil
}

type testEnv struct {
	svc    *Service
	kv     *store.Memory
	flaky  *flakyKV
	mailer *fakeMailer
	photos *fakePhotos
	now    *time.Time
	events []Event
}

// newEnv builds a service whose clock reads *env.now.
func newEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	env := &testEnv{kv: store.NewMemory(), mailer: &fakeMailer{}, photos: &fakePhotos{}}
	env.flaky = &flakyKV{KV: env.kv}
	env.now = &now
	clock := func() time.Time { return *env.now }
	env.svc = NewService(Options{
		KV:              env.flaky,
		Locker:          env.kv,
		Calendar:        calendar.New(clock, time.UTC),
		Mailer:          env.mailer,
		Photos:          env.photos,
		DefaultPhotoRef: "default.png",
		Observers: []Observer{ObserverFunc(func(_ context.Context, e Event) {
			env.events = append(env.events, e)
		})},
		Logger: zerolog.Nop(),
	})
	return env
}

func (e *testEnv) enroll(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := e.svc.QuickAdd(context.Background(), id, "Student "+id, "10A", id+"@school.test"); err != nil {
			t.Fatalf("enroll %s: %v", id, err)
		}
	}
}

func (e *testEnv) present(t *testing.T, id string, days ...string) {
	t.Helper()
	for _, d := range days {
		if err := e.svc.Ledger.SetPresent(context.Background(), id, calendar.MustParse(d)); err != nil {
			t.Fatalf("set present %s %s: %v", id, d, err)
		}
	}
}

func mustErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// thursday 2024-06-13 10:00 UTC
var thursday = time.Date(2024, 6, 13, 10, 0, 0, 0, time.UTC)
