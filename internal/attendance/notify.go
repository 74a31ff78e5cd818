package attendance

import (
	"context"
	"time"

	"classroll/internal/calendar"
	"classroll/internal/store"
)

const claimTTL = 2 * time.Minute

// NotificationLedger records which students were alerted on which day.
type NotificationLedger struct {
	repo   *Repository
	cal    calendar.Calendar
	locker store.Locker
}

// NewNotificationLedger creates a ledger. A nil locker gets an in-process one.
func NewNotificationLedger(repo *Repository, cal calendar.Calendar, locker store.Locker) *NotificationLedger {
	if locker == nil {
		locker = store.NewMemory()
	}
	return &NotificationLedger{repo: repo, cal: cal, locker: locker}
}

// HasSentToday reports whether an alert already went out today.
func (n *NotificationLedger) HasSentToday(ctx context.Context, studentID string) (bool, error) {
	s, err := n.repo.notifications(ctx)
	if err != nil {
		return false, err
	}
	return s[NormalizeID(studentID)][n.cal.Today()], nil
}

// MarkSent records today's alert. Call only after the relay confirmed delivery.
func (n *NotificationLedger) MarkSent(ctx context.Context, studentID string) error {
	id := NormalizeID(studentID)
	today := n.cal.Today()

	n.repo.mu.Lock()
	defer n.repo.mu.Unlock()

	s, err := n.repo.notifications(ctx)
	if err != nil {
		return err
	}
	if s[id][today] {
		return nil
	}
	if s[id] == nil {
		s[id] = map[calendar.Date]bool{}
	}
	s[id][today] = true
	return n.repo.saveNotifications(ctx, s)
}

// SentTodayCount is the number of students alerted today.
func (n *NotificationLedger) SentTodayCount(ctx context.Context) (int, error) {
	sent, err := n.sentOn(ctx, n.cal.Today())
	return len(sent), err
}

func (n *NotificationLedger) sentOn(ctx context.Context, day calendar.Date) (map[string]bool, error) {
	s, err := n.repo.notifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for id, days := range s {
		if days[day] {
			out[id] = true
		}
	}
	return out, nil
}

// SendClaim is a held send slot. It remembers the key it was taken under so a
// release after midnight still frees the right slot.
type SendClaim struct {
	key   string
	token string
}

// Claim reserves today's send slot for the student. It returns false when
// another dispatch holds the slot or today's alert was already recorded.
func (n *NotificationLedger) Claim(ctx context.Context, studentID string) (SendClaim, bool, error) {
	key := n.claimKey(studentID)
	token, ok, err := n.locker.Acquire(ctx, key, claimTTL)
	if err != nil || !ok {
		return SendClaim{}, false, err
	}
	c := SendClaim{key: key, token: token}
	sent, err := n.HasSentToday(ctx, studentID)
	if err != nil || sent {
		_ = n.ReleaseClaim(ctx, c)
		return SendClaim{}, false, err
	}
	return c, true, nil
}

// ReleaseClaim frees the slot taken by Claim.
func (n *NotificationLedger) ReleaseClaim(ctx context.Context, c SendClaim) error {
	if c.key == "" {
		return nil
	}
	return n.locker.Release(ctx, c.key, c.token)
}

func (n *NotificationLedger) claimKey(studentID string) string {
	return "notify:" + NormalizeID(studentID) + ":" + n.cal.Today().String()
}
