package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"classroll/internal/calendar"
	"classroll/internal/store"
)

// Mailer is the outbound mail relay. Each call may send an email, so callers
// gate it through the notification ledger.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PhotoUploader stores a profile photo and returns its public reference.
type PhotoUploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// Options configures a Service.
type Options struct {
	KV              store.KV
	Locker          store.Locker
	Calendar        calendar.Calendar
	Mailer          Mailer
	Photos          PhotoUploader
	DefaultPhotoRef string
	Observers       []Observer
	Logger          zerolog.Logger
}

// Service wires the attendance components over one store.
type Service struct {
	Roster        *Roster
	Ledger        *Ledger
	Requests      *RequestQueue
	Notifications *NotificationLedger
	Analyzer      *Analyzer
	Reports       *Reports
	Events        *Bus

	// regMu spans the availability check, the upload and the insert
	regMu sync.Mutex

	cal          calendar.Calendar
	mailer       Mailer
	photos       PhotoUploader
	defaultPhoto string
	log          zerolog.Logger
}

// NewService builds every component over opts.KV.
func NewService(opts Options) *Service {
	repo := NewRepository(opts.KV)
	bus := NewBus(opts.Observers...)
	cal := opts.Calendar
	if cal.Now == nil || cal.Location == nil {
		cal = calendar.New(cal.Now, cal.Location)
	}

	roster := NewRoster(repo, cal, bus)
	ledger := NewLedger(repo, cal, bus, opts.Logger)
	requests := NewRequestQueue(repo, ledger, cal, bus)
	notes := NewNotificationLedger(repo, cal, opts.Locker)
	return &Service{
		Roster:        roster,
		Ledger:        ledger,
		Requests:      requests,
		Notifications: notes,
		Analyzer:      NewAnalyzer(roster, ledger, notes, cal),
		Reports:       NewReports(roster, ledger, requests, notes, cal),
		Events:        bus,
		cal:           cal,
		mailer:        opts.Mailer,
		photos:        opts.Photos,
		defaultPhoto:  opts.DefaultPhotoRef,
		log:           opts.Logger,
	}
}

// Today is the current local calendar day.
func (s *Service) Today() calendar.Date { return s.cal.Today() }

// Registration is a self-service sign-up.
type Registration struct {
	ID        string
	Name      string
	Class     string
	Email     string
	Username  string
	Password  string
	PhotoName string
	Photo     []byte
}

// Register validates the form, uploads the photo if one was attached and
// enrols the student. Id and username are checked before the upload; an
// upload failure aborts without creating anything.
func (s *Service) Register(ctx context.Context, reg Registration) (Student, error) {
	st := Student{
		ID:       NormalizeID(reg.ID),
		Name:     strings.TrimSpace(reg.Name),
		Class:    strings.TrimSpace(reg.Class),
		Email:    strings.TrimSpace(reg.Email),
		Username: strings.TrimSpace(reg.Username),
	}
	password := strings.TrimSpace(reg.Password)
	missing := profileFields(st)
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return Student{}, &ValidationError{Fields: missing}
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	if err := s.Roster.Available(ctx, st.ID, st.Username); err != nil {
		return Student{}, err
	}

	st.Photo = s.defaultPhoto
	if len(reg.Photo) > 0 {
		if s.photos == nil {
			return Student{}, fmt.Errorf("%w: photo uploads not configured", ErrRelayFailure)
		}
		ref, err := s.photos.Upload(ctx, reg.PhotoName, reg.Photo)
		if err != nil {
			return Student{}, fmt.Errorf("%w: upload photo: %v", ErrRelayFailure, err)
		}
		st.Photo = ref
	}

	var err error
	st.PasswordHash, err = HashPassword(password)
	if err != nil {
		return Student{}, err
	}
	return s.Roster.Add(ctx, st)
}

// QuickAdd is the admin shortcut: username and password both default to the id.
func (s *Service) QuickAdd(ctx context.Context, id, name, class, email string) (Student, error) {
	id = NormalizeID(id)
	return s.Register(ctx, Registration{ID: id, Name: name, Class: class, Email: email, Username: id, Password: id})
}

// Authenticate checks student credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Student, error) {
	st, err := s.Roster.FindByUsername(ctx, username)
	if err != nil {
		return Student{}, err
	}
	if !CheckPassword(st.PasswordHash, strings.TrimSpace(password)) {
		return Student{}, fmt.Errorf("username %s: %w", username, ErrNotFound)
	}
	return st, nil
}

// Scan is the kiosk flow: toggle the typed id for the day.
func (s *Service) Scan(ctx context.Context, rawID string, day calendar.Date) (Student, Status, error) {
	st, err := s.Roster.Get(ctx, rawID)
	if err != nil {
		return Student{}, Unmarked, err
	}
	status, err := s.Ledger.Toggle(ctx, st.ID, day)
	if err != nil {
		return Student{}, Unmarked, err
	}
	return st, status, nil
}

// ErrAlreadyNotified is returned when today's alert exists or is in flight.
var ErrAlreadyNotified = errors.New("alert already sent today")

// ErrNotEligible is returned when the student's streak is below threshold.
var ErrNotEligible = errors.New("student not eligible for alert")

// AlertSubject and AlertBody format the guardian email.
func AlertSubject(studentID string) string {
	return "Attendance Warning for Student " + studentID
}

func AlertBody(studentID string, streak int) string {
	return fmt.Sprintf("Dear Guardian,\n\nStudent %s has been absent for %d consecutive school days.\nPlease contact the administration.", studentID, streak)
}

// Alert emails the student's contact about their absence streak as of today.
// The send slot is claimed before the relay is called and released on
// failure, leaving the student eligible for a retry.
func (s *Service) Alert(ctx context.Context, studentID string) (int, error) {
	st, err := s.Roster.Get(ctx, studentID)
	if err != nil {
		return 0, err
	}
	today := s.cal.Today()
	eligible, streak, err := s.Analyzer.Eligible(ctx, st.ID, today)
	if err != nil {
		return streak, err
	}
	if !eligible {
		if streak >= AbsenceThreshold {
			return streak, ErrAlreadyNotified
		}
		return streak, ErrNotEligible
	}
	if s.mailer == nil {
		return streak, fmt.Errorf("%w: mail relay not configured", ErrRelayFailure)
	}

	claim, claimed, err := s.Notifications.Claim(ctx, st.ID)
	if err != nil {
		return streak, err
	}
	if !claimed {
		return streak, ErrAlreadyNotified
	}
	defer func() {
		if err := s.Notifications.ReleaseClaim(context.WithoutCancel(ctx), claim); err != nil {
			s.log.Warn().Err(err).Str("student", st.ID).Msg("release notification claim")
		}
	}()

	if err := s.mailer.Send(ctx, st.Email, AlertSubject(st.ID), AlertBody(st.ID, streak)); err != nil {
		s.log.Warn().Err(err).Str("student", st.ID).Msg("absence alert failed")
		s.Events.Observe(ctx, Event{Type: EventNotificationFail, StudentID: st.ID, Date: today, At: s.cal.Now().UTC()})
		return streak, fmt.Errorf("%w: %v", ErrRelayFailure, err)
	}
	if err := s.Notifications.MarkSent(ctx, st.ID); err != nil {
		// the email is out; log loudly since a retry would resend it
		s.log.Error().Err(err).Str("student", st.ID).Msg("record sent alert")
		return streak, err
	}
	s.Events.Observe(ctx, Event{Type: EventNotificationSent, StudentID: st.ID, Date: today, At: s.cal.Now().UTC()})
	s.log.Info().Str("student", st.ID).Int("streak", streak).Msg("absence alert sent")
	return streak, nil
}

// Sweep alerts every eligible student as of today and returns how many were sent.
// Individual failures are logged and skipped.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cands, err := s.Analyzer.Candidates(ctx, s.cal.Today())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, c := range cands {
		if _, err := s.Alert(ctx, c.Student.ID); err != nil {
			if !errors.Is(err, ErrAlreadyNotified) {
				s.log.Warn().Err(err).Str("student", c.Student.ID).Msg("sweep alert skipped")
			}
			continue
		}
		sent++
	}
	return sent, nil
}
