package attendance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"classroll/internal/calendar"
)

var idPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Student is one enrolled learner. ID is fixed at registration.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Class        string    `json:"class"`
	Email        string    `json:"email"`
	Photo        string    `json:"photo"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the mutable fields of a student. Empty fields are left unchanged.
type Profile struct {
	Name  string
	Class string
	Email string
	Photo string
}

// NormalizeID trims and uppercases a student id as typed at a kiosk.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Roster holds the enrolled students.
type Roster struct {
	repo *Repository
	bus  Observer
	cal  calendar.Calendar
}

// NewRoster creates a roster over repo.
func NewRoster(repo *Repository, cal calendar.Calendar, bus Observer) *Roster {
	return &Roster{repo: repo, cal: cal, bus: bus}
}

// profileFields lists the missing or invalid identity and profile fields.
// Credentials are checked by the caller.
func profileFields(s Student) []string {
	var missing []string
	if s.ID == "" || !idPattern.MatchString(s.ID) {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Class) == "" {
		missing = append(missing, "class")
	}
	if strings.TrimSpace(s.Email) == "" || !strings.Contains(s.Email, "@") {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	return missing
}

func validateStudent(s Student) error {
	missing := profileFields(s)
	if s.PasswordHash == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// conflict reports whether s collides with an enrolled id or username.
func conflict(students []Student, s Student) error {
	for _, existing := range students {
		if existing.ID == s.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		if existing.Username == s.Username {
			return &ValidationError{Fields: []string{"username"}}
		}
	}
	return nil
}

// Available checks that id and username are both free.
func (r *Roster) Available(ctx context.Context, id, username string) error {
	students, err := r.repo.roster(ctx)
	if err != nil {
		return err
	}
	return conflict(students, Student{ID: NormalizeID(id), Username: strings.TrimSpace(username)})
}

// Add enrols s. The id is normalised; an existing id or username is rejected.
func (r *Roster) Add(ctx context.Context, s Student) (Student, error) {
	s.ID = NormalizeID(s.ID)
	s.Username = strings.TrimSpace(s.Username)
	if err := validateStudent(s); err != nil {
		return Student{}, err
	}

	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()

	students, err := r.repo.roster(ctx)
	if err != nil {
		return Student{}, err
	}
	if err := conflict(students, s); err != nil {
		return Student{}, err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.cal.Now().UTC()
	}
	students = append(students, s)
	if err := r.repo.saveRoster(ctx, students); err != nil {
		return Student{}, err
	}
	r.emit(ctx, EventStudentRegistered, s.ID)
	return s, nil
}

// Get returns a student by id.
func (r *Roster) Get(ctx context.Context, id string) (Student, error) {
	id = NormalizeID(id)
	students, err := r.repo.roster(ctx)
	if err != nil {
		return Student{}, err
	}
	for _, s := range students {
		if s.ID == id {
			return s, nil
		}
	}
	return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
}

// FindByUsername returns the student with the given login name.
func (r *Roster) FindByUsername(ctx context.Context, username string) (Student, error) {
	username = strings.TrimSpace(username)
	students, err := r.repo.roster(ctx)
	if err != nil {
		return Student{}, err
	}
	for _, s := range students {
		if s.Username == username {
			return s, nil
		}
	}
	return Student{}, fmt.Errorf("username %s: %w", username, ErrNotFound)
}

// List returns students in enrolment order.
func (r *Roster) List(ctx context.Context) ([]Student, error) {
	return r.repo.roster(ctx)
}

// Exists reports whether id is enrolled.
func (r *Roster) Exists(ctx context.Context, id string) (bool, error) {
	return r.repo.studentExists(ctx, NormalizeID(id))
}

// Update changes profile fields.
func (r *Roster) Update(ctx context.Context, id string, p Profile) (Student, error) {
	id = NormalizeID(id)
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return Student{}, &ValidationError{Fields: []string{"email"}}
	}

	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()

	students, err := r.repo.roster(ctx)
	if err != nil {
		return Student{}, err
	}
	for i := range students {
		if students[i].ID != id {
			continue
		}
		s := &students[i]
		if p.Name != "" {
			s.Name = strings.TrimSpace(p.Name)
		}
		if p.Class != "" {
			s.Class = strings.TrimSpace(p.Class)
		}
		if p.Email != "" {
			s.Email = strings.TrimSpace(p.Email)
		}
		if p.Photo != "" {
			s.Photo = p.Photo
		}
		if err := r.repo.saveRoster(ctx, students); err != nil {
			return Student{}, err
		}
		r.emit(ctx, EventStudentUpdated, id)
		return *s, nil
	}
	return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
}

// Remove deletes a student along with its ledger, notification and pending
// request entries.
func (r *Roster) Remove(ctx context.Context, id string) error {
	id = NormalizeID(id)

	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()

	students, err := r.repo.roster(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, s := range students {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("student %s: %w", id, ErrNotFound)
	}

	ledger, err := r.repo.ledger(ctx)
	if err != nil {
		return err
	}
	sent, err := r.repo.notifications(ctx)
	if err != nil {
		return err
	}
	reqs, err := r.repo.requests(ctx)
	if err != nil {
		return err
	}

	// dependents before the roster entry, so a partial failure keeps the student removable
	if _, ok := ledger[id]; ok {
		delete(ledger, id)
		if err := r.repo.saveLedger(ctx, ledger); err != nil {
			return err
		}
	}
	if _, ok := sent[id]; ok {
		delete(sent, id)
		if err := r.repo.saveNotifications(ctx, sent); err != nil {
			return err
		}
	}
	kept := reqs[:0]
	for _, req := range reqs {
		if req.StudentID != id {
			kept = append(kept, req)
		}
	}
	if len(kept) != len(reqs) {
		if err := r.repo.saveRequests(ctx, kept); err != nil {
			return err
		}
	}
	students = append(students[:idx], students[idx+1:]...)
	if err := r.repo.saveRoster(ctx, students); err != nil {
		return err
	}
	r.emit(ctx, EventStudentRemoved, id)
	return nil
}

func (r *Roster) emit(ctx context.Context, t EventType, id string) {
	if r.bus == nil {
		return
	}
	r.bus.Observe(ctx, Event{Type: t, StudentID: id, At: r.cal.Now().UTC()})
}
