package attendance

import (
	"context"
	"fmt"
	"time"

	"classroll/internal/calendar"
)

// Cell is one student-day in a monthly grid.
type Cell string

const (
	CellPresent Cell = "present"
	CellAbsent  Cell = "absent"
	CellBlank   Cell = "blank"
)

// DayHeader classifies one column of the grid.
type DayHeader struct {
	Day     int           `json:"day"`
	Date    calendar.Date `json:"date"`
	Weekday string        `json:"weekday"`
	Rest    bool          `json:"rest"`
}

// ReportRow is one student's month.
type ReportRow struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	Cells        []Cell `json:"cells"`
	PresentCount int    `json:"present_count"`
	AbsentCount  int    `json:"absent_count"`
}

// MonthlyReport is the attendance grid for a calendar month.
type MonthlyReport struct {
	Year        int           `json:"year"`
	Month       time.Month    `json:"month"`
	Title       string        `json:"title"`
	WorkingDays int           `json:"working_days"`
	Header      []DayHeader   `json:"header"`
	Rows        []ReportRow   `json:"rows"`
	Students    int           `json:"students"`
	Today       calendar.Date `json:"today"`
}

// classify applies the unmarked-day policy: an unmarked working day strictly
// before today is absent; rest days, today and later stay blank. Only working
// days are tallied.
func classify(present bool, day, today calendar.Date) (cell Cell, tallyPresent, tallyAbsent bool) {
	switch {
	case present:
		return CellPresent, day.IsWorkingDay(), false
	case day.IsRestDay():
		return CellBlank, false, false
	case day.Before(today):
		return CellAbsent, false, true
	default:
		return CellBlank, false, false
	}
}

// Reports synthesises read-only views over the roster and ledger.
type Reports struct {
	roster   *Roster
	ledger   *Ledger
	requests *RequestQueue
	notes    *NotificationLedger
	cal      calendar.Calendar
}

// NewReports wires the report synthesizer.
func NewReports(roster *Roster, ledger *Ledger, requests *RequestQueue, notes *NotificationLedger, cal calendar.Calendar) *Reports {
	return &Reports{roster: roster, ledger: ledger, requests: requests, notes: notes, cal: cal}
}

// BuildMonthly builds the grid for year/month.
func (r *Reports) BuildMonthly(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	if month < time.January || month > time.December {
		return MonthlyReport{}, &ValidationError{Fields: []string{"month"}}
	}
	students, err := r.roster.List(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	snap, err := r.ledger.Snapshot(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	today := r.cal.Today()
	days := calendar.MonthDays(year, month)

	rep := MonthlyReport{
		Year:        year,
		Month:       month,
		Title:       fmt.Sprintf("Report for %s %d", month, year),
		WorkingDays: calendar.WorkingDaysIn(year, month),
		Header:      make([]DayHeader, 0, len(days)),
		Rows:        make([]ReportRow, 0, len(students)),
		Students:    len(students),
		Today:       today,
	}
	for _, d := range days {
		rep.Header = append(rep.Header, DayHeader{
			Day:     d.Day,
			Date:    d,
			Weekday: d.Weekday().String()[:3],
			Rest:    d.IsRestDay(),
		})
	}
	for _, s := range students {
		row := ReportRow{StudentID: s.ID, Name: s.Name, Class: s.Class, Cells: make([]Cell, 0, len(days))}
		for _, d := range days {
			cell, p, a := classify(snap.Status(s.ID, d) == Present, d, today)
			row.Cells = append(row.Cells, cell)
			if p {
				row.PresentCount++
			}
			if a {
				row.AbsentCount++
			}
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// Filter narrows the daily sheet.
type Filter string

const (
	FilterAll     Filter = ""
	FilterPresent Filter = "present"
	FilterAbsent  Filter = "absent"
)

// ParseFilter accepts "", "all", "present" or "absent".
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case "present":
		return FilterPresent, nil
	case "absent":
		return FilterAbsent, nil
	}
	return FilterAll, &ValidationError{Fields: []string{"filter"}}
}

// SheetEntry is one student's line on the daily sheet.
type SheetEntry struct {
	Student Student `json:"student"`
	Status  Status  `json:"status"`
	Pending bool    `json:"pending"`
}

// DailySheet is the admin view of a single day.
type DailySheet struct {
	Date              calendar.Date `json:"date"`
	Total             int           `json:"total"`
	Present           int           `json:"present"`
	Absent            int           `json:"absent"`
	NotificationsSent int           `json:"notifications_sent"`
	Entries           []SheetEntry  `json:"entries"`
}

// Daily builds the day view. Totals always cover the whole roster; the filter
// only narrows Entries.
func (r *Reports) Daily(ctx context.Context, day calendar.Date, filter Filter) (DailySheet, error) {
	students, err := r.roster.List(ctx)
	if err != nil {
		return DailySheet{}, err
	}
	snap, err := r.ledger.Snapshot(ctx)
	if err != nil {
		return DailySheet{}, err
	}
	reqs, err := r.requests.List(ctx)
	if err != nil {
		return DailySheet{}, err
	}
	pending := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if req.Date == day {
			pending[req.StudentID] = true
		}
	}
	sent, err := r.notes.SentTodayCount(ctx)
	if err != nil {
		return DailySheet{}, err
	}

	sheet := DailySheet{Date: day, Total: len(students), NotificationsSent: sent, Entries: []SheetEntry{}}
	for _, s := range students {
		st := snap.Status(s.ID, day)
		if st == Present {
			sheet.Present++
		} else {
			sheet.Absent++
		}
		if (filter == FilterPresent && st != Present) || (filter == FilterAbsent && st == Present) {
			continue
		}
		sheet.Entries = append(sheet.Entries, SheetEntry{Student: s, Status: st, Pending: pending[s.ID]})
	}
	return sheet, nil
}

// SelfStatus is what a student sees for one day.
type SelfStatus struct {
	Student Student       `json:"student"`
	Date    calendar.Date `json:"date"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
}

// Self reports present, pending or absent for the student on day.
func (r *Reports) Self(ctx context.Context, studentID string, day calendar.Date) (SelfStatus, error) {
	s, err := r.roster.Get(ctx, studentID)
	if err != nil {
		return SelfStatus{}, err
	}
	out := SelfStatus{Student: s, Date: day}
	if r.ledger.Status(ctx, s.ID, day) == Present {
		out.Status, out.Message = "present", "You are present today."
		return out, nil
	}
	pending, err := r.requests.Pending(ctx, s.ID, day)
	if err != nil {
		return SelfStatus{}, err
	}
	if pending {
		out.Status, out.Message = "pending", "Your request is pending approval."
	} else {
		out.Status, out.Message = "absent", "Please request attendance."
	}
	return out, nil
}
