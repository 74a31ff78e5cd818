package calendar

import (
	"fmt"
	"time"
)

// Layout is the wire form of a Date.
const Layout = "2006-01-02"

// Date is a local calendar day. Two instants on the same local day map to
// the same Date regardless of their time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime returns the calendar day t falls on in loc. A nil loc uses t's own location.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Of builds a normalised Date, so Of(2024, 2, 30) is 2024-03-01.
func Of(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 12, 0, 0, 0, time.UTC), nil)
}

func (d Date) midday() time.Time {
	// noon UTC keeps AddDays clear of DST edges
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.midday().Format(Layout) }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// AddDays shifts d by n calendar days.
func (d Date) AddDays(n int) Date { return FromTime(d.midday().AddDate(0, 0, n), nil) }

func (d Date) Weekday() time.Weekday { return d.midday().Weekday() }

// IsRestDay reports Saturday and Sunday.
func (d Date) IsRestDay() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkingDay reports Monday through Friday.
func (d Date) IsWorkingDay() bool { return !d.IsRestDay() }

func (d Date) Before(o Date) bool { return d.midday().Before(o.midday()) }

func (d Date) After(o Date) bool { return d.midday().After(o.midday()) }

// MarshalText implements encoding.TextMarshaler. The zero Date encodes empty.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// MonthDays lists every day of the month in order.
func MonthDays(year int, month time.Month) []Date {
	n := DaysIn(year, month)
	days := make([]Date, 0, n)
	for i := 1; i <= n; i++ {
		days = append(days, Date{Year: year, Month: month, Day: i})
	}
	return days
}

// WorkingDaysIn counts Monday–Friday days in the month.
func WorkingDaysIn(year int, month time.Month) int {
	count := 0
	for _, d := range MonthDays(year, month) {
		if d.IsWorkingDay() {
			count++
		}
	}
	return count
}

// ParseMonth reads a YYYY-MM string.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}
