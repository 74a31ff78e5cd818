package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseAndFormat(t *testing.T) {
	d, err := Parse("2024-06-13")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2024-06-13" {
		t.Fatalf("expected 2024-06-13, got %s", d)
	}
	if d.Weekday() != time.Thursday {
		t.Fatalf("expected thursday, got %s", d.Weekday())
	}
	if _, err := Parse("13/06/2024"); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}

func TestAddDaysCrossesMonthAndYear(t *testing.T) {
	if got := MustParse("2024-03-01").AddDays(-1).String(); got != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", got)
	}
	if got := MustParse("2023-12-31").AddDays(1).String(); got != "2024-01-01" {
		t.Fatalf("expected new year, got %s", got)
	}
}

func TestFromTimeUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	morning := time.Date(2024, 6, 13, 0, 30, 0, 0, loc)
	evening := time.Date(2024, 6, 13, 23, 30, 0, 0, loc)
	if FromTime(morning, loc) != FromTime(evening, loc) {
		t.Fatalf("same local day should map to same date")
	}
	// 00:30 at UTC+9 is still the previous day in UTC.
	if got := FromTime(morning, time.UTC).String(); got != "2024-06-12" {
		t.Fatalf("expected 2024-06-12 in UTC, got %s", got)
	}
}

func TestRestDays(t *testing.T) {
	cases := map[string]bool{
		"2024-06-08": true,  // saturday
		"2024-06-09": true,  // sunday
		"2024-06-10": false, // monday
		"2024-06-14": false, // friday
	}
	for s, rest := range cases {
		if got := MustParse(s).IsRestDay(); got != rest {
			t.Fatalf("%s: expected rest=%v, got %v", s, rest, got)
		}
	}
}

func TestMonthHelpers(t *testing.T) {
	if n := DaysIn(2024, time.February); n != 29 {
		t.Fatalf("expected 29 days, got %d", n)
	}
	if n := DaysIn(2023, time.February); n != 28 {
		t.Fatalf("expected 28 days, got %d", n)
	}
	if n := WorkingDaysIn(2024, time.February); n != 21 {
		t.Fatalf("expected 21 working days, got %d", n)
	}
	if n := len(MonthDays(2024, time.June)); n != 30 {
		t.Fatalf("expected 30 days, got %d", n)
	}
	y, m, err := ParseMonth("2024-02")
	if err != nil || y != 2024 || m != time.February {
		t.Fatalf("unexpected month parse: %d %v %v", y, m, err)
	}
}

func TestDateJSONMapKeys(t *testing.T) {
	in := map[Date]bool{MustParse("2024-06-12"): true}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"2024-06-12":true}` {
		t.Fatalf("unexpected json %s", raw)
	}
	var out map[Date]bool
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out[MustParse("2024-06-12")] {
		t.Fatalf("round trip lost entry")
	}
}

func TestCalendarToday(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	cal := New(Fixed(time.Date(2024, 6, 14, 2, 0, 0, 0, time.UTC)), loc)
	if got := cal.Today().String(); got != "2024-06-13" {
		t.Fatalf("expected 2024-06-13, got %s", got)
	}
}
