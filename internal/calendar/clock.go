package calendar

import "time"

// Clock returns the current instant.
type Clock func() time.Time

// Calendar resolves "today" in a fixed location.
type Calendar struct {
	Now      Clock
	Location *time.Location
}

// New returns a Calendar using now within loc. Nil arguments fall back to
// time.Now and time.Local.
func New(now Clock, loc *time.Location) Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Now: now, Location: loc}
}

// Fixed is a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Today is the local calendar day of Now.
func (c Calendar) Today() Date {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return FromTime(now(), c.Location)
}

// LoadLocation resolves a zone name; empty or "Local" is time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
