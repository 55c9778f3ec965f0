package model

import "time"

// Template is the editable unit for one scheduled stream.
//
// Time and Description are optional: nil means the field was never set, which
// is kept distinct from an empty string through persistence.
type Template struct {
	Date        time.Time
	Time        *string
	Description *string
}

// State is one complete snapshot of the schedule.
//
// A *State published by the container is never modified afterwards; callers
// that want to edit a snapshot must Clone it first.
type State struct {
	// StartingDate is the anchor from which per-stream dates are derived.
	StartingDate time.Time
	TotalStreams int
	// TimeZones are IANA names used for display, kept in insertion order.
	TimeZones []string
	Templates []Template
}

// Initial returns the default schedule: one stream dated now.
func Initial(now time.Time) State {
	return State{
		StartingDate: now,
		TotalStreams: 1,
		TimeZones:    []string{},
		Templates:    []Template{{Date: now}},
	}
}

// String returns a pointer to s, for filling optional template fields.
func String(s string) *string {
	return &s
}

// Clone returns a copy of t that shares no memory with it.
func (t Template) Clone() Template {
	out := Template{Date: t.Date}
	if t.Time != nil {
		out.Time = String(*t.Time)
	}
	if t.Description != nil {
		out.Description = String(*t.Description)
	}
	return out
}

// WithDate returns a copy of t dated d.
func (t Template) WithDate(d time.Time) Template {
	out := t.Clone()
	out.Date = d
	return out
}

// Equal reports whether two templates hold the same instant and optional
// fields, comparing dates with time.Time.Equal.
func (t Template) Equal(o Template) bool {
	return t.Date.Equal(o.Date) && optEqual(t.Time, o.Time) && optEqual(t.Description, o.Description)
}

func optEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CloneTemplates deep-copies a template slice. A nil input yields an empty,
// non-nil slice.
func CloneTemplates(in []Template) []Template {
	out := make([]Template, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	zones := make([]string, len(s.TimeZones))
	copy(zones, s.TimeZones)
	return State{
		StartingDate: s.StartingDate,
		TotalStreams: s.TotalStreams,
		TimeZones:    zones,
		Templates:    CloneTemplates(s.Templates),
	}
}

// Equal compares two states field by field.
func (s State) Equal(o State) bool {
	if !s.StartingDate.Equal(o.StartingDate) || s.TotalStreams != o.TotalStreams {
		return false
	}
	if len(s.TimeZones) != len(o.TimeZones) || len(s.Templates) != len(o.Templates) {
		return false
	}
	for i := range s.TimeZones {
		if s.TimeZones[i] != o.TimeZones[i] {
			return false
		}
	}
	for i := range s.Templates {
		if !s.Templates[i].Equal(o.Templates[i]) {
			return false
		}
	}
	return true
}

// Consistent reports whether the template count matches TotalStreams.
func (s State) Consistent() bool {
	return len(s.Templates) == s.TotalStreams
}

// DayOffset returns start shifted by n calendar days, keeping wall-clock time
// in start's location.
func DayOffset(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, n)
}
