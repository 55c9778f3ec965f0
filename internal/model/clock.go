package model

import (
	"strings"
	"time"
)

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04PM",
	"3:04 PM",
	"3PM",
	"3 PM",
}

// ParseClock reads a free-form template time such as "18:30" or "6:30 PM".
// It returns the clock as a duration since midnight.
func ParseClock(s string) (time.Duration, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second
		return d, true
	}
	return 0, false
}

// Start returns when the stream begins: the template's calendar date (in
// the date's own location) at its Time. ok is false when Time is absent or
// not a recognizable clock value.
func (t Template) Start() (start time.Time, ok bool) {
	if t.Time == nil {
		return time.Time{}, false
	}
	clock, ok := ParseClock(*t.Time)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := t.Date.Date()
	h := int(clock / time.Hour)
	minute := int(clock % time.Hour / time.Minute)
	sec := int(clock % time.Minute / time.Second)
	return time.Date(y, m, d, h, minute, sec, 0, t.Date.Location()), true
}
