package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamsched/internal/model"
)

// Namespace is the fixed key the snapshot is stored under.
const Namespace = "schedule-storage"

// Version is the envelope version written by Encode.
const Version = 0

// envelope mirrors the {"state": ..., "version": N} document written by the
// web client's persisted store, so both can read each other's snapshots.
type envelope struct {
	State   storedState `json:"state"`
	Version int         `json:"version"`
}

type storedState struct {
	StartingDate string           `json:"startingDate"`
	TotalStreams int              `json:"totalStreams"`
	TimeZones    []string         `json:"timeZones"`
	Templates    []storedTemplate `json:"templates"`
}

type storedTemplate struct {
	Date        string  `json:"date"`
	Time        *string `json:"time,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Encode serializes a snapshot into the persisted envelope.
func Encode(s *model.State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("encode: state is nil")
	}

	st := storedState{
		StartingDate: FormatDate(s.StartingDate),
		TotalStreams: s.TotalStreams,
		TimeZones:    make([]string, len(s.TimeZones)),
		Templates:    make([]storedTemplate, len(s.Templates)),
	}
	copy(st.TimeZones, s.TimeZones)
	for i, t := range s.Templates {
		st.Templates[i] = storedTemplate{
			Date:        FormatDate(t.Date),
			Time:        t.Time,
			Description: t.Description,
		}
	}

	return json.MarshalIndent(envelope{State: st, Version: Version}, "", "  ")
}

// Decode restores a snapshot from the persisted envelope. Dates without an
// explicit offset are read in loc; loc may be nil for time.Local.
func Decode(data []byte, loc *time.Location) (*model.State, error) {
	if loc == nil {
		loc = time.Local
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", env.Version)
	}

	start, err := ParseDate(env.State.StartingDate, loc)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: startingDate: %w", err)
	}

	s := &model.State{
		StartingDate: start,
		TotalStreams: env.State.TotalStreams,
		TimeZones:    make([]string, len(env.State.TimeZones)),
		Templates:    make([]model.Template, len(env.State.Templates)),
	}
	copy(s.TimeZones, env.State.TimeZones)
	for i, st := range env.State.Templates {
		d, err := ParseDate(st.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: templates[%d].date: %w", i, err)
		}
		s.Templates[i] = model.Template{Date: d, Time: st.Time, Description: st.Description}
	}
	return s, nil
}

// FormatDate renders a date in its persisted string form.
func FormatDate(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 (with or without fraction), a local date-time or
// a bare date. Zone-less forms are interpreted in loc.
func ParseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty date value")
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return inLocationIfSameOffset(t, loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

// inLocationIfSameOffset returns t in loc when loc agrees with t's offset at
// that instant, recovering named zones from offset-only strings.
func inLocationIfSameOffset(t time.Time, loc *time.Location) time.Time {
	_, off := t.Zone()
	moved := t.In(loc)
	if _, locOff := moved.Zone(); locOff == off {
		return moved
	}
	return t
}
