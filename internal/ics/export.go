package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

const (
	defaultDuration = 2 * time.Hour
	productID       = "-//streamsched//stream schedule//EN"
)

// ExportConfig controls how a schedule is turned into a calendar.
type ExportConfig struct {
	// CalendarName is written as X-WR-CALNAME. Optional.
	CalendarName string
	// Duration is the length of timed events. Zero means two hours.
	Duration time.Duration
	// Now is the DTSTAMP of every event. Zero means time.Now().
	Now time.Time
}

// Export renders every template of s as a VEVENT.
//
//   - A template whose Time parses as a clock value becomes a timed event
//     starting at that wall-clock time on its date.
//   - Any other template becomes an all-day event on its date.
//   - UIDs are derived from the index and date so re-exports update the same
//     events in subscribed clients.
func Export(s *model.State, cfg ExportConfig) ([]byte, error) {
	if s == nil {
		return nil, errors.New("export: state is nil")
	}
	if cfg.Duration <= 0 {
		cfg.Duration = defaultDuration
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if cfg.CalendarName != "" {
		cal.SetXWRCalName(cfg.CalendarName)
	}
	if len(s.TimeZones) > 0 {
		cal.SetXWRTimezone(s.TimeZones[0])
	}

	for i, t := range s.Templates {
		ev := cal.AddEvent(eventUID(i, t.Date))
		ev.SetDtStampTime(cfg.Now.UTC())
		ev.SetSummary(summary(i, t))
		if t.Description != nil && *t.Description != "" {
			ev.SetDescription(*t.Description)
		}

		if start, ok := t.Start(); ok {
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(cfg.Duration))
			continue
		}
		if t.Time != nil && strings.TrimSpace(*t.Time) != "" {
			appLog.Debug("ics export: unparsed time, exporting all-day", "index", i, "time", *t.Time)
		}
		day := dateOnly(t.Date)
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	appLog.Info("ics export completed", "event_count", len(s.Templates))
	return []byte(cal.Serialize()), nil
}

// summary uses the first description line, or "Stream N" (1-based).
func summary(i int, t model.Template) string {
	if t.Description != nil {
		if line, _, _ := strings.Cut(strings.TrimSpace(*t.Description), "\n"); line != "" {
			return line
		}
	}
	return fmt.Sprintf("Stream %d", i+1)
}

func eventUID(i int, d time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", i, d.Format("2006-01-02"))))
	return hex.EncodeToString(sum[:8]) + "@streamsched"
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
