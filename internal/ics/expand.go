package ics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// ImportConfig controls how a calendar is turned into templates.
type ImportConfig struct {
	// Location is the zone templates are dated in. Nil means time.Local.
	Location *time.Location

	// From / Until bound the occurrences that are kept (inclusive). A zero
	// From keeps everything before Until. A zero Until is one year after
	// From (or after now when From is zero too).
	From  time.Time
	Until time.Time

	// Limit caps the number of templates. Zero means maxPlannedStreams.
	Limit int
}

type occurrence struct {
	ev    parsedEvent
	start time.Time
}

// Import reads the VEVENTs of an ICS payload and returns one template per
// occurrence, ordered by start. Recurring events are expanded with their
// EXDATEs removed and RECURRENCE-ID overrides applied. Timed events keep
// their wall-clock start in cfg.Location as the template time.
func Import(body []byte, cfg ImportConfig) ([]model.Template, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Limit <= 0 || cfg.Limit > maxPlannedStreams {
		cfg.Limit = maxPlannedStreams
	}
	if cfg.Until.IsZero() {
		base := cfg.From
		if base.IsZero() {
			base = time.Now()
		}
		cfg.Until = base.AddDate(1, 0, 0)
	}
	if !cfg.From.IsZero() && cfg.Until.Before(cfg.From) {
		return nil, errors.New("import: until is before from")
	}

	events, err := parseCalendar(body, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	var all []occurrence
	for uid, base := range baseByUID {
		for _, ev := range base {
			all = append(all, expandEvent(ev, overridesByUID[uid], cfg)...)
		}
	}
	// Overrides whose base event is missing still describe a real stream.
	for uid, ovs := range overridesByUID {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, ov := range ovs {
			if inRange(ov.Start, cfg) {
				all = append(all, occurrence{ev: ov, start: ov.Start})
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].start.Equal(all[j].start) {
			return all[i].start.Before(all[j].start)
		}
		return all[i].ev.UID < all[j].ev.UID
	})
	if len(all) > cfg.Limit {
		appLog.Warn("import: occurrences truncated", "found", len(all), "limit", cfg.Limit)
		all = all[:cfg.Limit]
	}

	templates := make([]model.Template, len(all))
	for i, occ := range all {
		templates[i] = toTemplate(occ, cfg.Location)
	}
	appLog.Info("ics import completed", "event_count", len(events), "templates", len(templates))
	return templates, nil
}

func expandEvent(ev parsedEvent, overrides []parsedEvent, cfg ImportConfig) []occurrence {
	if ev.RawRRule == "" {
		if !inRange(ev.Start, cfg) {
			return nil
		}
		return []occurrence{applyOverride(ev, overrides, ev.Start)}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("import: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := cfg.From
	if from.IsZero() || from.Before(ev.Start) {
		from = ev.Start
	}
	times := set.Between(from.In(ev.Start.Location()), cfg.Until.In(ev.Start.Location()), true)

	out := make([]occurrence, 0, len(times))
	for _, t := range times {
		if occ := applyOverride(ev, overrides, t); inRange(occ.start, cfg) {
			out = append(out, occ)
		}
	}
	return out
}

// applyOverride swaps in the override whose RECURRENCE-ID equals start.
func applyOverride(ev parsedEvent, overrides []parsedEvent, start time.Time) occurrence {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return occurrence{ev: ov, start: ov.Start}
		}
	}
	return occurrence{ev: ev, start: start}
}

func inRange(t time.Time, cfg ImportConfig) bool {
	if !cfg.From.IsZero() && t.Before(cfg.From) {
		return false
	}
	return !t.After(cfg.Until)
}

func toTemplate(occ occurrence, loc *time.Location) model.Template {
	start := occ.start.In(loc)
	t := model.Template{Date: dateOnly(start)}
	if !occ.ev.AllDay {
		t.Time = model.String(start.Format("15:04"))
	}
	if d := importDescription(occ.ev); d != "" {
		t.Description = model.String(d)
	}
	return t
}

// importDescription keeps the summary as the first line, which is where
// Export reads it back from.
func importDescription(ev parsedEvent) string {
	summary := strings.TrimSpace(ev.Summary)
	desc := strings.TrimSpace(ev.Description)
	switch {
	case desc == "":
		return summary
	case summary == "":
		return desc
	}
	if first, _, _ := strings.Cut(desc, "\n"); strings.TrimSpace(first) == summary {
		return desc
	}
	return summary + "\n" + desc
}
