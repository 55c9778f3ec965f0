package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// maxPlannedStreams caps rule expansion the same way recurrence expansion is
// capped elsewhere.
const maxPlannedStreams = 5000

// TemplatesFromRule expands an RRULE (with or without the "RRULE:" prefix)
// anchored at start into count templates, one per occurrence. A COUNT or
// UNTIL inside the rule can end the sequence earlier. Occurrences keep start's
// location and wall-clock time; sub-second precision is dropped by the rule
// engine.
func TemplatesFromRule(rule string, start time.Time, count int) ([]model.Template, error) {
	if count < 0 {
		return nil, errors.New("plan: count must not be negative")
	}
	if count > maxPlannedStreams {
		return nil, fmt.Errorf("plan: count %d exceeds limit %d", count, maxPlannedStreams)
	}

	raw := strings.TrimSpace(rule)
	raw = strings.TrimPrefix(raw, "RRULE:")
	if raw == "" {
		return nil, errors.New("plan: rule is empty")
	}

	r, err := rrule.StrToRRule(raw)
	if err != nil {
		appLog.Error("plan: failed to parse RRULE", err, "rrule", raw)
		return nil, fmt.Errorf("plan: parse rule: %w", err)
	}
	r.DTStart(start)

	templates := make([]model.Template, 0, count)
	next := r.Iterator()
	for len(templates) < count {
		occ, ok := next()
		if !ok {
			break
		}
		templates = append(templates, model.Template{Date: occ.In(start.Location())})
	}

	appLog.Debug("plan: rule expanded", "rrule", raw, "requested", count, "generated", len(templates))
	return templates, nil
}
