package ics

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsched/internal/model"
)

func exportAndParse(t *testing.T, s *model.State, cfg ExportConfig) *ical.Calendar {
	t.Helper()
	body, err := Export(s, cfg)
	require.NoError(t, err)
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	require.NoError(t, err)
	return cal
}

func prop(ev *ical.VEvent, p ical.ComponentProperty) string {
	if v := ev.GetProperty(p); v != nil {
		return v.Value
	}
	return ""
}

func TestExportTimedAndAllDay(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, kst)
	s := &model.State{
		StartingDate: start,
		TotalStreams: 3,
		TimeZones:    []string{"Asia/Seoul", "UTC"},
		Templates: []model.Template{
			{Date: start, Time: model.String("19:30"), Description: model.String("Launch day\nwith guests")},
			{Date: start.AddDate(0, 0, 1)},
			{Date: start.AddDate(0, 0, 2), Time: model.String("whenever")},
		},
	}

	cal := exportAndParse(t, s, ExportConfig{
		CalendarName: "My streams",
		Duration:     90 * time.Minute,
		Now:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	events := cal.Events()
	require.Len(t, events, 3)

	timed := events[0]
	assert.Equal(t, "Launch day", prop(timed, ical.ComponentPropertySummary))
	assert.Equal(t, "20240601T103000Z", prop(timed, ical.ComponentPropertyDtStart))
	assert.Equal(t, "20240601T120000Z", prop(timed, ical.ComponentPropertyDtEnd))

	allDay := events[1]
	assert.Equal(t, "Stream 2", prop(allDay, ical.ComponentPropertySummary))
	assert.Equal(t, "20240602", prop(allDay, ical.ComponentPropertyDtStart))
	assert.Equal(t, "20240603", prop(allDay, ical.ComponentPropertyDtEnd))

	// An unparseable time falls back to all-day.
	assert.Equal(t, "20240603", prop(events[2], ical.ComponentPropertyDtStart))

	body, err := Export(s, ExportConfig{CalendarName: "My streams"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "X-WR-CALNAME:My streams")
	assert.Contains(t, string(body), "X-WR-TIMEZONE:Asia/Seoul")
}

func TestExportUIDsAreStable(t *testing.T) {
	s := &model.State{Templates: []model.Template{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}

	first := exportAndParse(t, s, ExportConfig{}).Events()
	second := exportAndParse(t, s, ExportConfig{}).Events()

	require.Len(t, first, 2)
	assert.Equal(t, first[0].Id(), second[0].Id())
	assert.NotEqual(t, first[0].Id(), first[1].Id())
}

func TestExportNil(t *testing.T) {
	_, err := Export(nil, ExportConfig{})
	assert.Error(t, err)
}

func TestTemplatesFromRuleWeekly(t *testing.T) {
	// 2024-01-01 is a Monday.
	start := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	templates, err := TemplatesFromRule("RRULE:FREQ=WEEKLY;BYDAY=MO,TH", start, 4)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 20, 0, 0, 0, time.UTC),
	}
	require.Len(t, templates, len(want))
	for i, w := range want {
		assert.True(t, templates[i].Date.Equal(w), "templates[%d] = %v, want %v", i, templates[i].Date, w)
		assert.Nil(t, templates[i].Time)
	}
}

func TestTemplatesFromRuleDailyMatchesDayOffsets(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	templates, err := TemplatesFromRule("FREQ=DAILY", start, 5)
	require.NoError(t, err)
	require.Len(t, templates, 5)
	for i, tpl := range templates {
		assert.True(t, tpl.Date.Equal(model.DayOffset(start, i)))
	}
}

func TestTemplatesFromRuleCountInRule(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	templates, err := TemplatesFromRule("FREQ=DAILY;COUNT=2", start, 10)
	require.NoError(t, err)
	assert.Len(t, templates, 2)
}

func TestTemplatesFromRuleErrors(t *testing.T) {
	start := time.Now()
	for name, tc := range map[string]struct {
		rule  string
		count int
	}{
		"empty":    {"", 1},
		"garbage":  {"FREQ=SOMETIMES", 1},
		"negative": {"FREQ=DAILY", -1},
		"too many": {"FREQ=DAILY", maxPlannedStreams + 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := TemplatesFromRule(tc.rule, start, tc.count)
			assert.Error(t, err)
		})
	}
}
