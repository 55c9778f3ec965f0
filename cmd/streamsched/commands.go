package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"streamsched/internal/backup"
	"streamsched/internal/config"
	"streamsched/internal/ics"
	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/render"
	"streamsched/internal/storage"
	"streamsched/internal/watch"
)

// ShowCmd prints the current schedule.
type ShowCmd struct {
	JSON bool `help:"Print the stored JSON document instead of a table"`
}

func (c *ShowCmd) Run(a *app) error {
	if c.JSON {
		return render.JSON(a.out, a.snapshot())
	}
	return render.Table(a.out, a.snapshot())
}

// ResetCmd restores the startup schedule.
type ResetCmd struct{}

func (c *ResetCmd) Run(a *app) error {
	return a.commit(a.schedule.ResetTemplate())
}

// StartCmd moves the whole schedule to a new starting date.
type StartCmd struct {
	Date      string `arg:"" help:"New starting date (YYYY-MM-DD, RFC 3339 or 'today')"`
	KeepDates bool   `help:"Only change the starting date; leave template dates alone"`
}

func (c *StartCmd) Run(a *app) error {
	date, err := a.parseDate(c.Date)
	if err != nil {
		return err
	}
	var templates []model.Template
	if !c.KeepDates {
		templates = a.snapshot().Templates
	}
	return a.commit(a.schedule.SetStartingDate(date, templates))
}

// TotalCmd grows or shrinks the schedule to N streams.
type TotalCmd struct {
	Count int `arg:"" help:"Number of streams (pass negative values after --)"`
}

func (c *TotalCmd) Run(a *app) error {
	next, err := a.schedule.SetTotalStreams(c.Count, a.snapshot().StartingDate)
	if err != nil {
		return err
	}
	return a.commit(next)
}

// ZonesCmd replaces the display time zones. No arguments clears them.
type ZonesCmd struct {
	Zones []string `arg:"" optional:"" help:"IANA time zone names, e.g. Asia/Seoul"`
}

func (c *ZonesCmd) Run(a *app) error {
	for _, z := range c.Zones {
		if _, err := time.LoadLocation(z); err != nil {
			appLog.Warn("unknown time zone; it will render in local time", "zone", z)
		}
	}
	return a.commit(a.schedule.SetTimeZones(c.Zones))
}

// TemplateFlags are the optional fields of a template.
type TemplateFlags struct {
	Date        string `help:"Date of the stream (YYYY-MM-DD or RFC 3339)"`
	Time        string `help:"Start time, e.g. 19:30 or 7:30 PM"`
	Description string `short:"d" help:"Free-form description"`
}

// apply overwrites the fields of t that were given on the command line.
func (f TemplateFlags) apply(a *app, t *model.Template) error {
	if f.Date != "" {
		d, err := a.parseDate(f.Date)
		if err != nil {
			return err
		}
		t.Date = d
	}
	if f.Time != "" {
		if _, ok := model.ParseClock(f.Time); !ok {
			appLog.Warn("time is not a clock value; zone columns will be empty", "time", f.Time)
		}
		t.Time = model.String(f.Time)
	}
	if f.Description != "" {
		t.Description = model.String(f.Description)
	}
	return nil
}

// SetCmd edits the template at INDEX. Omitted fields keep their value.
type SetCmd struct {
	Index    int           `arg:"" help:"Zero-based template index (pass negative values after --)"`
	Template TemplateFlags `embed:""`

	ClearTime        bool `help:"Remove the start time"`
	ClearDescription bool `help:"Remove the description"`
}

func (c *SetCmd) Run(a *app) error {
	s := a.snapshot()
	var t model.Template
	if c.Index >= 0 && c.Index < len(s.Templates) {
		t = s.Templates[c.Index].Clone()
	} else {
		t.Date = model.DayOffset(s.StartingDate, c.Index)
	}
	if c.ClearTime {
		t.Time = nil
	}
	if c.ClearDescription {
		t.Description = nil
	}
	if err := c.Template.apply(a, &t); err != nil {
		return err
	}

	next, err := a.schedule.SetTemplate(c.Index, t)
	if err != nil {
		return err
	}
	return a.commit(next)
}

// RemoveCmd deletes the template at INDEX.
type RemoveCmd struct {
	Index int `arg:"" help:"Zero-based template index (pass negative values after --)"`
}

func (c *RemoveCmd) Run(a *app) error {
	next, err := a.schedule.RemoveTemplate(c.Index)
	if err != nil {
		return err
	}
	return a.commit(next)
}

// AddAfterCmd inserts a template after INDEX. Without --date it is dated one
// day after the template it follows.
type AddAfterCmd struct {
	Index    int           `arg:"" help:"Zero-based index of the template to insert after (pass negative values after --)"`
	Template TemplateFlags `embed:""`
}

func (c *AddAfterCmd) Run(a *app) error {
	s := a.snapshot()
	var t model.Template
	if c.Index >= 0 && c.Index < len(s.Templates) {
		t.Date = model.DayOffset(s.Templates[c.Index].Date, 1)
	} else {
		t.Date = model.DayOffset(s.StartingDate, c.Index+1)
	}
	if err := c.Template.apply(a, &t); err != nil {
		return err
	}

	next, err := a.schedule.AddTemplateAfter(c.Index, t)
	if err != nil {
		return err
	}
	return a.commit(next)
}

// PlanCmd replaces the templates with the occurrences of a recurrence rule.
type PlanCmd struct {
	Rule  string `arg:"" help:"RRULE, e.g. FREQ=WEEKLY;BYDAY=MO,TH"`
	Count int    `short:"n" required:"" help:"Number of streams to plan"`
	Start string `help:"First candidate date; defaults to the current starting date"`
	Time  string `help:"Start time applied to every planned stream"`
}

func (c *PlanCmd) Run(a *app) error {
	start := a.snapshot().StartingDate
	if c.Start != "" {
		d, err := a.parseDate(c.Start)
		if err != nil {
			return err
		}
		start = d
	}

	templates, err := ics.TemplatesFromRule(c.Rule, start, c.Count)
	if err != nil {
		return err
	}
	if c.Time != "" {
		for i := range templates {
			templates[i].Time = model.String(c.Time)
		}
	}

	next := a.schedule.SetTemplates(templates)
	if len(templates) > 0 {
		next = a.schedule.SetStartingDate(templates[0].Date, nil)
	}
	return a.commit(next)
}

// ImportCmd replaces the templates with the events of an ICS file.
type ImportCmd struct {
	File  string `arg:"" type:"existingfile" help:"iCalendar file to read"`
	From  string `help:"Skip events before this date"`
	Until string `help:"Skip events after this date; defaults to one year after --from"`
	Limit int    `default:"0" help:"Maximum number of streams; 0 means no limit"`
}

func (c *ImportCmd) Run(a *app) error {
	body, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	cfg := ics.ImportConfig{Location: a.loc, Limit: c.Limit}
	if c.From != "" {
		if cfg.From, err = a.parseDate(c.From); err != nil {
			return err
		}
	}
	if c.Until != "" {
		if cfg.Until, err = a.parseDate(c.Until); err != nil {
			return err
		}
	}

	templates, err := ics.Import(body, cfg)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return fmt.Errorf("no events found in %s", c.File)
	}
	a.schedule.SetTemplates(templates)
	return a.commit(a.schedule.SetStartingDate(templates[0].Date, nil))
}

// ExportCmd writes the schedule as iCalendar.
type ExportCmd struct {
	Out string `short:"o" type:"path" help:"Write to this file instead of stdout"`
}

func (c *ExportCmd) Run(a *app) error {
	data, err := ics.Export(a.snapshot(), ics.ExportConfig{
		CalendarName: a.cfg.Export.CalendarName,
		Duration:     time.Duration(a.cfg.Export.DurationMinutes) * time.Minute,
		Now:          a.now(),
	})
	if err != nil {
		return err
	}
	if c.Out == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := config.WriteFileAtomic(c.Out, data, ".export-*.tmp"); err != nil {
		return fmt.Errorf("write %s: %w", c.Out, err)
	}
	appLog.Info("calendar exported", "path", c.Out, "events", len(a.snapshot().Templates))
	return nil
}

// WatchCmd re-renders the schedule whenever another process saves it, and
// runs scheduled backups when backup.cron is set.
type WatchCmd struct {
	Debounce time.Duration `default:"200ms" help:"Quiet period before reloading"`
}

func (c *WatchCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var latest atomic.Pointer[model.State]
	latest.Store(a.snapshot())
	if err := render.Table(a.out, latest.Load()); err != nil {
		return err
	}

	if strings.TrimSpace(a.cfg.Backup.Cron) != "" {
		job, err := backup.New(a.cfg.Backup, a.loc, latest.Load)
		if err != nil {
			return err
		}
		job.Start()
		defer job.Stop()
	}

	w, err := watch.New(a.store, c.Debounce, func(s *model.State) {
		latest.Store(s)
		a.recorder.Track(s)
		fmt.Fprintln(a.out)
		if err := render.Table(a.out, s); err != nil {
			appLog.Error("render failed", err)
		}
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// parseDate accepts "today" plus every form storage.ParseDate reads.
func (a *app) parseDate(v string) (time.Time, error) {
	if strings.EqualFold(strings.TrimSpace(v), "today") {
		return a.now().In(a.loc), nil
	}
	d, err := storage.ParseDate(v, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}
