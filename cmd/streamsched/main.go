package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"streamsched/internal/config"
	appLog "streamsched/internal/log"
	"streamsched/internal/metrics"
	"streamsched/internal/model"
	"streamsched/internal/render"
	"streamsched/internal/schedule"
	"streamsched/internal/storage"
)

const version = "0.1.0"

// CLI is the root command line.
type CLI struct {
	Config  string           `short:"c" type:"path" env:"STREAMSCHED_CONFIG" default:"${config_path}" help:"Path to config file"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Show     ShowCmd     `cmd:"" default:"withargs" help:"Show the current schedule"`
	Reset    ResetCmd    `cmd:"" help:"Reset to a single stream dated today"`
	Start    StartCmd    `cmd:"" help:"Set the starting date and re-date every template"`
	Total    TotalCmd    `cmd:"" help:"Set the number of scheduled streams"`
	Zones    ZonesCmd    `cmd:"" help:"Replace the display time zones"`
	Set      SetCmd      `cmd:"" help:"Edit one template"`
	Remove   RemoveCmd   `cmd:"" help:"Remove one template"`
	AddAfter AddAfterCmd `cmd:"" name:"add-after" help:"Insert a template after INDEX"`
	Plan     PlanCmd     `cmd:"" help:"Replace all templates with the occurrences of an RRULE"`
	Import   ImportCmd   `cmd:"" help:"Replace all templates with the events of an iCalendar file"`
	Export   ExportCmd   `cmd:"" help:"Export the schedule as an iCalendar file"`
	Watch    WatchCmd    `cmd:"" help:"Re-render whenever the stored schedule changes"`
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		appLog.Error("failed to load .env", err)
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "streamsched: error:", err)
		os.Exit(1)
	}
}

// loadDotEnv applies path to the environment when it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("streamsched"),
		kong.Description("Plan a run of live streams: dates, times and display time zones."),
		kong.UsageOnError(),
		kong.Writers(out, os.Stderr),
		kong.Vars{
			"config_path": config.DefaultPath(),
			"version":     version,
		},
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	a, err := newApp(&cli, out, time.Now)
	if err != nil {
		return err
	}
	runErr := kctx.Run(a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// app is what every command runs against.
type app struct {
	cfg       *config.Config
	loc       *time.Location
	out       io.Writer
	now       func() time.Time
	store     storage.Store
	persister *storage.Persister
	recorder  *metrics.Recorder
	schedule  *schedule.Container
}

func newApp(cli *CLI, out io.Writer, now func() time.Time) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cli.Config, err)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if cli.Verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	loc := render.ResolveLocation(cfg.Timezone)
	st, err := storage.Open(cfg.Storage, loc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seed, err := storage.LoadOrDefault(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("restore schedule: %w", err)
	}

	a := &app{
		cfg:       cfg,
		loc:       loc,
		out:       out,
		now:       now,
		store:     st,
		persister: storage.NewPersister(st, 0),
		recorder:  metrics.NewRecorder(nil),
	}

	opts := []schedule.Option{
		schedule.WithPersister(a.persister),
		schedule.WithObserver(a.recorder),
	}
	if seed != nil {
		opts = append(opts, schedule.WithSeed(*seed))
	}
	a.schedule = schedule.NewDefault(now().In(loc), opts...)
	a.recorder.Track(a.schedule.Snapshot())

	appLog.Debug("effective config",
		"config_path", cli.Config,
		"timezone", loc.String(),
		"storage_driver", cfg.Storage.Driver,
		"storage_path", st.Path(),
		"restored", seed != nil,
	)
	return a, nil
}

// Close flushes metrics and releases the store.
func (a *app) Close() error {
	var errs []error
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// snapshot is shorthand for the current schedule.
func (a *app) snapshot() *model.State {
	return a.schedule.Snapshot()
}

// commit renders s and reports whether it reached storage.
func (a *app) commit(s *model.State) error {
	if err := a.persister.Err(); err != nil {
		return fmt.Errorf("schedule updated but not saved: %w", err)
	}
	return render.Table(a.out, s)
}
