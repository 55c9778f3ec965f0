package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"streamsched/internal/config"
	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/storage"
)

const (
	filePrefix = "schedule-"
	fileSuffix = ".json"
	// Sortable, filesystem-safe timestamp.
	stampLayout = "20060102T150405.000000000Z"
)

// Source returns the snapshot to back up.
type Source func() *model.State

// Job writes timestamped snapshot copies on a cron schedule.
type Job struct {
	dir    string
	keep   int
	source Source
	now    func() time.Time
	cron   *cron.Cron
}

// New validates cfg and returns a stopped job. keep <= 0 keeps every file.
func New(cfg config.BackupConfig, loc *time.Location, source Source) (*Job, error) {
	if source == nil {
		return nil, errors.New("backup: source is nil")
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup: dir is empty")
	}
	if loc == nil {
		loc = time.Local
	}

	j := &Job{
		dir:    cfg.Dir,
		keep:   cfg.Keep,
		source: source,
		now:    time.Now,
		cron:   cron.New(cron.WithLocation(loc)),
	}
	if _, err := j.cron.AddFunc(cfg.Cron, j.run); err != nil {
		return nil, fmt.Errorf("backup: invalid cron %q: %w", cfg.Cron, err)
	}
	return j, nil
}

func (j *Job) Start() {
	appLog.Info("backup job started", "dir", j.dir, "keep", j.keep)
	j.cron.Start()
}

// Stop halts scheduling and waits for a running backup to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
	appLog.Info("backup job stopped")
}

func (j *Job) run() {
	path, err := j.RunOnce()
	if err != nil {
		appLog.Error("backup failed", err, "dir", j.dir)
		return
	}
	appLog.Info("backup written", "path", path)
}

// RunOnce writes one backup now and prunes old ones.
func (j *Job) RunOnce() (string, error) {
	s := j.source()
	if s == nil {
		return "", errors.New("backup: no snapshot")
	}
	data, err := storage.Encode(s)
	if err != nil {
		return "", err
	}

	name := filePrefix + j.now().UTC().Format(stampLayout) + fileSuffix
	path := filepath.Join(j.dir, name)
	if err := config.WriteFileAtomic(path, data, ".backup-*.tmp"); err != nil {
		return "", fmt.Errorf("backup: write: %w", err)
	}
	if err := j.prune(); err != nil {
		return path, fmt.Errorf("backup: prune: %w", err)
	}
	return path, nil
}

// List returns backup files, oldest first.
func (j *Job) List() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, filePrefix) || !strings.HasSuffix(n, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(j.dir, n))
	}
	sort.Strings(out)
	return out, nil
}

func (j *Job) prune() error {
	if j.keep <= 0 {
		return nil
	}
	files, err := j.List()
	if err != nil {
		return err
	}
	for len(files) > j.keep {
		if err := os.Remove(files[0]); err != nil {
			return err
		}
		files = files[1:]
	}
	return nil
}
