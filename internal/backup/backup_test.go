package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsched/internal/config"
	"streamsched/internal/model"
	"streamsched/internal/storage"
)

func fixedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func TestRunOnceWritesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	s := model.Initial(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	j, err := New(config.BackupConfig{Cron: "@hourly", Dir: dir, Keep: 2}, time.UTC, func() *model.State { return &s })
	require.NoError(t, err)
	j.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var written []string
	for i := 0; i < 4; i++ {
		p, err := j.RunOnce()
		require.NoError(t, err)
		written = append(written, p)
	}

	files, err := j.List()
	require.NoError(t, err)
	assert.Equal(t, written[2:], files)

	data, err := os.ReadFile(files[1])
	require.NoError(t, err)
	restored, err := storage.Decode(data, time.UTC)
	require.NoError(t, err)
	assert.True(t, s.Equal(*restored))
}

func TestListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "schedule-dir.json"), 0o700))

	j, err := New(config.BackupConfig{Cron: "@daily", Dir: dir}, nil, func() *model.State { return nil })
	require.NoError(t, err)

	files, err := j.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = j.RunOnce()
	assert.Error(t, err, "nil snapshot must not be backed up")
}

func TestNewValidates(t *testing.T) {
	src := func() *model.State { return nil }

	_, err := New(config.BackupConfig{Cron: "not a cron", Dir: t.TempDir()}, nil, src)
	assert.Error(t, err)
	_, err = New(config.BackupConfig{Cron: "@daily"}, nil, src)
	assert.Error(t, err)
	_, err = New(config.BackupConfig{Cron: "@daily", Dir: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	j, err := New(config.BackupConfig{Cron: "*/5 * * * *", Dir: t.TempDir()}, time.UTC, func() *model.State { return nil })
	require.NoError(t, err)
	j.Start()
	j.Stop()
}
