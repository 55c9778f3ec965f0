package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsched/internal/model"
	"streamsched/internal/storage"
)

func TestTableShowsEachZone(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &model.State{
		StartingDate: start,
		TotalStreams: 2,
		TimeZones:    []string{"UTC", "UTC"},
		Templates: []model.Template{
			{Date: start, Time: model.String("18:00"), Description: model.String("first\nmore")},
			{Date: start.AddDate(0, 0, 1)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, s))
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "streams 2")
	assert.Equal(t, 2, strings.Count(lines[1], "UTC"))
	assert.Equal(t, 2, strings.Count(lines[2], "Sat 18:00 UTC"))
	assert.Contains(t, lines[2], "first …")
	assert.Contains(t, lines[3], "Sun 2024-06-02")
	assert.NotContains(t, out, "warning")
}

func TestTableWarnsOnCountMismatch(t *testing.T) {
	s := &model.State{StartingDate: time.Now(), TotalStreams: 2, Templates: []model.Template{{Date: time.Now()}}}

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, s))
	assert.Contains(t, buf.String(), "warning: 1 templates for 2 streams")
}

func TestTableSummaryDoesNotWidenIndexColumn(t *testing.T) {
	s := model.Initial(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.TotalStreams = 3 // mismatch adds the warning line too

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, &s))
	lines := strings.Split(buf.String(), "\n")

	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[1], "warning:"))
	assert.True(t, strings.HasPrefix(lines[2], "#  DATE"), "header was %q", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "0  Sat 2024-06-01"), "row was %q", lines[3])
}

func TestTableTabsInTextKeepColumns(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &model.State{
		StartingDate: start,
		TotalStreams: 1,
		TimeZones:    []string{"UTC"},
		Templates: []model.Template{
			{Date: start, Time: model.String("18:00"), Description: model.String("talk\twith\tguests")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, s))
	lines := strings.Split(buf.String(), "\n")

	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[2], "talk with guests")
	assert.Equal(t, strings.Index(lines[1], "UTC"), strings.Index(lines[2], "Sat 18:00 UTC"))
}

func TestTableNil(t *testing.T) {
	assert.Error(t, Table(&bytes.Buffer{}, nil))
}

func TestJSONMatchesStorageEncoding(t *testing.T) {
	s := model.Initial(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, &s))

	want, err := storage.Encode(&s)
	require.NoError(t, err)
	assert.Equal(t, string(want)+"\n", buf.String())
}

func TestResolveLocation(t *testing.T) {
	assert.Equal(t, time.Local, ResolveLocation(""))
	assert.Equal(t, time.Local, ResolveLocation("Local"))
	assert.Equal(t, time.Local, ResolveLocation("Not/AZone"))
	assert.Equal(t, "UTC", ResolveLocation("UTC").String())
}
