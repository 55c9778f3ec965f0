package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsched/internal/config"
	"streamsched/internal/model"
	"streamsched/internal/schedule"
)

func sampleState(t *testing.T) *model.State {
	t.Helper()
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		seoul = time.FixedZone("KST", 9*3600)
	}
	start := time.Date(2024, 6, 1, 19, 30, 15, 123456789, seoul)
	return &model.State{
		StartingDate: start,
		TotalStreams: 3,
		TimeZones:    []string{"Asia/Seoul", "UTC", "Asia/Seoul"},
		Templates: []model.Template{
			{Date: start, Time: model.String("19:30"), Description: model.String("opening\nline two")},
			{Date: start.AddDate(0, 0, 1), Time: model.String("")},
			{Date: start.AddDate(0, 0, 2)},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleState(t)

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data, in.StartingDate.Location())
	require.NoError(t, err)

	assert.True(t, in.Equal(*out))
	assert.Equal(t, in.StartingDate.Location().String(), out.StartingDate.Location().String())
	// Presence of an empty time survives, absence stays absent.
	require.NotNil(t, out.Templates[1].Time)
	assert.Equal(t, "", *out.Templates[1].Time)
	assert.Nil(t, out.Templates[2].Time)
	assert.Nil(t, out.Templates[2].Description)
}

func TestEncodeEnvelopeShape(t *testing.T) {
	data, err := Encode(sampleState(t))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, "0", string(raw["version"]))

	var st map[string]any
	require.NoError(t, json.Unmarshal(raw["state"], &st))
	assert.Contains(t, st, "startingDate")
	assert.Contains(t, st, "totalStreams")
	assert.Contains(t, st, "timeZones")
	templates := st["templates"].([]any)
	require.Len(t, templates, 3)
	assert.NotContains(t, templates[2].(map[string]any), "time")
	assert.NotContains(t, templates[2].(map[string]any), "description")
}

func TestDecodeAcceptsWebClientDocument(t *testing.T) {
	doc := `{
	  "state": {
	    "startingDate": "2024-01-01T09:00:00.000+01:00",
	    "totalStreams": 2,
	    "timeZones": ["Europe/Paris"],
	    "templates": [
	      {"date": "2024-01-01T09:00:00.000+01:00", "time": "18:00"},
	      {"date": "2024-01-02", "description": "late"}
	    ]
	  },
	  "version": 0
	}`
	s, err := Decode([]byte(doc), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalStreams)
	assert.True(t, s.StartingDate.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, s.Templates[1].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "late", *s.Templates[1].Description)
}

func TestDecodeKeepsMismatchedCounts(t *testing.T) {
	doc := `{"state":{"startingDate":"2024-01-01","totalStreams":-1,"timeZones":null,"templates":null},"version":0}`
	s, err := Decode([]byte(doc), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, -1, s.TotalStreams)
	assert.NotNil(t, s.Templates)
	assert.Empty(t, s.Templates)
	assert.NotNil(t, s.TimeZones)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{`,
		"version":      `{"state":{"startingDate":"2024-01-01"},"version":3}`,
		"bad start":    `{"state":{"startingDate":"yesterday"},"version":0}`,
		"empty start":  `{"state":{},"version":0}`,
		"bad template": `{"state":{"startingDate":"2024-01-01","templates":[{"date":"soon"}]},"version":0}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc), time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestParseDateForms(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-04", time.Date(2024, 3, 4, 0, 0, 0, 0, loc)},
		{"2024-03-04T18:30", time.Date(2024, 3, 4, 18, 30, 0, 0, loc)},
		{"2024-03-04 18:30", time.Date(2024, 3, 4, 18, 30, 0, 0, loc)},
		{"2024-03-04T18:30:05.5", time.Date(2024, 3, 4, 18, 30, 5, 500000000, loc)},
		{"2024-03-04T18:30:00Z", time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, loc)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), "%s: got %v want %v", tt.in, got, tt.want)
	}
}

func TestNilEncode(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	mem, err := NewSQLiteStore(":memory:", time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	dbFile, err := Open(config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "db", "s.db")}, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbFile.Close() })

	file, err := Open(config.StorageConfig{Driver: config.DriverFile, Path: t.TempDir()}, time.UTC)
	require.NoError(t, err)

	return map[string]Store{"sqlite-memory": mem, "sqlite-file": dbFile, "file": file}
}

func TestStoresRoundTrip(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := st.Load(ctx)
			require.ErrorIs(t, err, ErrNotFound)
			s, err := LoadOrDefault(ctx, st)
			require.NoError(t, err)
			assert.Nil(t, s)

			in := sampleState(t)
			require.NoError(t, st.Save(ctx, in))
			out, err := st.Load(ctx)
			require.NoError(t, err)
			assert.True(t, in.Equal(*out))

			// Overwrites the single namespace entry.
			in2 := in.Clone()
			in2.TimeZones = []string{"UTC"}
			require.NoError(t, st.Save(ctx, &in2))
			out, err = st.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"UTC"}, out.TimeZones)
		})
	}
}

func TestFileStorePermissionsAndName(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir, time.UTC)
	require.NoError(t, st.Save(t.Context(), sampleState(t)))

	assert.Equal(t, filepath.Join(dir, "schedule-storage.json"), st.Path())
	info, err := os.Stat(st.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "etcd"}, time.UTC)
	assert.Error(t, err)
}

type failingStore struct{ Store }

func (failingStore) Save(_ context.Context, _ *model.State) error { return errors.New("disk full") }
func (failingStore) Path() string                                  { return "/dev/full" }

func TestPersisterWiresIntoContainer(t *testing.T) {
	st := NewFileStore(t.TempDir(), time.UTC)
	p := NewPersister(st, 0)
	c := schedule.NewDefault(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), schedule.WithPersister(p))

	_, err := c.SetTotalStreams(4, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, p.Err())

	loaded, err := st.Load(t.Context())
	require.NoError(t, err)
	assert.True(t, c.Snapshot().Equal(*loaded))

	// Restoring re-seeds a new container.
	restored := schedule.NewDefault(time.Now(), schedule.WithSeed(*loaded))
	assert.True(t, restored.Snapshot().Equal(*loaded))
}

func TestPersisterKeepsSaveError(t *testing.T) {
	p := NewPersister(failingStore{}, time.Second)
	c := schedule.NewDefault(time.Now(), schedule.WithPersister(p))

	s := c.SetTimeZones([]string{"UTC"})
	assert.Same(t, s, c.Snapshot(), "a failed save does not affect the container")
	assert.EqualError(t, p.Err(), "disk full")
}
