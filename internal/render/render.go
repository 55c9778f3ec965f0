// Package render draws schedule snapshots for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/storage"
)

const (
	dateLayout     = "Mon 2006-01-02"
	zoneTimeLayout = "Mon 15:04 MST"
)

// Table writes one row per template. Each display time zone gets a column
// showing when the stream starts there; templates without a usable time only
// show their date.
func Table(w io.Writer, s *model.State) error {
	if s == nil {
		return fmt.Errorf("render: state is nil")
	}

	zones := make([]*time.Location, len(s.TimeZones))
	for i, name := range s.TimeZones {
		zones[i] = ResolveLocation(name)
	}

	// The summary lines stay outside the tabwriter so they do not size the
	// table's first column.
	if _, err := fmt.Fprintf(w, "starting %s  streams %d\n", s.StartingDate.Format(dateLayout), s.TotalStreams); err != nil {
		return err
	}
	if !s.Consistent() {
		if _, err := fmt.Fprintf(w, "warning: %d templates for %d streams\n", len(s.Templates), s.TotalStreams); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	header := []string{"#", "DATE", "TIME", "DESCRIPTION"}
	for _, name := range s.TimeZones {
		header = append(header, cell(name))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, t := range s.Templates {
		row := []string{
			fmt.Sprint(i),
			t.Date.Format(dateLayout),
			optional(t.Time),
			firstLine(optional(t.Description)),
		}
		start, ok := t.Start()
		for _, loc := range zones {
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, start.In(loc).Format(zoneTimeLayout))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSON writes the persisted form of s.
func JSON(w io.Writer, s *model.State) error {
	data, err := storage.Encode(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ResolveLocation loads an IANA zone, falling back to time.Local. "Local" and
// "" mean time.Local.
func ResolveLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return cell(*s)
}

// cell keeps user text from adding tabwriter columns.
func cell(s string) string {
	return strings.ReplaceAll(s, "\t", " ")
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " …"
	}
	return line
}
