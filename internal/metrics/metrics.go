// Package metrics counts schedule transitions with Prometheus collectors.
//
// There is no HTTP exposition. Commands write the registry to a textfile for
// node_exporter's textfile collector when one is configured.
package metrics

import (
	"errors"

	prom "github.com/prometheus/client_golang/prometheus"

	"streamsched/internal/model"
	"streamsched/internal/schedule"
)

// Result label values.
const (
	ResultOK         = "ok"
	ResultRangeError = "range_error"
	ResultError      = "error"
)

// Recorder implements schedule.Observer.
type Recorder struct {
	reg         *prom.Registry
	transitions *prom.CounterVec
	streams     prom.Gauge
	templates   prom.Gauge
}

var _ schedule.Observer = (*Recorder)(nil)

// NewRecorder constructs and registers the collectors on reg. A nil reg gets
// a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "streamsched",
			Name:      "transitions_total",
			Help:      "Schedule transitions by action and result",
		}, []string{"action", "result"}),
		streams: prom.NewGauge(prom.GaugeOpts{
			Namespace: "streamsched",
			Name:      "total_streams",
			Help:      "totalStreams of the latest snapshot",
		}),
		templates: prom.NewGauge(prom.GaugeOpts{
			Namespace: "streamsched",
			Name:      "templates",
			Help:      "Template count of the latest snapshot",
		}),
	}
	reg.MustRegister(r.transitions, r.streams, r.templates)
	return r
}

func (r *Recorder) Observe(action string, next *model.State, err error) {
	switch {
	case err == nil:
		r.transitions.WithLabelValues(action, ResultOK).Inc()
	case errors.Is(err, schedule.ErrRange):
		r.transitions.WithLabelValues(action, ResultRangeError).Inc()
	default:
		r.transitions.WithLabelValues(action, ResultError).Inc()
	}
	if next != nil {
		r.Track(next)
	}
}

// Track sets the gauges from s without counting a transition.
func (r *Recorder) Track(s *model.State) {
	r.streams.Set(float64(s.TotalStreams))
	r.templates.Set(float64(len(s.Templates)))
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prom.Registry { return r.reg }

// WriteTextfile writes the registry in text exposition format. An empty path
// is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prom.WriteToTextfile(path, r.reg)
}
