package schedule

import (
	"fmt"
	"time"

	"streamsched/internal/model"
)

// Action is a named transition request. The set of actions is closed; each
// one is handled by the reducer returned from NewReducer.
type Action interface {
	Name() string
	action()
}

// ResetTemplate replaces the state with the container's initial state.
type ResetTemplate struct{}

// SetStartingDate moves the anchor date. When Templates is non-empty the
// templates are replaced by Templates re-dated from StartingDate.
type SetStartingDate struct {
	StartingDate time.Time
	Templates    []model.Template
}

// SetTotalStreams resizes the template list, synthesizing new entries dated
// from StartingDate.
type SetTotalStreams struct {
	TotalStreams int
	StartingDate time.Time
}

type SetTimeZones struct {
	TimeZones []string
}

// SetTemplates replaces every template and resets TotalStreams to match.
type SetTemplates struct {
	Templates []model.Template
}

type SetTemplate struct {
	Index    int
	Template model.Template
}

type RemoveTemplate struct {
	Index int
}

type AddTemplateAfter struct {
	Index    int
	Template model.Template
}

func (ResetTemplate) Name() string    { return "resetTemplate" }
func (SetStartingDate) Name() string  { return "setStartingDate" }
func (SetTotalStreams) Name() string  { return "setTotalStreams" }
func (SetTimeZones) Name() string     { return "setTimeZones" }
func (SetTemplates) Name() string     { return "setTemplates" }
func (SetTemplate) Name() string      { return "setTemplate" }
func (RemoveTemplate) Name() string   { return "removeTemplate" }
func (AddTemplateAfter) Name() string { return "addTemplateAfter" }

func (ResetTemplate) action()    {}
func (SetStartingDate) action()  {}
func (SetTotalStreams) action()  {}
func (SetTimeZones) action()     {}
func (SetTemplates) action()     {}
func (SetTemplate) action()      {}
func (RemoveTemplate) action()   {}
func (AddTemplateAfter) action() {}

// Reducer is a pure transition function. It must not modify its input state;
// on error the returned state is the zero value and must be discarded.
type Reducer func(model.State, Action) (model.State, error)

// Middleware wraps a Reducer.
type Middleware func(Reducer) Reducer

// NewReducer returns the schedule transition function. initial is what
// ResetTemplate restores.
func NewReducer(initial model.State) Reducer {
	initial = initial.Clone()

	return func(s model.State, a Action) (model.State, error) {
		switch a := a.(type) {
		case ResetTemplate:
			return initial.Clone(), nil
		case SetStartingDate:
			return setStartingDate(s, a), nil
		case SetTotalStreams:
			return setTotalStreams(s, a)
		case SetTimeZones:
			next := s.Clone()
			next.TimeZones = make([]string, len(a.TimeZones))
			copy(next.TimeZones, a.TimeZones)
			return next, nil
		case SetTemplates:
			next := s.Clone()
			next.Templates = model.CloneTemplates(a.Templates)
			next.TotalStreams = len(a.Templates)
			return next, nil
		case SetTemplate:
			return setTemplate(s, a)
		case RemoveTemplate:
			return removeTemplate(s, a)
		case AddTemplateAfter:
			return addTemplateAfter(s, a)
		default:
			return model.State{}, fmt.Errorf("schedule: unknown action %T", a)
		}
	}
}

func setStartingDate(s model.State, a SetStartingDate) model.State {
	next := s.Clone()
	next.StartingDate = a.StartingDate

	// An empty list leaves the current templates alone rather than clearing them.
	if len(a.Templates) > 0 {
		templates := make([]model.Template, len(a.Templates))
		for i, t := range a.Templates {
			templates[i] = t.WithDate(model.DayOffset(a.StartingDate, i))
		}
		next.Templates = templates
	}
	return next
}

func setTotalStreams(s model.State, a SetTotalStreams) (model.State, error) {
	if a.TotalStreams < 0 {
		return model.State{}, &RangeError{
			Op:    a.Name(),
			Value: a.TotalStreams,
			Len:   len(s.Templates),
			Msg:   msgNegativeTotal,
		}
	}

	templates := make([]model.Template, a.TotalStreams)
	for i := range templates {
		if i < len(s.Templates) {
			templates[i] = s.Templates[i].Clone()
			continue
		}
		templates[i] = model.Template{Date: model.DayOffset(a.StartingDate, i)}
	}

	next := s.Clone()
	next.TotalStreams = a.TotalStreams
	next.Templates = templates
	return next, nil
}

func setTemplate(s model.State, a SetTemplate) (model.State, error) {
	if err := checkIndex(a.Name(), a.Index, len(s.Templates)); err != nil {
		return model.State{}, err
	}

	next := s.Clone()
	// Index == len passes the bound check but names no element.
	if a.Index < len(next.Templates) {
		next.Templates[a.Index] = a.Template.Clone()
	}
	return next, nil
}

func removeTemplate(s model.State, a RemoveTemplate) (model.State, error) {
	if err := checkIndex(a.Name(), a.Index, len(s.Templates)); err != nil {
		return model.State{}, err
	}

	next := s.Clone()
	if a.Index < len(next.Templates) {
		next.Templates = append(next.Templates[:a.Index], next.Templates[a.Index+1:]...)
	}
	// Decremented even when Index == len removed nothing.
	next.TotalStreams = s.TotalStreams - 1
	return next, nil
}

func addTemplateAfter(s model.State, a AddTemplateAfter) (model.State, error) {
	if err := checkIndex(a.Name(), a.Index, len(s.Templates)); err != nil {
		return model.State{}, err
	}

	pos := min(a.Index+1, len(s.Templates))
	templates := make([]model.Template, 0, len(s.Templates)+1)
	templates = append(templates, model.CloneTemplates(s.Templates[:pos])...)
	templates = append(templates, a.Template.Clone())
	templates = append(templates, model.CloneTemplates(s.Templates[pos:])...)

	next := s.Clone()
	next.Templates = templates
	next.TotalStreams = s.TotalStreams + 1
	return next, nil
}
