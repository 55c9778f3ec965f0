package schedule

import (
	"sync"
	"time"

	"streamsched/internal/model"
)

// Observer is told about every dispatched transition. next is nil when err is
// non-nil. Observers must treat next as read-only.
type Observer interface {
	Observe(action string, next *model.State, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(action string, next *model.State, err error)

func (f ObserverFunc) Observe(action string, next *model.State, err error) { f(action, next, err) }

// Persister receives every successfully published snapshot.
type Persister interface {
	Persist(s *model.State)
}

// Listener is called after a snapshot is published.
type Listener func(next, prev *model.State)

// Option configures a Container.
type Option func(*Container)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(c *Container) { c.observers = append(c.observers, o) }
}

// WithPersister attaches a persister.
func WithPersister(p Persister) Option {
	return func(c *Container) { c.persisters = append(c.persisters, p) }
}

// WithMiddleware wraps the reducer. Middlewares apply in the order given, the
// first one being the outermost. A middleware must not fail actions that the
// reducer itself never rejects (resetTemplate, setStartingDate, setTimeZones,
// setTemplates); their container methods panic on error.
func WithMiddleware(m Middleware) Option {
	return func(c *Container) { c.middleware = append(c.middleware, m) }
}

// WithSeed publishes seed as the first snapshot instead of the initial state.
// ResetTemplate still restores the initial state. Used to restore a persisted
// snapshot at startup.
func WithSeed(seed model.State) Option {
	return func(c *Container) {
		s := seed.Clone()
		c.seed = &s
	}
}

// Container holds the current schedule snapshot and applies transitions.
//
// Transitions are serialized: each one runs the reducer against the current
// snapshot and publishes a new *model.State, or fails and publishes nothing.
// Readers never see a partially applied transition.
type Container struct {
	writeMu sync.Mutex

	mu      sync.RWMutex
	current *model.State

	initial model.State
	seed    *model.State
	reduce  Reducer

	observers  []Observer
	persisters []Persister
	middleware []Middleware

	subsMu  sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// New constructs a container whose initial state is initial.
func New(initial model.State, opts ...Option) *Container {
	c := &Container{
		initial: initial.Clone(),
		subs:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}

	reduce := NewReducer(c.initial)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		reduce = c.middleware[i](reduce)
	}
	c.reduce = reduce

	first := c.initial.Clone()
	if c.seed != nil {
		first = *c.seed
	}
	c.current = &first
	return c
}

// NewDefault constructs a container with one stream dated now.
func NewDefault(now time.Time, opts ...Option) *Container {
	return New(model.Initial(now), opts...)
}

// Snapshot returns the current snapshot. It must not be modified.
func (c *Container) Snapshot() *model.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Select applies sel to a single consistent snapshot.
func Select[T any](c *Container, sel func(*model.State) T) T {
	return sel(c.Snapshot())
}

// Subscribe registers l for every published snapshot and returns a function
// that removes it. Listeners run synchronously on the dispatching goroutine
// after the write lock is released, so they may dispatch further actions.
func (c *Container) Subscribe(l Listener) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = l
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// Dispatch applies a to the current snapshot. On success the new snapshot is
// published and returned; on failure the current snapshot is left in place.
func (c *Container) Dispatch(a Action) (*model.State, error) {
	prev, next, err := c.apply(a)
	if err != nil {
		c.notifyObservers(a.Name(), nil, err)
		return nil, err
	}

	c.notifyObservers(a.Name(), next, nil)
	for _, p := range c.persisters {
		p.Persist(next)
	}
	for _, l := range c.listeners() {
		l(next, prev)
	}
	return next, nil
}

// apply runs the reducer and publishes the result under the write lock. A
// panicking middleware releases the lock on the way out.
func (c *Container) apply(a Action) (prev, next *model.State, err error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev = c.Snapshot()
	s, err := c.reduce(*prev, a)
	if err != nil {
		return prev, nil, err
	}

	next = &s
	c.mu.Lock()
	c.current = next
	c.mu.Unlock()
	return prev, next, nil
}

func (c *Container) notifyObservers(name string, next *model.State, err error) {
	for _, o := range c.observers {
		o.Observe(name, next, err)
	}
}

func (c *Container) listeners() []Listener {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]Listener, 0, len(c.subs))
	for _, l := range c.subs {
		out = append(out, l)
	}
	return out
}

// mustDispatch is for actions that cannot fail.
func (c *Container) mustDispatch(a Action) *model.State {
	s, err := c.Dispatch(a)
	if err != nil {
		panic(err)
	}
	return s
}

// ResetTemplate restores the initial state.
func (c *Container) ResetTemplate() *model.State {
	return c.mustDispatch(ResetTemplate{})
}

// SetStartingDate sets the anchor date and, for a non-empty templates list,
// replaces the templates with it re-dated day by day from startingDate.
func (c *Container) SetStartingDate(startingDate time.Time, templates []model.Template) *model.State {
	return c.mustDispatch(SetStartingDate{StartingDate: startingDate, Templates: templates})
}

// SetTotalStreams resizes the templates to totalStreams entries.
func (c *Container) SetTotalStreams(totalStreams int, startingDate time.Time) (*model.State, error) {
	return c.Dispatch(SetTotalStreams{TotalStreams: totalStreams, StartingDate: startingDate})
}

func (c *Container) SetTimeZones(timeZones []string) *model.State {
	return c.mustDispatch(SetTimeZones{TimeZones: timeZones})
}

func (c *Container) SetTemplates(templates []model.Template) *model.State {
	return c.mustDispatch(SetTemplates{Templates: templates})
}

func (c *Container) SetTemplate(index int, t model.Template) (*model.State, error) {
	return c.Dispatch(SetTemplate{Index: index, Template: t})
}

func (c *Container) RemoveTemplate(index int) (*model.State, error) {
	return c.Dispatch(RemoveTemplate{Index: index})
}

func (c *Container) AddTemplateAfter(index int, t model.Template) (*model.State, error) {
	return c.Dispatch(AddTemplateAfter{Index: index, Template: t})
}
