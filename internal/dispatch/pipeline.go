// Package dispatch routes inbound platform events through an ordered list of
// stages. Each stage holds matchers in registration order; processing one
// event runs the FIRST matcher whose predicate matches in each stage, then
// moves on to the next stage regardless. Stages are not mutually exclusive:
// an early stage deleting a message does not stop a later stage from
// replying. Halting is an explicit choice: an action returns
// ErrStopPropagation to suppress all later stages for that event.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/metrics"
)

// ErrStopPropagation, returned from an action, stops the pipeline from
// evaluating any later stage for the current event. Any other action error
// is logged and propagation continues (moderation is best-effort).
var ErrStopPropagation = errors.New("dispatch: stop propagation")

// Predicate decides whether a matcher's action runs for an event.
type Predicate func(evt *gateway.Event) bool

// Action handles a matched event.
type Action func(ctx context.Context, evt *gateway.Event) error

// Matcher pairs a predicate with the action to run when it matches.
type Matcher struct {
	Name      string // for logs and metrics
	Predicate Predicate
	Action    Action
}

// stage is one priority level: an ordered, short-circuiting matcher list.
type stage struct {
	priority int
	matchers []Matcher
}

// Pipeline is the ordered collection of stages. Register all matchers before
// calling Process; the pipeline is immutable while events flow.
type Pipeline struct {
	stages []*stage
	byPrio map[int]*stage
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{byPrio: make(map[int]*stage)}
}

// Register appends a matcher to the stage with the given priority, creating
// the stage if needed. Priority numbers may be sparse; stages run in
// ascending order. Matchers within a stage run in registration order.
func (p *Pipeline) Register(priority int, m Matcher) {
	st, ok := p.byPrio[priority]
	if !ok {
		st = &stage{priority: priority}
		p.byPrio[priority] = st
		p.stages = append(p.stages, st)
		sort.Slice(p.stages, func(i, j int) bool {
			return p.stages[i].priority < p.stages[j].priority
		})
	}
	st.matchers = append(st.matchers, m)
}

// Process runs one event through every stage in ascending priority order.
// Within each stage only the first matching matcher fires. Action errors
// other than ErrStopPropagation are logged and do not affect later stages.
func (p *Pipeline) Process(ctx context.Context, evt *gateway.Event) {
	metrics.EventsTotal.Inc()

	for _, st := range p.stages {
		for i := range st.matchers {
			m := &st.matchers[i]
			if !m.Predicate(evt) {
				continue
			}

			err := m.Action(ctx, evt)
			if errors.Is(err, ErrStopPropagation) {
				return
			}
			if err != nil {
				log.Printf("[dispatch] stage=%d matcher=%s event=%s: %v",
					st.priority, m.Name, evt.ID, err)
				metrics.HandlerErrors.WithLabelValues(m.Name).Inc()
			}
			break // first match per stage only
		}
	}
}
