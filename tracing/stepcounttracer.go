package tracing

import (
	"sync"

	"github.com/sarchlab/minstrel/event"
)

// StepCountTracer counts how many times execution reaches each step, and how
// many calls reach each step at least once.
type StepCountTracer struct {
	filter            event.Filter
	lock              sync.Mutex
	inflightCalls     map[string]map[string]bool
	stepNames         []string
	stepCount         map[string]uint64
	callWithStepCount map[string]uint64
}

// NewStepCountTracer creates a new StepCountTracer. The filter selects the
// calls whose steps are counted.
func NewStepCountTracer(filter event.Filter) *StepCountTracer {
	t := &StepCountTracer{
		filter:            filter,
		inflightCalls:     make(map[string]map[string]bool),
		stepCount:         make(map[string]uint64),
		callWithStepCount: make(map[string]uint64),
	}
	return t
}

// GetStepNames returns all the step names collected.
func (t *StepCountTracer) GetStepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.stepNames...)
}

// GetStepCount returns the number of times a step is reached.
func (t *StepCountTracer) GetStepCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[stepName]
}

// GetCallCount returns the number of calls that reached a step.
func (t *StepCountTracer) GetCallCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.callWithStepCount[stepName]
}

// Observe tracks the open calls and counts the steps.
func (t *StepCountTracer) Observe(evt event.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch {
	case evt.Kind == event.Step:
		t.countStep(evt)
		t.countCall(evt)
	case evt.Kind.IsEntry():
		if t.filter.Match(evt) {
			t.inflightCalls[evt.ID] = make(map[string]bool)
		}
	case evt.Kind.IsExit():
		delete(t.inflightCalls, evt.EntryID)
	}

	return nil
}

func (t *StepCountTracer) countStep(evt event.Event) {
	name := evt.Name()
	if _, ok := t.stepCount[name]; !ok {
		t.stepNames = append(t.stepNames, name)
	}
	t.stepCount[name]++
}

func (t *StepCountTracer) countCall(evt event.Event) {
	steps, ok := t.inflightCalls[evt.ParentID]
	if !ok {
		return
	}

	name := evt.Name()
	if !steps[name] {
		steps[name] = true
		t.callWithStepCount[name]++
	}
}
