package tracing

import (
	"fmt"
	"sync"

	"github.com/sarchlab/minstrel/event"
)

// EventPrinter can print events with a format.
type EventPrinter interface {
	Print(evt event.Event)
}

type defaultEventPrinter struct {
}

func (p *defaultEventPrinter) Print(evt event.Event) {
	fmt.Printf("%s@%d depth %d\n", evt.Name(), evt.Context, evt.Depth)
}

// BackTraceTracer keeps the calls that have not returned yet.
type BackTraceTracer struct {
	printer   EventPrinter
	openCalls map[string]event.Event
	lock      sync.Mutex
}

// NewBackTraceTracer creates a new BackTraceTracer
func NewBackTraceTracer(printer EventPrinter) *BackTraceTracer {
	t := &BackTraceTracer{
		printer:   printer,
		openCalls: make(map[string]event.Event),
	}

	if t.printer == nil {
		t.printer = &defaultEventPrinter{}
	}

	return t
}

// Observe records entries and forgets them when they are paired.
func (t *BackTraceTracer) Observe(evt event.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch {
	case evt.Kind.IsEntry():
		t.openCalls[evt.ID] = evt
	case evt.Kind.IsExit() && evt.Paired:
		delete(t.openCalls, evt.EntryID)
	}

	return nil
}

// OpenCalls returns the number of calls that have not returned.
func (t *BackTraceTracer) OpenCalls() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.openCalls)
}

// BackTrace returns the open call with the given ID followed by its callers,
// innermost first. It is empty if the call is not open.
func (t *BackTraceTracer) BackTrace(id string) []event.Event {
	t.lock.Lock()
	defer t.lock.Unlock()

	var calls []event.Event
	for id != "" {
		evt, ok := t.openCalls[id]
		if !ok {
			break
		}

		calls = append(calls, evt)
		id = evt.ParentID
	}

	return calls
}

// DumpBackTrace prints the open call with the given ID and all its callers.
func (t *BackTraceTracer) DumpBackTrace(id string) {
	for _, evt := range t.BackTrace(id) {
		t.printer.Print(evt)
	}
}
