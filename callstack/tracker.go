// Package callstack keeps one stack of open entry events per execution
// context and pairs every exit with the entry it closes.
package callstack

import (
	"sync"
	"time"

	"github.com/petermattis/goid"
	"github.com/rs/xid"
	"github.com/sarchlab/minstrel/event"
)

// ContextID identifies an execution context. Goroutines are the execution
// contexts of a Go program.
type ContextID int64

// Current returns the ID of the calling goroutine.
func Current() ContextID {
	return ContextID(goid.Get())
}

// A Clock can tell the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

type stack struct {
	sync.Mutex
	frames []event.Event
}

// A Tracker owns the call stacks of all the execution contexts. Each context
// only pushes and pops its own stack, so the tracker never takes a global
// lock on the push/pop path.
type Tracker struct {
	clock  Clock
	stacks sync.Map
}

// NewTracker creates a Tracker. A nil clock means the wall clock.
func NewTracker(clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Tracker{clock: clock}
}

func (t *Tracker) stackOf(ctx ContextID) *stack {
	s, ok := t.stacks.Load(ctx)
	if ok {
		return s.(*stack)
	}

	s, _ = t.stacks.LoadOrStore(ctx, &stack{})

	return s.(*stack)
}

func (t *Tracker) newEvent(
	ctx ContextID,
	kind event.Kind,
	target, op string,
	recv any,
	args []any,
) event.Event {
	return event.Event{
		ID:        xid.New().String(),
		Context:   int64(ctx),
		Kind:      kind,
		Target:    target,
		Operation: op,
		Receiver:  recv,
		Args:      args,
		Time:      t.clock.Now(),
	}
}

// Open builds an entry event and pushes it onto the stack of ctx. The depth
// of the event is the size of the stack after the push.
func (t *Tracker) Open(
	ctx ContextID,
	kind event.Kind,
	target, op string,
	recv any,
	args []any,
) event.Event {
	evt := t.newEvent(ctx, kind, target, op, recv, args)
	s := t.stackOf(ctx)

	s.Lock()
	if n := len(s.frames); n > 0 {
		evt.ParentID = s.frames[n-1].ID
	}
	evt.Depth = len(s.frames) + 1
	s.frames = append(s.frames, evt)
	s.Unlock()

	return evt
}

// Close builds an exit event and pops the matching entry from the stack of
// ctx. The depth is taken before the pop, so it equals the depth of the
// entry. If the stack is empty, the exit is returned unpaired and with a
// depth of zero. This happens when tracing starts in the middle of a call.
// A paired exit takes the level of its entry, so a failure reported without
// a level still closes a type-level call as a type-level exit.
func (t *Tracker) Close(
	ctx ContextID,
	kind event.Kind,
	target, op string,
	recv any,
	args []any,
	err error,
) event.Event {
	evt := t.newEvent(ctx, kind, target, op, recv, args)
	evt.Err = err
	s := t.stackOf(ctx)

	s.Lock()
	n := len(s.frames)
	evt.Depth = n

	if n > 0 {
		entry := s.frames[n-1]
		s.frames[n-1] = event.Event{}
		s.frames = s.frames[:n-1]

		evt.EntryID = entry.ID
		evt.ParentID = entry.ParentID
		evt.Duration = evt.Time.Sub(entry.Time)
		evt.Paired = true

		if kind.IsExit() && entry.Kind.IsClass() != kind.IsClass() {
			evt.Kind = event.ExitKind(entry.Kind.IsClass(), kind.IsFailure())
		}

		if len(evt.Args) == 0 {
			evt.Args = entry.Args
		}
	}

	empty := len(s.frames) == 0
	s.Unlock()

	if empty {
		t.stacks.CompareAndDelete(ctx, s)
	}

	return evt
}

// Step builds an event that neither pushes nor pops. Its depth is the
// current size of the stack.
func (t *Tracker) Step(
	ctx ContextID,
	target, op string,
	recv any,
	args []any,
) event.Event {
	evt := t.newEvent(ctx, event.Step, target, op, recv, args)

	s, ok := t.stacks.Load(ctx)
	if !ok {
		return evt
	}

	st := s.(*stack)
	st.Lock()
	if n := len(st.frames); n > 0 {
		evt.ParentID = st.frames[n-1].ID
		evt.Depth = n
	}
	st.Unlock()

	return evt
}

// Unwind pops frames from the stack of ctx until the entry with the given ID
// is removed. It returns false if the entry is not on the stack, in which
// case the stack is left untouched.
func (t *Tracker) Unwind(ctx ContextID, entryID string) bool {
	s, ok := t.stacks.Load(ctx)
	if !ok {
		return false
	}

	st := s.(*stack)
	st.Lock()

	found := -1
	for i := len(st.frames) - 1; i >= 0; i-- {
		if st.frames[i].ID == entryID {
			found = i
			break
		}
	}

	if found >= 0 {
		clear(st.frames[found:])
		st.frames = st.frames[:found]
	}

	empty := len(st.frames) == 0
	st.Unlock()

	if empty {
		t.stacks.CompareAndDelete(ctx, st)
	}

	return found >= 0
}

// Depth returns the number of open entries of ctx.
func (t *Tracker) Depth(ctx ContextID) int {
	s, ok := t.stacks.Load(ctx)
	if !ok {
		return 0
	}

	st := s.(*stack)
	st.Lock()
	defer st.Unlock()

	return len(st.frames)
}

// Snapshot copies the open entries of every context, outermost first.
func (t *Tracker) Snapshot() map[ContextID][]event.Event {
	snapshot := make(map[ContextID][]event.Event)

	t.stacks.Range(func(key, value any) bool {
		st := value.(*stack)

		st.Lock()
		if len(st.frames) > 0 {
			frames := make([]event.Event, len(st.frames))
			copy(frames, st.frames)
			snapshot[key.(ContextID)] = frames
		}
		st.Unlock()

		return true
	})

	return snapshot
}
