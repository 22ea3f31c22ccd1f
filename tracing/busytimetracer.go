package tracing

import (
	"container/list"
	"sync"
	"time"

	"github.com/sarchlab/minstrel/event"
)

type callStartEnd struct {
	start, end time.Time
	completed  bool
}

// BusyTimeTracer traces the time that the program spends in the calls that
// pass its filter. If calls overlap, in one context or across contexts, the
// overlapped time is only counted once.
type BusyTimeTracer struct {
	lock          sync.Mutex
	filter        event.Filter
	inflightCalls map[string]*list.Element
	callTimes     *list.List
	busyTime      time.Duration
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(filter event.Filter) *BusyTimeTracer {
	t := &BusyTimeTracer{
		filter:        filter,
		inflightCalls: make(map[string]*list.Element),
		callTimes:     list.New(),
	}

	t.callTimes.Init()

	return t
}

// BusyTime returns the total time spent in the calls.
func (t *BusyTimeTracer) BusyTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// TerminateAllCalls marks all the open calls as completed at now.
func (t *BusyTimeTracer) TerminateAllCalls(now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for e := t.callTimes.Front(); e != nil; e = e.Next() {
		c := e.Value.(*callStartEnd)
		if !c.completed {
			c.completed = true
			c.end = now
		}
	}

	t.inflightCalls = make(map[string]*list.Element)
	t.collapse(now)
}

// Observe opens an interval on entry and closes it on the paired exit.
func (t *BusyTimeTracer) Observe(evt event.Event) error {
	if !t.filter.Match(evt) {
		return nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	switch {
	case evt.Kind.IsEntry():
		t.startCall(evt)
	case evt.Kind.IsExit() && evt.Paired:
		t.endCall(evt)
	}

	return nil
}

func (t *BusyTimeTracer) startCall(evt event.Event) {
	elem := t.callTimes.PushBack(&callStartEnd{start: evt.Time})
	t.inflightCalls[evt.ID] = elem
}

func (t *BusyTimeTracer) endCall(evt event.Event) {
	elem, ok := t.inflightCalls[evt.EntryID]
	if !ok {
		return
	}

	c := elem.Value.(*callStartEnd)
	c.end = evt.Time
	c.completed = true
	delete(t.inflightCalls, evt.EntryID)

	t.collapse(evt.Time)
}

func (t *BusyTimeTracer) extendCallTime(base, c2 *callStartEnd) {
	if c2.start.Before(base.start) {
		base.start = c2.start
	}

	if c2.end.After(base.end) {
		base.end = c2.end
	}
}

func (t *BusyTimeTracer) collapse(now time.Time) {
	start, found := t.startTimeOfFirstIncompleteCall()
	if found && start.Before(now) {
		return
	}

	finished := make([]*callStartEnd, 0)

	var next *list.Element
	for e := t.callTimes.Front(); e != nil; e = next {
		next = e.Next()

		c := e.Value.(*callStartEnd)
		if !c.completed {
			break
		}

		if !c.end.After(now) {
			finished = append(finished, c)
			t.callTimes.Remove(e)
		}
	}

	t.busyTime += t.callBusyTime(finished)
}

func (t *BusyTimeTracer) startTimeOfFirstIncompleteCall() (time.Time, bool) {
	for e := t.callTimes.Front(); e != nil; e = e.Next() {
		c := e.Value.(*callStartEnd)
		if !c.completed {
			return c.start, true
		}
	}

	return time.Time{}, false
}

func (t *BusyTimeTracer) callBusyTime(calls []*callStartEnd) time.Duration {
	busyTime := time.Duration(0)
	coveredMask := make(map[int]bool)

	for i, c1 := range calls {
		if coveredMask[i] {
			continue
		}

		coveredMask[i] = true

		ext := callStartEnd{
			start: c1.start,
			end:   c1.end,
		}

		for j, c2 := range calls {
			if coveredMask[j] {
				continue
			}

			if t.callTimeOverlap(&ext, c2) {
				coveredMask[j] = true
				t.extendCallTime(&ext, c2)
			}
		}

		busyTime += ext.end.Sub(ext.start)
	}

	return busyTime
}

func (t *BusyTimeTracer) callTimeOverlap(c1, c2 *callStartEnd) bool {
	return !c1.start.After(c2.end) && !c2.start.After(c1.end)
}
