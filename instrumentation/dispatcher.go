package instrumentation

import (
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
)

// dispatcher delivers events to the registered observers and to the tracers
// of the instrument. Tracers see an entry only after every observer accepted
// it, and they see every exit and step. A call that an observer aborts is
// therefore never left open in a tracer.
type dispatcher struct {
	observers *hooking.Registry
	tracers   *hooking.Registry
}

func (d *dispatcher) Observe(evt event.Event) error {
	if evt.Kind.IsEntry() {
		if err := d.observers.Observe(evt); err != nil {
			return err
		}

		return d.tracers.Observe(evt)
	}

	if err := d.tracers.Observe(evt); err != nil {
		return err
	}

	return d.observers.Observe(evt)
}
