// Package hooking holds the observers that receive call events and
// dispatches every event to the observers whose filter accepts it.
package hooking

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/minstrel/event"
)

// An Observer is a short piece of program that is invoked for every event
// that passes its filter.
type Observer interface {
	// Observe handles the event. A returned error aborts the instrumented
	// call that produced the event.
	Observe(evt event.Event) error
}

// ObserverFunc turns a function into an Observer.
type ObserverFunc func(evt event.Event) error

// Observe calls f.
func (f ObserverFunc) Observe(evt event.Event) error {
	return f(evt)
}

// ObserverError is returned when an observer fails while handling an event.
type ObserverError struct {
	Index  int
	Filter event.Filter
	Event  event.Event
	Err    error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %d (%s) failed on %s %s: %v",
		e.Index, e.Filter, e.Event.Kind, e.Event.Name(), e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// A Registration is the handle of one registered observer.
type Registration struct {
	registry *Registry
	filter   event.Filter
	observer Observer
	count    atomic.Uint64
}

// Filter returns the filter of the registration.
func (r *Registration) Filter() event.Filter {
	return r.filter
}

// Observer returns the registered observer.
func (r *Registration) Observer() Observer {
	return r.observer
}

// Count returns the number of events delivered to the observer.
func (r *Registration) Count() uint64 {
	return r.count.Load()
}

// Cancel removes the observer from the registry. Events dispatched after
// Cancel returns are not delivered to it.
func (r *Registration) Cancel() {
	r.registry.remove(r)
}

// A Registry keeps the observers in registration order. Registering and
// cancelling are serialized; dispatching reads an immutable snapshot and
// never waits on them.
type Registry struct {
	lock          sync.Mutex
	registrations atomic.Pointer[[]*Registration]
	isolated      bool
	logger        *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{logger: slog.Default()}
	r.registrations.Store(&[]*Registration{})

	return r
}

// WithLogger sets the logger that receives observer failures.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithIsolation makes the registry carry on with the next observer after a
// failure instead of returning the failure.
func (r *Registry) WithIsolation(logger *slog.Logger) *Registry {
	r.isolated = true
	if logger != nil {
		r.logger = logger
	}

	return r
}

// Register adds an observer. The zero filter receives all events.
func (r *Registry) Register(
	filter event.Filter,
	observer Observer,
) *Registration {
	if observer == nil {
		panic("observer must not be nil")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	current := *r.registrations.Load()
	r.mustNotHaveDuplicatedObserver(current, filter, observer)

	reg := &Registration{
		registry: r,
		filter:   filter,
		observer: observer,
	}

	next := make([]*Registration, len(current), len(current)+1)
	copy(next, current)
	next = append(next, reg)
	r.registrations.Store(&next)

	return reg
}

func (r *Registry) mustNotHaveDuplicatedObserver(
	current []*Registration,
	filter event.Filter,
	observer Observer,
) {
	id, ok := identity(observer)
	if !ok {
		return
	}

	for _, reg := range current {
		if reg.filter != filter {
			continue
		}

		if other, ok := identity(reg.observer); ok && other == id {
			panic("duplicated observer")
		}
	}
}

type observerID struct {
	t   reflect.Type
	ptr uintptr
}

// identity returns the address of pointer-like observers. Values of other
// kinds have no identity, and comparing them with == may panic.
func identity(observer Observer) (observerID, bool) {
	v := reflect.ValueOf(observer)

	switch v.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.UnsafePointer:
		return observerID{t: v.Type(), ptr: v.Pointer()}, true
	default:
		return observerID{}, false
	}
}

func (r *Registry) remove(reg *Registration) {
	r.lock.Lock()
	defer r.lock.Unlock()

	current := *r.registrations.Load()
	next := make([]*Registration, 0, len(current))

	for _, c := range current {
		if c != reg {
			next = append(next, c)
		}
	}

	r.registrations.Store(&next)
}

// Registrations returns the registered observers in dispatch order.
func (r *Registry) Registrations() []*Registration {
	current := *r.registrations.Load()
	out := make([]*Registration, len(current))
	copy(out, current)

	return out
}

// NumObservers returns the number of registered observers.
func (r *Registry) NumObservers() int {
	return len(*r.registrations.Load())
}

// Dispatch delivers the event to every matching observer, in registration
// order and in the calling goroutine. The first failure stops the fan-out
// and is returned as an *ObserverError, unless the registry is isolated.
func (r *Registry) Dispatch(evt event.Event) error {
	for i, reg := range *r.registrations.Load() {
		if !reg.filter.Match(evt) {
			continue
		}

		reg.count.Add(1)

		err := reg.observer.Observe(evt)
		if err == nil {
			continue
		}

		obsErr := &ObserverError{
			Index:  i,
			Filter: reg.filter,
			Event:  evt,
			Err:    err,
		}

		r.logger.Error("observer failed", "error", obsErr)

		if !r.isolated {
			return obsErr
		}
	}

	return nil
}

// Observe makes the registry an Observer, so that it can be handed to the
// interception engine as its dispatch function.
func (r *Registry) Observe(evt event.Event) error {
	return r.Dispatch(evt)
}
