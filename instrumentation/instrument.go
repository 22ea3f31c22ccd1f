// Package instrumentation puts the tracker, the interception engine, the
// observer registry and the tracers together behind a single handle.
package instrumentation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/datarecording"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
	"github.com/sarchlab/minstrel/intercept"
	"github.com/sarchlab/minstrel/monitoring"
	"github.com/sarchlab/minstrel/tracing"
)

// An Instrument observes the calls of the types it wraps. All wrapped types
// and the global adapter report to the same observer registry and to the
// tracers the instrument keeps.
type Instrument struct {
	id     string
	logger *slog.Logger

	tracker  *callstack.Tracker
	registry *hooking.Registry
	tracers  *hooking.Registry
	dispatch *dispatcher
	engine   *intercept.Engine
	catalog  *intercept.Catalog
	deferred *intercept.Deferred
	probe    *tracing.Probe
	adapter  *tracing.Adapter
	stats    *tracing.AverageTimeTracer
	busy     *tracing.BusyTimeTracer
	steps    *tracing.StepCountTracer
	traces   *tracing.BackTraceTracer

	recorder     *datarecording.Recorder
	callRecorder *tracing.CallRecorder
	jsonTrace    *tracing.JSONTracer
	monitor      *monitoring.Monitor
}

// ID returns the unique ID of the instrument.
func (i *Instrument) ID() string {
	return i.id
}

// Observe registers an observer. The filter is "" for all events, a type
// name, or a "Type#op" name.
func (i *Instrument) Observe(
	filter string,
	obs hooking.Observer,
) (*hooking.Registration, error) {
	var f event.Filter

	if filter != "" {
		var err error

		f, err = event.ParseTarget(filter)
		if err != nil {
			return nil, err
		}
	}

	return i.registry.Register(f, obs), nil
}

// Wrap wraps the operations of t, or only op when op is not empty.
func (i *Instrument) Wrap(t *intercept.Type, op string) error {
	return i.engine.Wrap(t, i.dispatch, op)
}

// WrapByName wraps the named type or type#operation, now if it is declared,
// or once it is loaded.
func (i *Instrument) WrapByName(id string) (bool, error) {
	return i.deferred.WrapByName(id, i.dispatch)
}

// Load declares newly loaded types and retries the pending wraps.
func (i *Instrument) Load(types ...*intercept.Type) error {
	if err := i.catalog.Declare(types...); err != nil {
		return err
	}

	return i.deferred.RetryAll()
}

// RetryAll retries the pending wraps.
func (i *Instrument) RetryAll() error {
	return i.deferred.RetryAll()
}

// Pending returns the wrap requests that are not resolved yet.
func (i *Instrument) Pending() []string {
	return i.deferred.Pending()
}

// Enable starts turning the notifications of the probe into events.
func (i *Instrument) Enable() {
	i.adapter.Enable()
}

// Disable stops the global adapter.
func (i *Instrument) Disable() {
	i.adapter.Disable()
}

// Probe returns the channel of the explicit instrumentation points.
func (i *Instrument) Probe() *tracing.Probe {
	return i.probe
}

// Tracker returns the call-stack tracker.
func (i *Instrument) Tracker() *callstack.Tracker {
	return i.tracker
}

// Catalog returns the declared types.
func (i *Instrument) Catalog() *intercept.Catalog {
	return i.catalog
}

// Registry returns the observer registry.
func (i *Instrument) Registry() *hooking.Registry {
	return i.registry
}

// Stats returns the per-operation statistics of the completed calls.
func (i *Instrument) Stats() []tracing.OperationStat {
	return i.stats.Stats()
}

// BusyTime returns the time during which at least one completed call was
// running.
func (i *Instrument) BusyTime() time.Duration {
	return i.busy.BusyTime()
}

// Steps returns the tracer that counts the steps reached through the probe.
func (i *Instrument) Steps() *tracing.StepCountTracer {
	return i.steps
}

// BackTrace returns the open call with the given ID followed by its callers.
func (i *Instrument) BackTrace(id string) []event.Event {
	return i.traces.BackTrace(id)
}

// Recorder returns the database recorder, or nil if calls are not recorded.
func (i *Instrument) Recorder() *datarecording.Recorder {
	return i.recorder
}

// Monitor returns the monitor, or nil if it is not started.
func (i *Instrument) Monitor() *monitoring.Monitor {
	return i.monitor
}

// Close disables the adapter, flushes the recorded calls and stops the
// monitor.
func (i *Instrument) Close() error {
	i.adapter.Disable()

	var errs []error

	if i.callRecorder != nil {
		errs = append(errs, i.callRecorder.Terminate())
	}

	if i.recorder != nil {
		errs = append(errs, i.recorder.Close())
	}

	if i.jsonTrace != nil {
		errs = append(errs, i.jsonTrace.Finish())
	}

	if i.monitor != nil {
		errs = append(errs, i.monitor.Close())
	}

	return errors.Join(errs...)
}
