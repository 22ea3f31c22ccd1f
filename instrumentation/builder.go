package instrumentation

import (
	"log/slog"

	"github.com/rs/xid"
	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/datarecording"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
	"github.com/sarchlab/minstrel/intercept"
	"github.com/sarchlab/minstrel/monitoring"
	"github.com/sarchlab/minstrel/tracing"
)

// Builder can be used to build an Instrument.
type Builder struct {
	clock       callstack.Clock
	logger      *slog.Logger
	isolated    bool
	strictProbe bool
	recordOn    bool
	recordPath  string
	jsonOn      bool
	jsonPath    string
	monitorOn   bool
	monitorPort int
}

// MakeBuilder creates a new builder. By default observer failures abort the
// instrumented call, nothing is recorded and no monitor is started.
func MakeBuilder() Builder {
	return Builder{
		logger: slog.Default(),
	}
}

// WithClock sets the clock that timestamps events.
func (b Builder) WithClock(clock callstack.Clock) Builder {
	b.clock = clock
	return b
}

// WithLogger sets the diagnostic logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithIsolation makes observer failures logged instead of aborting the
// instrumented call.
func (b Builder) WithIsolation() Builder {
	b.isolated = true
	return b
}

// WithStrictProbe makes the instrumentation points of the probe panic when
// an observer fails.
func (b Builder) WithStrictProbe() Builder {
	b.strictProbe = true
	return b
}

// WithRecorder records every completed call in a SQLite database. An empty
// path picks a unique file name.
func (b Builder) WithRecorder(path string) Builder {
	b.recordOn = true
	b.recordPath = path
	return b
}

// WithJSONTrace writes every completed call to a JSON file. An empty path
// picks a unique file name.
func (b Builder) WithJSONTrace(path string) Builder {
	b.jsonOn = true
	b.jsonPath = path
	return b
}

// WithMonitor starts the monitoring server.
func (b Builder) WithMonitor() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.logger == nil {
		panic("logger must not be nil")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.monitorPort < 0 {
		panic("monitor port must not be negative")
	}
}

// Build builds the Instrument.
func (b Builder) Build() (*Instrument, error) {
	b.parametersMustBeValid()

	i := &Instrument{
		id:     xid.New().String(),
		logger: b.logger,
	}

	i.tracker = callstack.NewTracker(b.clock)

	i.registry = hooking.NewRegistry().WithLogger(b.logger)
	i.tracers = hooking.NewRegistry().WithIsolation(b.logger)
	i.dispatch = &dispatcher{observers: i.registry, tracers: i.tracers}
	i.engine = intercept.NewEngine(i.tracker).WithLogger(b.logger)
	if b.isolated {
		i.registry.WithIsolation(b.logger)
		i.engine.WithObserverIsolation()
	}

	i.catalog = intercept.NewCatalog()
	i.deferred = intercept.NewDeferred(i.catalog, i.engine)

	i.probe = tracing.NewProbe().WithLogger(b.logger)
	if b.strictProbe {
		i.probe.Strict()
	}

	i.adapter = tracing.NewAdapter(i.probe, i.tracker, i.dispatch).
		WithLogger(b.logger)

	i.stats = tracing.NewAverageTimeTracer(event.Filter{})
	i.busy = tracing.NewBusyTimeTracer(event.Filter{})
	i.steps = tracing.NewStepCountTracer(event.Filter{})
	i.traces = tracing.NewBackTraceTracer(nil)
	i.tracers.Register(event.Filter{}, i.stats)
	i.tracers.Register(event.Filter{}, i.busy)
	i.tracers.Register(event.Filter{}, i.steps)
	i.tracers.Register(event.Filter{}, i.traces)

	if b.recordOn {
		if err := i.startRecording(b.recordPath); err != nil {
			return nil, err
		}
	}

	if b.jsonOn {
		jsonTrace, err := tracing.NewJSONFileTracer(b.jsonPath)
		if err != nil {
			i.Close()
			return nil, err
		}

		i.jsonTrace = jsonTrace
		i.tracers.Register(event.Filter{}, jsonTrace)
	}

	if b.monitorOn {
		if err := i.startMonitor(b.monitorPort); err != nil {
			i.Close()
			return nil, err
		}
	}

	return i, nil
}

func (i *Instrument) startRecording(path string) error {
	recorder, err := datarecording.NewRecorder(path)
	if err != nil {
		return err
	}

	i.recorder = recorder
	i.callRecorder = tracing.NewCallRecorder(recorder, event.Filter{})
	i.tracers.Register(event.Filter{}, i.callRecorder)

	return nil
}

func (i *Instrument) startMonitor(port int) error {
	i.monitor = monitoring.NewMonitor()
	if port > 0 {
		i.monitor.WithPortNumber(port)
	}

	i.monitor.RegisterTracker(i.tracker)
	i.monitor.RegisterRegistry(i.registry)
	i.monitor.RegisterCatalog(i.catalog, i.engine)
	i.monitor.RegisterDeferred(i.deferred)
	i.monitor.RegisterStats(i.stats)
	i.monitor.RegisterBusyTime(i.busy)
	i.monitor.RegisterSteps(i.steps)
	i.monitor.RegisterBackTrace(i.traces)

	return i.monitor.StartServer()
}
