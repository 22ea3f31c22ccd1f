package intercept

import (
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
)

// Operations that the instrumentation relies on itself. Wrapping them leads
// to infinite recursion as soon as an observer formats or compares a
// receiver.
var excludedOperations = map[string]bool{
	"String":        true,
	"GoString":      true,
	"Error":         true,
	"Format":        true,
	"Equal":         true,
	"Is":            true,
	"As":            true,
	"Unwrap":        true,
	"MarshalJSON":   true,
	"UnmarshalJSON": true,
	"MarshalText":   true,
	"UnmarshalText": true,
	"Invoke":        true,
	"InvokeStatic":  true,
	"Bind":          true,
	"Call":          true,
	"Observe":       true,
}

// Go packages whose types are never wrapped: the reflection and runtime
// foundations, and the packages of the instrumentation itself.
var excludedPackages = map[string]bool{
	"reflect":     true,
	"runtime":     true,
	"sync":        true,
	"sync/atomic": true,
	"unsafe":      true,

	"github.com/sarchlab/minstrel/callstack":       true,
	"github.com/sarchlab/minstrel/event":           true,
	"github.com/sarchlab/minstrel/hooking":         true,
	"github.com/sarchlab/minstrel/intercept":       true,
	"github.com/sarchlab/minstrel/tracing":         true,
	"github.com/sarchlab/minstrel/instrumentation": true,
	"github.com/sarchlab/minstrel/bootstrap":       true,
	"github.com/sarchlab/minstrel/datarecording":   true,
	"github.com/sarchlab/minstrel/monitoring":      true,
}

// IsExcludedOperation returns true if the named operation is never wrapped.
func IsExcludedOperation(name string) bool {
	return excludedOperations[name]
}

type wrapKey struct {
	t  *Type
	op string
}

// An Engine installs wrappers on the operations of types. It owns the set of
// wrapped (type, operation) pairs, so that repeated requests never stack a
// second layer of interception.
type Engine struct {
	lock     sync.Mutex
	wrapped  map[wrapKey]bool
	tracker  *callstack.Tracker
	logger   *slog.Logger
	isolated bool
}

// NewEngine creates an Engine that pairs events with the given tracker.
func NewEngine(tracker *callstack.Tracker) *Engine {
	if tracker == nil {
		panic("tracker must not be nil")
	}

	return &Engine{
		wrapped: make(map[wrapKey]bool),
		tracker: tracker,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger that receives diagnostics.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithObserverIsolation makes observer failures logged only. By default an
// observer failure aborts the instrumented call.
func (e *Engine) WithObserverIsolation() *Engine {
	e.isolated = true
	return e
}

// Tracker returns the tracker used to pair events.
func (e *Engine) Tracker() *callstack.Tracker {
	return e.tracker
}

// IsWrapped returns true if the operation, or the whole type when op is
// empty, has been wrapped.
func (e *Engine) IsWrapped(t *Type, op string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.wrapped[wrapKey{t, op}]
}

// IsUnsafe returns true if the type must never be wrapped.
func IsUnsafe(t *Type) bool {
	if t.unsafe {
		return true
	}

	rt := t.goType
	if rt == nil {
		return false
	}

	if IsErrorType(rt) {
		return true
	}

	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	return excludedPackages[rt.PkgPath()]
}

// Wrap installs wrappers on the operations of t, or only on op when op is not
// empty, so that every invocation emits an entry and an exit event to obs.
// Wrapping an unsafe type succeeds without doing anything. Operations that
// cannot be replaced are reported in a *WrapError after all the other
// operations are wrapped.
func (e *Engine) Wrap(t *Type, obs hooking.Observer, op string) error {
	if obs == nil {
		panic("observer must not be nil")
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	key := wrapKey{t, op}
	if e.wrapped[key] {
		return nil
	}

	if IsUnsafe(t) {
		return nil
	}

	if op != "" {
		if _, ok := t.methods[op]; !ok {
			return &OperationError{Type: t.name, Operation: op,
				Err: ErrNoSuchOperation}
		}
	}

	var failed []*OperationError

	for _, m := range t.Methods() {
		if op != "" && m.Name != op {
			continue
		}

		if err := e.wrapMethod(t, m, obs); err != nil {
			failed = append(failed, err)
		}
	}

	e.wrapped[key] = true

	if len(failed) > 0 {
		return &WrapError{Type: t.name, Errs: failed}
	}

	return nil
}

func (e *Engine) wrapMethod(t *Type, m *Method, obs hooking.Observer) *OperationError {
	if excludedOperations[m.Name] {
		return nil
	}

	key := wrapKey{t, m.Name}
	if e.wrapped[key] {
		return nil
	}

	if m.Sealed {
		return &OperationError{Type: t.name, Operation: m.Name, Err: ErrSealed}
	}

	orig := m.current()
	m.install(e.wrapper(t.name, m.Name, m.Static, orig, obs))
	e.wrapped[key] = true

	return nil
}

func (e *Engine) wrapper(
	target, op string,
	static bool,
	orig invoker,
	obs hooking.Observer,
) invoker {
	return func(recv any, args []any) ([]any, error) {
		ctx := callstack.Current()

		receiver := recv
		if static {
			receiver = nil
		}

		entry := e.tracker.Open(ctx, event.EntryKind(static),
			target, op, receiver, args)

		if err := e.notifyEntry(ctx, obs, entry); err != nil {
			return nil, err
		}

		results, panicValue, panicked, instErr := runOriginal(orig, recv, args)

		failure := Failure(results)
		if panicked {
			failure = &PanicError{Value: panicValue}
		}

		exit := e.tracker.Close(ctx, event.ExitKind(static, failure != nil),
			target, op, receiver, nil, failure)
		obsErr := e.notify(obs, exit)

		if panicked {
			if obsErr != nil {
				e.logger.Error("observer failed while a panic propagates",
					"operation", exit.Name(), "error", obsErr)
			}

			panic(panicValue)
		}

		if obsErr != nil {
			return results, obsErr
		}

		return results, instErr
	}
}

func runOriginal(
	orig invoker,
	recv any,
	args []any,
) (results []any, panicValue any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicValue = r
			panicked = true
		}
	}()

	results, err = orig(recv, args)

	return results, nil, false, err
}

// notifyEntry delivers an entry event. The entry frame is unwound when the
// observer fails, including when it panics, so the stack of ctx never keeps
// a frame for a call that does not run.
func (e *Engine) notifyEntry(
	ctx callstack.ContextID,
	obs hooking.Observer,
	entry event.Event,
) error {
	delivered := false
	defer func() {
		if !delivered {
			e.tracker.Unwind(ctx, entry.ID)
		}
	}()

	err := e.notify(obs, entry)
	delivered = err == nil

	return err
}

func (e *Engine) notify(obs hooking.Observer, evt event.Event) error {
	err := obs.Observe(evt)
	if err == nil {
		return nil
	}

	// An *ObserverError comes from a Registry, which has logged it.
	var obsErr *hooking.ObserverError
	if !errors.As(err, &obsErr) {
		err = &hooking.ObserverError{Event: evt, Err: err}
		e.logger.Error("observer failed", "operation", evt.Name(),
			"error", err)
	}

	if e.isolated {
		return nil
	}

	return err
}
