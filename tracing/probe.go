package tracing

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

type subscriber struct {
	handler func(Notification) error
}

// A Probe is a Channel fed by explicit instrumentation points. Code that
// wants to be traced without being wrapped calls the probe when it enters and
// leaves its operations.
type Probe struct {
	lock        sync.Mutex
	subscribers atomic.Pointer[[]*subscriber]
	logger      *slog.Logger
	strict      bool
}

// NewProbe creates a Probe without subscribers.
func NewProbe() *Probe {
	p := &Probe{logger: slog.Default()}
	p.subscribers.Store(&[]*subscriber{})

	return p
}

// WithLogger sets the logger that receives the failures of subscribers.
func (p *Probe) WithLogger(logger *slog.Logger) *Probe {
	p.logger = logger
	return p
}

// Strict makes the instrumentation points panic with the error of a failing
// subscriber instead of logging it.
func (p *Probe) Strict() *Probe {
	p.strict = true
	return p
}

// Subscribe adds a handler.
func (p *Probe) Subscribe(handler func(Notification) error) func() {
	if handler == nil {
		panic("handler must not be nil")
	}

	s := &subscriber{handler: handler}

	p.lock.Lock()
	old := *p.subscribers.Load()
	list := make([]*subscriber, len(old), len(old)+1)
	copy(list, old)
	list = append(list, s)
	p.subscribers.Store(&list)
	p.lock.Unlock()

	return func() { p.unsubscribe(s) }
}

func (p *Probe) unsubscribe(s *subscriber) {
	p.lock.Lock()
	defer p.lock.Unlock()

	old := *p.subscribers.Load()
	list := make([]*subscriber, 0, len(old))

	for _, o := range old {
		if o != s {
			list = append(list, o)
		}
	}

	p.subscribers.Store(&list)
}

// NumSubscribers returns the number of subscribed handlers.
func (p *Probe) NumSubscribers() int {
	return len(*p.subscribers.Load())
}

// Emit delivers the notification to every subscriber in order and returns
// the first error.
func (p *Probe) Emit(n Notification) error {
	for _, s := range *p.subscribers.Load() {
		if err := s.handler(n); err != nil {
			return err
		}
	}

	return nil
}

// Call notifies the entry into an operation. Calling the returned function
// notifies the exit, as a raise if err is not nil.
func (p *Probe) Call(target, op string, args ...any) func(err error) {
	return p.enter(Call, target, op, args)
}

// ClassCall notifies the entry into a type-level operation.
func (p *Probe) ClassCall(target, op string, args ...any) func(err error) {
	return p.enter(Class, target, op, args)
}

func (p *Probe) enter(
	kind NotificationKind,
	target, op string,
	args []any,
) func(err error) {
	requiredFieldsMustNotBeEmpty(target, op)

	p.report(p.Emit(Notification{
		Kind: kind, Target: target, Operation: op, Args: args}))

	exit := Return
	if kind == Class {
		exit = End
	}

	return func(err error) {
		if err != nil {
			p.Raise(target, op, err)
			return
		}

		p.report(p.Emit(Notification{
			Kind: exit, Target: target, Operation: op}))
	}
}

// Return notifies a normal exit from an operation.
func (p *Probe) Return(target, op string) {
	requiredFieldsMustNotBeEmpty(target, op)
	p.report(p.Emit(Notification{Kind: Return, Target: target, Operation: op}))
}

// ClassReturn notifies a normal exit from a type-level operation.
func (p *Probe) ClassReturn(target, op string) {
	requiredFieldsMustNotBeEmpty(target, op)
	p.report(p.Emit(Notification{Kind: End, Target: target, Operation: op}))
}

// Raise notifies that an operation is left with err.
func (p *Probe) Raise(target, op string, err error) {
	requiredFieldsMustNotBeEmpty(target, op)
	p.report(p.Emit(Notification{
		Kind: Raise, Target: target, Operation: op, Err: err}))
}

// Line notifies that execution reached a point inside an operation.
func (p *Probe) Line(target, op string) {
	requiredFieldsMustNotBeEmpty(target, op)
	p.report(p.Emit(Notification{Kind: Line, Target: target, Operation: op}))
}

func (p *Probe) report(err error) {
	if err == nil {
		return
	}

	if p.strict {
		panic(err)
	}

	p.logger.Error("trace subscriber failed", "error", err)
}

func requiredFieldsMustNotBeEmpty(target, op string) {
	if target == "" {
		panic("target must not be empty")
	}

	if op == "" {
		panic("operation must not be empty")
	}
}
