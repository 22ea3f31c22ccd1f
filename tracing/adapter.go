package tracing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
)

// ErrUnknownNotification is returned for notifications of an unknown kind.
var ErrUnknownNotification = errors.New("unknown notification kind")

// An Adapter subscribes to a Channel and turns every notification into an
// event that goes through the call-stack tracker to the observer.
type Adapter struct {
	lock     sync.Mutex
	channel  Channel
	tracker  *callstack.Tracker
	observer hooking.Observer
	logger   *slog.Logger
	cancel   func()
}

// NewAdapter creates a disabled Adapter.
func NewAdapter(
	channel Channel,
	tracker *callstack.Tracker,
	observer hooking.Observer,
) *Adapter {
	if channel == nil || tracker == nil || observer == nil {
		panic("channel, tracker and observer must not be nil")
	}

	return &Adapter{
		channel:  channel,
		tracker:  tracker,
		observer: observer,
		logger:   slog.Default(),
	}
}

// WithLogger sets the diagnostic logger.
func (a *Adapter) WithLogger(logger *slog.Logger) *Adapter {
	a.logger = logger
	return a
}

// Enable subscribes to the channel. Enabling twice has no effect.
func (a *Adapter) Enable() {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.cancel != nil {
		return
	}

	a.cancel = a.channel.Subscribe(a.handle)
}

// Disable unsubscribes from the channel. It can be called even if the
// adapter was never enabled.
func (a *Adapter) Disable() {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.cancel == nil {
		return
	}

	a.cancel()
	a.cancel = nil
}

// IsEnabled returns true if the adapter is subscribed.
func (a *Adapter) IsEnabled() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.cancel != nil
}

func (a *Adapter) handle(n Notification) error {
	evt, err := a.toEvent(n)
	if err == nil {
		err = a.observer.Observe(evt)
	}

	if err != nil {
		a.logger.Error("handling trace notification failed",
			"notification", n.String(), "error", err)
		return err
	}

	return nil
}

func (a *Adapter) toEvent(n Notification) (event.Event, error) {
	ctx := callstack.Current()
	t := a.tracker

	switch n.Kind {
	case Call, CCall:
		return t.Open(ctx, event.Entry, n.Target, n.Operation,
			n.Receiver, n.Args), nil
	case Class:
		return t.Open(ctx, event.ClassEntry, n.Target, n.Operation,
			nil, n.Args), nil
	case Return, CReturn:
		return t.Close(ctx, event.Exit, n.Target, n.Operation,
			n.Receiver, n.Args, nil), nil
	case End:
		return t.Close(ctx, event.ClassExit, n.Target, n.Operation,
			nil, n.Args, nil), nil
	case Raise:
		return t.Close(ctx, event.ExitWithError, n.Target, n.Operation,
			n.Receiver, n.Args, n.Err), nil
	case Line:
		return t.Step(ctx, n.Target, n.Operation, n.Receiver, n.Args), nil
	default:
		return event.Event{}, fmt.Errorf("%w: %q", ErrUnknownNotification,
			string(n.Kind))
	}
}
