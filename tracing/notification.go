// Package tracing turns the call notifications of a process-wide channel into
// call events, and provides tracers that summarize the events.
package tracing

import "fmt"

// A NotificationKind tells what happened at an instrumentation point.
type NotificationKind string

// The kinds of notifications a Channel delivers.
const (
	Call    NotificationKind = "call"
	CCall   NotificationKind = "c-call"
	Return  NotificationKind = "return"
	CReturn NotificationKind = "c-return"
	Raise   NotificationKind = "raise"
	Class   NotificationKind = "class"
	End     NotificationKind = "end"
	Line    NotificationKind = "line"
)

// A Notification is what a Channel delivers to its subscribers. It is always
// delivered on the goroutine that hit the instrumentation point.
type Notification struct {
	Kind      NotificationKind
	Target    string
	Operation string
	Receiver  any
	Args      []any
	Err       error
}

func (n Notification) String() string {
	return fmt.Sprintf("%s %s#%s", n.Kind, n.Target, n.Operation)
}

// A Channel is a process-wide source of call notifications.
type Channel interface {
	// Subscribe adds a handler. Calling the returned function removes it.
	Subscribe(handler func(Notification) error) (cancel func())
}
