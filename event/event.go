// Package event defines the records that describe one entry into or one exit
// from an instrumented operation.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Kind tells what happened at the point an Event fires.
type Kind int

// Enumeration of event kinds. The Class-prefixed kinds are used for
// type-level (static) operations.
const (
	Entry Kind = iota
	Exit
	ExitWithError
	ClassEntry
	ClassExit
	ClassExitWithError
	Step
)

var kindNames = [...]string{
	Entry:              "entry",
	Exit:               "exit",
	ExitWithError:      "exit_with_error",
	ClassEntry:         "class_entry",
	ClassExit:          "class_exit",
	ClassExitWithError: "class_exit_with_error",
	Step:               "step",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// IsEntry returns true for Entry and ClassEntry.
func (k Kind) IsEntry() bool {
	return k == Entry || k == ClassEntry
}

// IsExit returns true for all the exit kinds, including the failing ones.
func (k Kind) IsExit() bool {
	switch k {
	case Exit, ExitWithError, ClassExit, ClassExitWithError:
		return true
	default:
		return false
	}
}

// IsFailure returns true if the kind reports a propagating failure.
func (k Kind) IsFailure() bool {
	return k == ExitWithError || k == ClassExitWithError
}

// IsClass returns true if the kind belongs to a type-level operation.
func (k Kind) IsClass() bool {
	return k == ClassEntry || k == ClassExit || k == ClassExitWithError
}

// Arrow is the short marker used when an event is rendered as a line.
func (k Kind) Arrow() string {
	switch {
	case k.IsEntry():
		return "=>"
	case k.IsFailure():
		return "<E"
	case k.IsExit():
		return "<="
	default:
		return "--"
	}
}

// EntryKind returns the entry kind that matches the given level.
func EntryKind(class bool) Kind {
	if class {
		return ClassEntry
	}

	return Entry
}

// ExitKind returns the exit kind that matches the level and the outcome.
func ExitKind(class bool, failed bool) Kind {
	switch {
	case class && failed:
		return ClassExitWithError
	case class:
		return ClassExit
	case failed:
		return ExitWithError
	default:
		return Exit
	}
}

// An Event describes one entry or exit occurrence. Events are values and are
// not modified after the call-stack tracker builds them.
type Event struct {
	ID       string
	EntryID  string
	ParentID string
	Context  int64

	Kind      Kind
	Target    string
	Operation string

	// Receiver is the instance the operation is invoked on. It is nil for
	// type-level operations. Observers must not keep it after they return.
	Receiver any

	// Args are best-effort snapshots of the arguments.
	Args []any

	Time  time.Time
	Depth int

	// Duration is only meaningful when Paired is true.
	Duration time.Duration
	Paired   bool

	Err error
}

// Name returns the compound target#operation name.
func (e Event) Name() string {
	return e.Target + "#" + e.Operation
}

// String renders the event as `<arrow> <target>#<operation>(<args>)`.
func (e Event) String() string {
	b := strings.Builder{}

	b.WriteString(e.Kind.Arrow())
	b.WriteString(" ")
	b.WriteString(e.Name())
	b.WriteString("(")
	b.WriteString(RenderArgs(e.Args))
	b.WriteString(")")

	if e.Err != nil {
		b.WriteString(" !")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// RenderArgs renders argument snapshots separated by commas.
func RenderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}

	return strings.Join(parts, ", ")
}
