package bootstrap

import (
	"log"

	"github.com/sarchlab/minstrel/event"
)

// EventLogger is an observer that prints the calls it sees.
type EventLogger struct {
	Logger  *log.Logger
	Verbose bool
}

// NewEventLogger returns a new EventLogger which will write into the logger.
// Only entries are printed unless the logger is verbose.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Observe writes the event into the logger.
func (l *EventLogger) Observe(evt event.Event) error {
	if !l.Verbose && !evt.Kind.IsEntry() {
		return nil
	}

	indent := evt.Depth - 1
	if indent < 0 {
		indent = 0
	}

	l.Logger.Printf("%*s%s", 2*indent, "", evt.String())

	return nil
}
