package tracing

import (
	"sync"

	"github.com/sarchlab/minstrel/event"
	"github.com/tebeka/atexit"
)

// A TracerBackend stores completed calls, for example in a database or in a
// CSV file.
type TracerBackend interface {
	// Write stores the exit event of a completed call.
	Write(evt event.Event) error

	// Flush makes sure all the written calls are stored.
	Flush() error
}

// CallRecorder is a tracer that stores completed calls in a backend.
type CallRecorder struct {
	lock      sync.Mutex
	backend   TracerBackend
	filter    event.Filter
	recording bool
}

// NewCallRecorder creates a CallRecorder that records the calls passing the
// filter. The backend is flushed when the program exits through atexit.
func NewCallRecorder(
	backend TracerBackend,
	filter event.Filter,
) *CallRecorder {
	r := &CallRecorder{
		backend:   backend,
		filter:    filter,
		recording: true,
	}

	atexit.Register(func() {
		_ = r.Terminate()
	})

	return r
}

// IsRecording returns true if completed calls are stored.
func (r *CallRecorder) IsRecording() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.recording
}

// Pause stops storing calls and flushes the backend.
func (r *CallRecorder) Pause() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.recording = false

	return r.backend.Flush()
}

// Resume starts storing calls again.
func (r *CallRecorder) Resume() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.recording = true
}

// Observe stores the exit events.
func (r *CallRecorder) Observe(evt event.Event) error {
	if !evt.Kind.IsExit() || !r.filter.Match(evt) {
		return nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.recording {
		return nil
	}

	return r.backend.Write(evt)
}

// Terminate stops recording and flushes the backend.
func (r *CallRecorder) Terminate() error {
	return r.Pause()
}
