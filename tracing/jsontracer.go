package tracing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/minstrel/event"
	"github.com/tebeka/atexit"
)

type jsonCall struct {
	ID        string        `json:"id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Context   int64         `json:"context"`
	Kind      string        `json:"kind"`
	Target    string        `json:"target"`
	Operation string        `json:"operation"`
	Args      []string      `json:"args,omitempty"`
	Depth     int           `json:"depth"`
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// JSONTracer writes the completed calls as a JSON array.
type JSONTracer struct {
	w         io.Writer
	file      *os.File
	lock      sync.Mutex
	firstCall bool
	finished  bool
}

// NewJSONTracer creates a JSONTracer that writes to w. The array is closed by
// Finish.
func NewJSONTracer(w io.Writer) (*JSONTracer, error) {
	if _, err := w.Write([]byte("[\n")); err != nil {
		return nil, err
	}

	return &JSONTracer{w: w, firstCall: true}, nil
}

// NewJSONFileTracer creates a JSONTracer that writes to a new file. An empty
// path picks a unique file name. Finish, or the program exiting through
// atexit, closes the array and the file.
func NewJSONFileTracer(path string) (*JSONTracer, error) {
	if path == "" {
		path = "minstrel_calls_" + xid.New().String() + ".json"
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Recording calls in %s\n", path)

	t, err := NewJSONTracer(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	t.file = f

	atexit.Register(func() {
		if err := t.Finish(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})

	return t, nil
}

// Observe writes paired exits.
func (t *JSONTracer) Observe(evt event.Event) error {
	if !evt.Kind.IsExit() || !evt.Paired {
		return nil
	}

	b, err := json.Marshal(toJSONCall(evt))
	if err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.finished {
		return nil
	}

	if t.firstCall {
		t.firstCall = false
	} else if _, err := t.w.Write([]byte(",\n")); err != nil {
		return err
	}

	_, err = t.w.Write(b)

	return err
}

// Finish closes the array. Calls observed later are dropped.
func (t *JSONTracer) Finish() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.finished {
		return nil
	}

	t.finished = true
	_, err := t.w.Write([]byte("\n]"))

	if t.file != nil {
		err = errors.Join(err, t.file.Close())
	}

	return err
}

func toJSONCall(evt event.Event) jsonCall {
	c := jsonCall{
		ID:        evt.EntryID,
		ParentID:  evt.ParentID,
		Context:   evt.Context,
		Kind:      evt.Kind.String(),
		Target:    evt.Target,
		Operation: evt.Operation,
		Depth:     evt.Depth,
		Start:     evt.Time.Add(-evt.Duration),
		Duration:  evt.Duration,
	}

	for _, a := range evt.Args {
		c.Args = append(c.Args, fmt.Sprintf("%v", a))
	}

	if evt.Err != nil {
		c.Error = evt.Err.Error()
	}

	return c
}
