// Package datarecording stores completed calls in SQLite databases or CSV
// files and reads them back.
package datarecording

import (
	"github.com/sarchlab/minstrel/event"
)

// A CallRecord is one completed call as stored in the database. Column names
// are the field names.
type CallRecord struct {
	ID         string
	ParentID   string
	Context    int64
	Kind       string
	Target     string
	Operation  string
	Depth      int
	NumArgs    int
	Start      int64
	End        int64
	DurationNs int64
	Paired     bool
	Failed     bool
	Error      string
}

// Name returns "Target#Operation".
func (r CallRecord) Name() string {
	return r.Target + "#" + r.Operation
}

// FromEvent builds a record from the exit event of a call. Unpaired exits
// start and end at the same time.
func FromEvent(evt event.Event) CallRecord {
	id := evt.EntryID
	if id == "" {
		id = evt.ID
	}

	r := CallRecord{
		ID:         id,
		ParentID:   evt.ParentID,
		Context:    evt.Context,
		Kind:       evt.Kind.String(),
		Target:     evt.Target,
		Operation:  evt.Operation,
		Depth:      evt.Depth,
		NumArgs:    len(evt.Args),
		Start:      evt.Time.Add(-evt.Duration).UnixNano(),
		End:        evt.Time.UnixNano(),
		DurationNs: int64(evt.Duration),
		Paired:     evt.Paired,
		Failed:     evt.Kind.IsFailure(),
	}

	if evt.Err != nil {
		r.Error = evt.Err.Error()
	}

	return r
}
