package event

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard is the identifier that stands for every type, including the ones
// that are not declared yet.
const Wildcard = ":all:"

// ErrBadIdentifier is returned when a target identifier cannot be parsed.
var ErrBadIdentifier = errors.New("bad target identifier")

// A Filter selects events by target and, optionally, by operation. The zero
// Filter matches every event.
type Filter struct {
	Target    string
	Operation string
}

// ParseTarget parses "Type", "Type#op" or "Type.op".
func ParseTarget(id string) (Filter, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Filter{}, fmt.Errorf("%w: empty", ErrBadIdentifier)
	}

	sep := strings.IndexAny(id, "#.")
	if sep < 0 {
		return Filter{Target: id}, nil
	}

	f := Filter{Target: id[:sep], Operation: id[sep+1:]}
	if f.Target == "" || f.Operation == "" ||
		strings.ContainsAny(f.Operation, "#.") {
		return Filter{}, fmt.Errorf("%w: %q", ErrBadIdentifier, id)
	}

	return f, nil
}

// IsZero returns true if the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Target == "" && f.Operation == ""
}

// Match returns true if the event passes the filter.
func (f Filter) Match(e Event) bool {
	if f.Target != "" && f.Target != e.Target {
		return false
	}

	if f.Operation != "" && f.Operation != e.Operation {
		return false
	}

	return true
}

func (f Filter) String() string {
	switch {
	case f.IsZero():
		return "*"
	case f.Operation == "":
		return f.Target
	default:
		return f.Target + "#" + f.Operation
	}
}
