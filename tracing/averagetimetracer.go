package tracing

import (
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/minstrel/event"
)

// OperationStat summarizes the completed calls of one operation.
type OperationStat struct {
	Name    string        `json:"name"`
	Count   uint64        `json:"count"`
	Failed  uint64        `json:"failed"`
	Average time.Duration `json:"average_ns"`
	Max     time.Duration `json:"max_ns"`
}

// AverageTimeTracer can collect the average time of executing the calls that
// pass its filter. Calls whose entry was not seen are not counted.
type AverageTimeTracer struct {
	filter      event.Filter
	lock        sync.Mutex
	averageTime time.Duration
	callCount   uint64
	perOp       map[string]*OperationStat
}

// NewAverageTimeTracer creates a new AverageTimeTracer
func NewAverageTimeTracer(filter event.Filter) *AverageTimeTracer {
	t := &AverageTimeTracer{
		filter: filter,
		perOp:  make(map[string]*OperationStat),
	}
	return t
}

// AverageTime returns the average duration of the calls.
func (t *AverageTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	d := t.averageTime
	t.lock.Unlock()
	return d
}

// TotalCount returns the total number of calls.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.callCount
}

// Stats returns the summary of each operation, sorted by name.
func (t *AverageTimeTracer) Stats() []OperationStat {
	t.lock.Lock()
	defer t.lock.Unlock()

	stats := make([]OperationStat, 0, len(t.perOp))
	for _, s := range t.perOp {
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})

	return stats
}

// Observe counts paired exits.
func (t *AverageTimeTracer) Observe(evt event.Event) error {
	if !evt.Kind.IsExit() || !evt.Paired || !t.filter.Match(evt) {
		return nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.averageTime = runningMean(t.averageTime, t.callCount, evt.Duration)
	t.callCount++

	name := evt.Name()
	s, ok := t.perOp[name]
	if !ok {
		s = &OperationStat{Name: name}
		t.perOp[name] = s
	}

	s.Average = runningMean(s.Average, s.Count, evt.Duration)
	s.Count++

	if evt.Kind.IsFailure() {
		s.Failed++
	}

	if evt.Duration > s.Max {
		s.Max = evt.Duration
	}

	return nil
}

func runningMean(mean time.Duration, n uint64, d time.Duration) time.Duration {
	return time.Duration(
		(float64(mean)*float64(n) + float64(d)) / float64(n+1))
}
