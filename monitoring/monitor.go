// Package monitoring serves the live state of the instrumentation over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
	"github.com/sarchlab/minstrel/intercept"
	"github.com/sarchlab/minstrel/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// ErrNotStarted is returned when the server is expected to run but does not.
var ErrNotStarted = errors.New("monitoring server is not started")

// A StatsSource summarizes the completed calls.
type StatsSource interface {
	Stats() []tracing.OperationStat
}

// A BusyTimeSource reports the time during which at least one call was
// running.
type BusyTimeSource interface {
	BusyTime() time.Duration
}

// A StepSource counts the steps reached inside operations.
type StepSource interface {
	GetStepNames() []string
	GetStepCount(stepName string) uint64
	GetCallCount(stepName string) uint64
}

// A BackTraceSource keeps the calls that have not returned.
type BackTraceSource interface {
	OpenCalls() int
	BackTrace(id string) []event.Event
}

// Monitor turns the instrumented process into a server that reports the open
// calls, the observers, the wrapped types and the resource usage.
type Monitor struct {
	tracker  *callstack.Tracker
	registry *hooking.Registry
	catalog  *intercept.Catalog
	engine   *intercept.Engine
	deferred *intercept.Deferred
	stats    StatsSource
	busy     BusyTimeSource
	steps    StepSource
	traces   BackTraceSource

	portNumber int
	assetDir   string

	lock     sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterTracker registers the tracker whose stacks are reported.
func (m *Monitor) RegisterTracker(t *callstack.Tracker) {
	m.tracker = t
}

// RegisterRegistry registers the observer registry.
func (m *Monitor) RegisterRegistry(r *hooking.Registry) {
	m.registry = r
}

// RegisterCatalog registers the declared types and the engine that wraps
// them.
func (m *Monitor) RegisterCatalog(c *intercept.Catalog, e *intercept.Engine) {
	m.catalog = c
	m.engine = e
}

// RegisterDeferred registers the table of pending wrap requests.
func (m *Monitor) RegisterDeferred(d *intercept.Deferred) {
	m.deferred = d
}

// RegisterStats registers the source of call statistics.
func (m *Monitor) RegisterStats(s StatsSource) {
	m.stats = s
}

// RegisterBusyTime registers the source of the busy time.
func (m *Monitor) RegisterBusyTime(s BusyTimeSource) {
	m.busy = s
}

// RegisterSteps registers the source of step counts.
func (m *Monitor) RegisterSteps(s StepSource) {
	m.steps = s
}

// RegisterBackTrace registers the source of back traces.
func (m *Monitor) RegisterBackTrace(s BackTraceSource) {
	m.traces = s
}

// Handler returns the router serving the API and the web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/stacks", m.listStacks)
	r.HandleFunc("/api/observers", m.listObservers)
	r.HandleFunc("/api/types", m.listTypes)
	r.HandleFunc("/api/type/{name}", m.typeDetails)
	r.HandleFunc("/api/pending", m.listPending)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/busy", m.reportBusyTime)
	r.HandleFunc("/api/steps", m.listSteps)
	r.HandleFunc("/api/backtrace/{id}", m.backTrace)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(m.assets()))

	return r
}

// StartServer starts the monitor as a web server in the background.
func (m *Monitor) StartServer() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.listener != nil {
		return nil
	}

	actualPort := ":0"
	if m.portNumber >= 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(os.Stderr,
		"Monitoring instrumentation with http://localhost:%d\n",
		listener.Addr().(*net.TCPAddr).Port)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Monitoring server stopped: %v\n", err)
		}
	}()

	return nil
}

// Port returns the port the server listens on, or 0 if it is not started.
func (m *Monitor) Port() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.listener == nil {
		return 0
	}

	return m.listener.Addr().(*net.TCPAddr).Port
}

// OpenBrowser opens the web page of the monitor.
func (m *Monitor) OpenBrowser() error {
	port := m.Port()
	if port == 0 {
		return ErrNotStarted
	}

	return browser.OpenURL(fmt.Sprintf("http://localhost:%d", port))
}

// Close stops the server.
func (m *Monitor) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.server == nil {
		return nil
	}

	err := m.server.Close()
	m.server = nil
	m.listener = nil

	return err
}

type frameRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Depth     int       `json:"depth"`
	StartTime time.Time `json:"start_time"`
}

type stackRsp struct {
	Context int64      `json:"context"`
	Frames  []frameRsp `json:"frames"`
}

func (m *Monitor) listStacks(w http.ResponseWriter, _ *http.Request) {
	rsp := []stackRsp{}

	if m.tracker != nil {
		for ctx, frames := range m.tracker.Snapshot() {
			s := stackRsp{Context: int64(ctx)}
			for _, f := range frames {
				s.Frames = append(s.Frames, frameRsp{
					ID:        f.ID,
					Name:      f.Name(),
					Kind:      f.Kind.String(),
					Depth:     f.Depth,
					StartTime: f.Time,
				})
			}

			rsp = append(rsp, s)
		}
	}

	sort.Slice(rsp, func(i, j int) bool {
		return rsp[i].Context < rsp[j].Context
	})

	writeJSON(w, rsp)
}

type observerRsp struct {
	Filter   string `json:"filter"`
	Observer string `json:"observer"`
	Count    uint64 `json:"count"`
}

func (m *Monitor) listObservers(w http.ResponseWriter, _ *http.Request) {
	rsp := []observerRsp{}

	if m.registry != nil {
		for _, r := range m.registry.Registrations() {
			rsp = append(rsp, observerRsp{
				Filter:   r.Filter().String(),
				Observer: reflect.TypeOf(r.Observer()).String(),
				Count:    r.Count(),
			})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listTypes(w http.ResponseWriter, _ *http.Request) {
	names := []string{}

	if m.catalog != nil {
		for _, t := range m.catalog.Types() {
			names = append(names, t.Name())
		}
	}

	writeJSON(w, names)
}

type operationView struct {
	Name     string
	Static   bool
	Sealed   bool
	Arity    int
	Variadic bool
	Wrapped  bool
}

type typeView struct {
	Name       string
	GoType     string
	Unsafe     bool
	Wrapped    bool
	Operations []operationView
}

func (m *Monitor) typeDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if m.catalog == nil {
		http.Error(w, "Type not found", http.StatusNotFound)
		return
	}

	t, ok := m.catalog.Lookup(name)
	if !ok {
		http.Error(w, "Type not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.viewOf(t))
	serializer.SetMaxDepth(3)

	if err := serializer.Serialize(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *Monitor) viewOf(t *intercept.Type) *typeView {
	v := &typeView{
		Name:   t.Name(),
		Unsafe: intercept.IsUnsafe(t),
	}

	if t.GoType() != nil {
		v.GoType = t.GoType().String()
	}

	if m.engine != nil {
		v.Wrapped = m.engine.IsWrapped(t, "")
	}

	for _, op := range t.Methods() {
		ov := operationView{
			Name:     op.Name,
			Static:   op.Static,
			Sealed:   op.Sealed,
			Arity:    op.Arity,
			Variadic: op.Variadic,
		}

		if m.engine != nil {
			ov.Wrapped = m.engine.IsWrapped(t, op.Name)
		}

		v.Operations = append(v.Operations, ov)
	}

	return v
}

func (m *Monitor) listPending(w http.ResponseWriter, _ *http.Request) {
	pending := []string{}

	if m.deferred != nil {
		pending = append(pending, m.deferred.Pending()...)
	}

	writeJSON(w, pending)
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	stats := []tracing.OperationStat{}

	if m.stats != nil {
		stats = append(stats, m.stats.Stats()...)
	}

	writeJSON(w, stats)
}

type busyRsp struct {
	BusyTime  time.Duration `json:"busy_time"`
	OpenCalls int           `json:"open_calls"`
}

func (m *Monitor) reportBusyTime(w http.ResponseWriter, _ *http.Request) {
	rsp := busyRsp{}

	if m.busy != nil {
		rsp.BusyTime = m.busy.BusyTime()
	}

	if m.traces != nil {
		rsp.OpenCalls = m.traces.OpenCalls()
	}

	writeJSON(w, rsp)
}

type stepRsp struct {
	Name  string `json:"name"`
	Steps uint64 `json:"steps"`
	Calls uint64 `json:"calls"`
}

func (m *Monitor) listSteps(w http.ResponseWriter, _ *http.Request) {
	rsp := []stepRsp{}

	if m.steps != nil {
		for _, name := range m.steps.GetStepNames() {
			rsp = append(rsp, stepRsp{
				Name:  name,
				Steps: m.steps.GetStepCount(name),
				Calls: m.steps.GetCallCount(name),
			})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) backTrace(w http.ResponseWriter, r *http.Request) {
	if m.traces == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	calls := m.traces.BackTrace(mux.Vars(r)["id"])
	if len(calls) == 0 {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	rsp := make([]frameRsp, 0, len(calls))
	for _, c := range calls {
		rsp = append(rsp, frameRsp{
			ID:        c.ID,
			Name:      c.Name(),
			Kind:      c.Kind.String(),
			Depth:     c.Depth,
			StartTime: c.Time,
		})
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
