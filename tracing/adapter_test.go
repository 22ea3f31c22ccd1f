package tracing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Adapter", func() {
	var (
		mockCtrl *gomock.Controller
		probe    *Probe
		tracker  *callstack.Tracker
		events   []event.Event
		adapter  *Adapter
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		probe = NewProbe()
		tracker = callstack.NewTracker(nil)
		events = nil
		adapter = NewAdapter(probe, tracker,
			hooking.ObserverFunc(func(evt event.Event) error {
				events = append(events, evt)
				return nil
			}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not produce events before it is enabled", func() {
		done := probe.Call("Worker", "run")
		done(nil)

		Expect(events).To(BeEmpty())
		Expect(adapter.IsEnabled()).To(BeFalse())
	})

	It("should pair calls and returns", func() {
		adapter.Enable()

		done := probe.Call("Worker", "run", 1)
		probe.Line("Worker", "run")
		done(nil)

		Expect(events).To(HaveLen(3))
		Expect(events[0].Kind).To(Equal(event.Entry))
		Expect(events[0].Depth).To(Equal(1))
		Expect(events[1].Kind).To(Equal(event.Step))
		Expect(events[1].ParentID).To(Equal(events[0].ID))
		Expect(events[2].Kind).To(Equal(event.Exit))
		Expect(events[2].EntryID).To(Equal(events[0].ID))
		Expect(events[2].Args).To(Equal([]any{1}))
	})

	It("should map class and raise notifications", func() {
		adapter.Enable()
		failure := errors.New("broken")

		done := probe.ClassCall("Worker", "create")
		done(nil)
		done = probe.Call("Worker", "run")
		done(failure)

		kinds := []event.Kind{}
		for _, e := range events {
			kinds = append(kinds, e.Kind)
		}

		Expect(kinds).To(Equal([]event.Kind{
			event.ClassEntry, event.ClassExit,
			event.Entry, event.ExitWithError,
		}))
		Expect(events[3].Err).To(MatchError(failure))
	})

	It("should keep the level of a failing type-level call", func() {
		adapter.Enable()
		failure := errors.New("broken")

		done := probe.ClassCall("Worker", "create")
		done(failure)

		Expect(events).To(HaveLen(2))
		Expect(events[0].Kind).To(Equal(event.ClassEntry))
		Expect(events[1].Kind).To(Equal(event.ClassExitWithError))
		Expect(events[1].Err).To(MatchError(failure))
		Expect(events[1].EntryID).To(Equal(events[0].ID))
	})

	It("should tolerate a return without a call", func() {
		adapter.Enable()

		probe.Return("Worker", "run")

		Expect(events).To(HaveLen(1))
		Expect(events[0].Paired).To(BeFalse())
		Expect(events[0].Depth).To(Equal(0))
	})

	It("should stop after disable", func() {
		adapter.Disable()
		adapter.Enable()
		adapter.Enable()
		Expect(probe.NumSubscribers()).To(Equal(1))

		adapter.Disable()
		adapter.Disable()
		probe.Line("Worker", "run")

		Expect(events).To(BeEmpty())
		Expect(probe.NumSubscribers()).To(Equal(0))
	})

	It("should hand observer failures back to the instrumentation point", func() {
		failure := errors.New("observer broke")
		observer := NewMockObserver(mockCtrl)
		observer.EXPECT().Observe(gomock.Any()).Return(failure)

		NewAdapter(probe.Strict(), tracker, observer).Enable()

		Expect(func() { probe.Line("Worker", "run") }).
			To(PanicWith(MatchError(failure)))
	})

	It("should reject unknown notifications", func() {
		adapter.Enable()

		err := probe.Emit(Notification{Kind: "jump", Target: "W", Operation: "x"})

		Expect(err).To(MatchError(ErrUnknownNotification))
		Expect(events).To(BeEmpty())
	})
})
