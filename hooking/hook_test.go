package hooking

import (
	"bytes"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/minstrel/event"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Registry", func() {
	var (
		mockCtrl *gomock.Controller
		registry *Registry
		all      *MockObserver
		byType   *MockObserver
		byOp     *MockObserver
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		registry = NewRegistry().
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		all = NewMockObserver(mockCtrl)
		byType = NewMockObserver(mockCtrl)
		byOp = NewMockObserver(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	fooBar := event.Event{Kind: event.Entry, Target: "Foo", Operation: "bar"}
	fooBaz := event.Event{Kind: event.Entry, Target: "Foo", Operation: "baz"}
	quxBar := event.Event{Kind: event.Entry, Target: "Qux", Operation: "bar"}

	It("should deliver every event to an unfiltered observer", func() {
		registry.Register(event.Filter{}, all)

		all.EXPECT().Observe(fooBar)
		all.EXPECT().Observe(quxBar)

		Expect(registry.Dispatch(fooBar)).To(Succeed())
		Expect(registry.Dispatch(quxBar)).To(Succeed())
	})

	It("should filter by type and by operation", func() {
		registry.Register(event.Filter{Target: "Foo"}, byType)
		registry.Register(event.Filter{Target: "Foo", Operation: "bar"}, byOp)

		byType.EXPECT().Observe(fooBar)
		byType.EXPECT().Observe(fooBaz)
		byOp.EXPECT().Observe(fooBar)

		Expect(registry.Dispatch(fooBar)).To(Succeed())
		Expect(registry.Dispatch(fooBaz)).To(Succeed())
		Expect(registry.Dispatch(quxBar)).To(Succeed())
	})

	It("should dispatch in registration order", func() {
		registry.Register(event.Filter{Target: "Foo"}, byType)
		registry.Register(event.Filter{}, all)

		gomock.InOrder(
			byType.EXPECT().Observe(fooBar),
			all.EXPECT().Observe(fooBar),
		)

		Expect(registry.Dispatch(fooBar)).To(Succeed())
	})

	It("should stop at the first failing observer", func() {
		failure := errors.New("observer broke")
		registry.Register(event.Filter{}, all)
		registry.Register(event.Filter{}, byType)

		all.EXPECT().Observe(fooBar).Return(failure)

		err := registry.Dispatch(fooBar)

		var obsErr *ObserverError
		Expect(errors.As(err, &obsErr)).To(BeTrue())
		Expect(obsErr.Index).To(Equal(0))
		Expect(obsErr.Event).To(Equal(fooBar))
		Expect(err).To(MatchError(failure))
	})

	It("should log a failure it returns", func() {
		buf := &bytes.Buffer{}
		registry.WithLogger(slog.New(slog.NewTextHandler(buf, nil)))
		registry.Register(event.Filter{}, all)

		all.EXPECT().Observe(fooBar).Return(errors.New("observer broke"))

		Expect(registry.Dispatch(fooBar)).NotTo(Succeed())
		Expect(buf.String()).To(ContainSubstring("observer failed"))
		Expect(buf.String()).To(ContainSubstring("observer broke"))
	})

	It("should carry on when isolated", func() {
		registry.WithIsolation(slog.New(slog.NewTextHandler(io.Discard, nil)))
		registry.Register(event.Filter{}, all)
		registry.Register(event.Filter{}, byType)

		all.EXPECT().Observe(fooBar).Return(errors.New("observer broke"))
		byType.EXPECT().Observe(fooBar)

		Expect(registry.Dispatch(fooBar)).To(Succeed())
	})

	It("should count deliveries", func() {
		reg := registry.Register(event.Filter{Target: "Foo"}, byType)

		byType.EXPECT().Observe(gomock.Any()).Times(2)

		Expect(registry.Dispatch(fooBar)).To(Succeed())
		Expect(registry.Dispatch(fooBaz)).To(Succeed())
		Expect(registry.Dispatch(quxBar)).To(Succeed())
		Expect(reg.Count()).To(Equal(uint64(2)))
	})

	It("should stop delivering after cancel", func() {
		reg := registry.Register(event.Filter{}, all)
		registry.Register(event.Filter{}, byType)

		byType.EXPECT().Observe(fooBar)

		reg.Cancel()

		Expect(registry.NumObservers()).To(Equal(1))
		Expect(registry.Dispatch(fooBar)).To(Succeed())
	})

	It("should accept functions", func() {
		got := []event.Event{}
		registry.Register(event.Filter{}, ObserverFunc(func(e event.Event) error {
			got = append(got, e)
			return nil
		}))
		registry.Register(event.Filter{}, ObserverFunc(func(e event.Event) error {
			return nil
		}))

		Expect(registry.Observe(fooBar)).To(Succeed())
		Expect(got).To(Equal([]event.Event{fooBar}))
		Expect(registry.Registrations()).To(HaveLen(2))
	})

	It("should panic on a duplicated observer", func() {
		registry.Register(event.Filter{}, all)

		Expect(func() {
			registry.Register(event.Filter{}, all)
		}).To(Panic())
	})

	It("should allow the same observer under another filter", func() {
		registry.Register(event.Filter{}, all)
		registry.Register(event.Filter{Target: "Foo"}, all)

		Expect(registry.NumObservers()).To(Equal(2))
	})

	It("should not compare observers that have no identity", func() {
		obs := valueObserver{state: []int{1}}
		registry.Register(event.Filter{}, obs)

		Expect(func() {
			registry.Register(event.Filter{}, obs)
		}).NotTo(Panic())
		Expect(registry.NumObservers()).To(Equal(2))
	})

	It("should panic on a nil observer", func() {
		Expect(func() {
			registry.Register(event.Filter{}, nil)
		}).To(Panic())
	})
})

type valueObserver struct {
	state any
}

func (valueObserver) Observe(event.Event) error {
	return nil
}
