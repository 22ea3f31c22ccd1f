package event_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/minstrel/event"
)

var _ = Describe("Kind", func() {
	It("should classify kinds", func() {
		Expect(event.Entry.IsEntry()).To(BeTrue())
		Expect(event.ClassEntry.IsEntry()).To(BeTrue())
		Expect(event.Exit.IsExit()).To(BeTrue())
		Expect(event.ClassExitWithError.IsExit()).To(BeTrue())
		Expect(event.ClassExitWithError.IsFailure()).To(BeTrue())
		Expect(event.ClassExitWithError.IsClass()).To(BeTrue())
		Expect(event.Exit.IsFailure()).To(BeFalse())
		Expect(event.Step.IsEntry()).To(BeFalse())
		Expect(event.Step.IsExit()).To(BeFalse())
	})

	It("should pick exit kinds", func() {
		Expect(event.ExitKind(false, false)).To(Equal(event.Exit))
		Expect(event.ExitKind(false, true)).To(Equal(event.ExitWithError))
		Expect(event.ExitKind(true, false)).To(Equal(event.ClassExit))
		Expect(event.ExitKind(true, true)).To(Equal(event.ClassExitWithError))
		Expect(event.EntryKind(true)).To(Equal(event.ClassEntry))
	})

	It("should render arrows", func() {
		Expect(event.Entry.Arrow()).To(Equal("=>"))
		Expect(event.Exit.Arrow()).To(Equal("<="))
		Expect(event.ExitWithError.Arrow()).To(Equal("<E"))
		Expect(event.Step.Arrow()).To(Equal("--"))
	})

	It("should name unknown kinds", func() {
		Expect(event.Kind(42).String()).To(Equal("Kind(42)"))
		Expect(event.ClassExit.String()).To(Equal("class_exit"))
	})
})

var _ = Describe("Event", func() {
	It("should render an entry", func() {
		e := event.Event{
			Kind:      event.Entry,
			Target:    "Calculator",
			Operation: "add",
			Args:      []any{2, 3},
		}

		Expect(e.Name()).To(Equal("Calculator#add"))
		Expect(e.String()).To(Equal("=> Calculator#add(2, 3)"))
	})

	It("should render a failure", func() {
		e := event.Event{
			Kind:      event.ExitWithError,
			Target:    "Calculator",
			Operation: "divide",
			Err:       errors.New("division by zero"),
		}

		Expect(e.String()).
			To(Equal("<E Calculator#divide() !division by zero"))
	})
})

var _ = Describe("Filter", func() {
	It("should parse a bare type name", func() {
		f, err := event.ParseTarget("Foo")

		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(event.Filter{Target: "Foo"}))
	})

	It("should parse compound names", func() {
		f, err := event.ParseTarget("Foo#bar")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(event.Filter{Target: "Foo", Operation: "bar"}))

		f, err = event.ParseTarget(" Foo.bar ")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(event.Filter{Target: "Foo", Operation: "bar"}))
	})

	DescribeTable("should reject malformed identifiers",
		func(id string) {
			_, err := event.ParseTarget(id)
			Expect(err).To(MatchError(event.ErrBadIdentifier))
		},
		Entry("empty", ""),
		Entry("no type", "#bar"),
		Entry("no operation", "Foo#"),
		Entry("nested", "Foo#bar#baz"),
	)

	It("should match by strict equality", func() {
		f := event.Filter{Target: "Foo", Operation: "bar"}

		Expect(f.Match(event.Event{Target: "Foo", Operation: "bar"})).
			To(BeTrue())
		Expect(f.Match(event.Event{Target: "Foo", Operation: "baz"})).
			To(BeFalse())
		Expect(f.Match(event.Event{Target: "Qux", Operation: "bar"})).
			To(BeFalse())
	})

	It("should match everything when zero", func() {
		f := event.Filter{}

		Expect(f.IsZero()).To(BeTrue())
		Expect(f.Match(event.Event{Target: "Anything"})).To(BeTrue())
		Expect(f.String()).To(Equal("*"))
	})
})
