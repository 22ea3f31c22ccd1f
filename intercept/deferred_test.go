package intercept_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/minstrel/callstack"
	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/intercept"
)

var _ = Describe("Deferred", func() {
	var (
		calls    int
		catalog  *intercept.Catalog
		engine   *intercept.Engine
		deferred *intercept.Deferred
		rec      *recorder
	)

	BeforeEach(func() {
		calls = 0
		catalog = intercept.NewCatalog()
		engine = intercept.NewEngine(callstack.NewTracker(nil))
		deferred = intercept.NewDeferred(catalog, engine)
		rec = &recorder{}
	})

	It("should wrap a declared type at once", func() {
		calc := newCalculator(&calls)
		Expect(catalog.Declare(calc)).To(Succeed())

		ok, err := deferred.WrapByName("Calculator", rec)

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(deferred.Pending()).To(BeEmpty())
	})

	It("should wrap a type once it is declared", func() {
		ok, err := deferred.WrapByName("Calculator#add", rec)

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(deferred.Pending()).To(Equal([]string{"Calculator#add"}))

		Expect(deferred.RetryAll()).To(Succeed())
		Expect(deferred.Pending()).To(HaveLen(1))

		calc := newCalculator(&calls)
		Expect(catalog.Declare(calc)).To(Succeed())
		Expect(deferred.RetryAll()).To(Succeed())

		Expect(deferred.Pending()).To(BeEmpty())
		Expect(engine.IsWrapped(calc, "add")).To(BeTrue())
		Expect(engine.IsWrapped(calc, "divide")).To(BeFalse())
	})

	It("should reject a malformed name", func() {
		_, err := deferred.WrapByName("Calculator#", rec)

		Expect(err).To(MatchError(event.ErrBadIdentifier))
		Expect(deferred.Pending()).To(BeEmpty())
	})

	It("should keep the wildcard across retries", func() {
		first := newCalculator(&calls)
		Expect(catalog.Declare(first)).To(Succeed())

		ok, err := deferred.WrapByName(event.Wildcard, rec)

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(engine.IsWrapped(first, "")).To(BeTrue())

		second := intercept.NewType("Greeter").
			WithMethod("greet", func(_ any, args []any) []any {
				return []any{"hello " + args[0].(string)}
			})
		Expect(catalog.Declare(second)).To(Succeed())
		Expect(deferred.RetryAll()).To(Succeed())

		Expect(engine.IsWrapped(second, "")).To(BeTrue())
		Expect(deferred.Pending()).To(Equal([]string{event.Wildcard}))

		_, err = second.Invoke(nil, "greet", "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.lines()).To(Equal([]string{
			"=> Greeter#greet(bob)",
			"<= Greeter#greet(bob)",
		}))
	})
})

var _ = Describe("Catalog", func() {
	It("should refuse a second type with the same name", func() {
		var calls int
		catalog := intercept.NewCatalog()

		Expect(catalog.Declare(newCalculator(&calls))).To(Succeed())
		err := catalog.Declare(newCalculator(&calls))

		Expect(err).To(MatchError(intercept.ErrDuplicateType))
		Expect(catalog.Types()).To(HaveLen(1))
	})

	It("should look types up by name", func() {
		var calls int
		catalog := intercept.NewCatalog()
		calc := newCalculator(&calls)
		Expect(catalog.Declare(calc)).To(Succeed())

		found, ok := catalog.Lookup("Calculator")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(calc))

		_, ok = catalog.Lookup("Nothing")
		Expect(ok).To(BeFalse())
	})
})
