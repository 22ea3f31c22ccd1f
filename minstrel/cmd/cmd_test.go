package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/minstrel/datarecording"
	"github.com/sarchlab/minstrel/event"
)

func run(args ...string) (string, error) {
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return buf.String(), err
}

func call(id, op string, depth int, d time.Duration, err error) event.Event {
	kind := event.Exit
	if err != nil {
		kind = event.ExitWithError
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).
		Add(time.Duration(depth) * time.Millisecond)

	return event.Event{
		EntryID: id, Kind: kind, Target: "Calculator", Operation: op,
		Args: []any{1, 2}, Depth: depth, Time: start.Add(d), Duration: d,
		Paired: true, Err: err,
	}
}

var _ = Describe("Commands", func() {
	var db string

	BeforeEach(func() {
		db = filepath.Join(GinkgoT().TempDir(), "calls.sqlite3")
		rec, err := datarecording.NewRecorder(db)
		Expect(err).NotTo(HaveOccurred())

		Expect(rec.Write(call("a", "add", 1, time.Second, nil))).To(Succeed())
		Expect(rec.Write(call("b", "check", 2, time.Millisecond, nil))).
			To(Succeed())
		Expect(rec.Write(call("c", "divide", 1, time.Second,
			errors.New("division by zero")))).To(Succeed())
		Expect(rec.Close()).To(Succeed())
	})

	AfterEach(func() {
		replayCmd.Flags().Set("target", "")
		replayCmd.Flags().Set("failed", "false")
		replayCmd.Flags().Set("limit", "0")
		replayCmd.Flags().Set("offset", "0")
	})

	It("should replay the calls indented by depth", func() {
		out, err := run("replay", db)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Calculator#add (2 args) 1s\n"))
		Expect(out).To(ContainSubstring("  Calculator#check (2 args) 1ms\n"))
		Expect(out).To(ContainSubstring("!division by zero"))
	})

	It("should filter the replay", func() {
		out, err := run("replay", db, "--target", "Calculator#divide")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(
			"Calculator#divide (2 args) 1s !division by zero\n"))
	})

	It("should tell when the replay is truncated", func() {
		out, err := run("replay", db, "--limit", "1")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("... 1 of 3 calls shown"))
	})

	It("should refuse a malformed target", func() {
		_, err := run("replay", db, "--target", "Calculator#")

		Expect(err).To(MatchError(event.ErrBadIdentifier))
	})

	It("should summarize the calls", func() {
		out, err := run("stats", db)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("OPERATION"))
		Expect(out).To(MatchRegexp(`Calculator#divide\s+1\s+1\s+1s\s+1s`))
	})

	It("should check a configuration file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "minstrel.yaml")
		Expect(os.WriteFile(path, []byte("targets: [Calculator]\n"), 0o644)).
			To(Succeed())

		out, err := run("check", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("targets: [Calculator]"))
	})
})
