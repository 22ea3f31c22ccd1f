package datarecording

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/sarchlab/minstrel/event"
	"github.com/tebeka/atexit"
)

// CSVWriter stores call records in CSV format.
type CSVWriter struct {
	lock       sync.Mutex
	w          *csv.Writer
	records    []CallRecord
	bufferSize int
}

// NewCSVWriter creates a CSVWriter that writes to w, starting with the header
// line.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{
		w:          csv.NewWriter(w),
		bufferSize: 1000,
	}

	if err := cw.w.Write(structs.Names(CallRecord{})); err != nil {
		return nil, err
	}

	return cw, nil
}

// NewCSVFileWriter creates the file path.csv. An empty path picks a unique
// name. The file is flushed and closed when the program exits through
// atexit.
func NewCSVFileWriter(path string) (*CSVWriter, error) {
	if path == "" {
		path = "minstrel_calls_" + xid.New().String()
	}

	filename := path + ".csv"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	cw, err := NewCSVWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	atexit.Register(func() {
		if err := cw.Flush(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		file.Close()
	})

	return cw, nil
}

// Write buffers the exit event of a call.
func (c *CSVWriter) Write(evt event.Event) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.records = append(c.records, FromEvent(evt))
	if len(c.records) >= c.bufferSize {
		return c.flush()
	}

	return nil
}

// Flush writes the buffered records.
func (c *CSVWriter) Flush() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.flush()
}

func (c *CSVWriter) flush() error {
	for _, r := range c.records {
		row := make([]string, 0, 14)
		for _, v := range structs.Values(r) {
			row = append(row, csvValue(v))
		}

		if err := c.w.Write(row); err != nil {
			return err
		}
	}

	c.records = nil
	c.w.Flush()

	return c.w.Error()
}

func csvValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
