package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/minstrel/event"
	"github.com/tebeka/atexit"
)

// CallTable is the table that holds the call records.
const CallTable = "calls"

// ErrFileExists is returned when the database file is already there.
var ErrFileExists = errors.New("database file already exists")

// Recorder writes call records into a SQLite database. Records are buffered
// and inserted in one transaction per batch.
type Recorder struct {
	lock      sync.Mutex
	db        *sql.DB
	path      string
	batchSize int
	buffer    []CallRecord
}

// NewRecorder creates the database file path and the call table. An empty
// path picks a unique name. The buffered records are flushed when the program
// exits through atexit.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		path = "minstrel_calls_" + xid.New().String() + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		db:        db,
		path:      path,
		batchSize: 10000,
	}

	if err := r.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", path)

	atexit.Register(func() {
		if err := r.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})

	return r, nil
}

// WithBatchSize sets how many records are buffered before they are inserted.
func (r *Recorder) WithBatchSize(n int) *Recorder {
	if n <= 0 {
		panic("batch size must be positive")
	}

	r.batchSize = n

	return r
}

// Path returns the database file name.
func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) createTable() error {
	fields := strings.Join(structs.Names(CallRecord{}), ", \n\t")
	createTableSQL := `CREATE TABLE ` + CallTable +
		` (` + "\n\t" + fields + "\n" + `);`

	if _, err := r.db.Exec(createTableSQL); err != nil {
		return err
	}

	_, err := r.db.Exec(
		`CREATE INDEX calls_by_name ON ` + CallTable + ` (Target, Operation);`)

	return err
}

// Write buffers the exit event of a call.
func (r *Recorder) Write(evt event.Event) error {
	return r.Insert(FromEvent(evt))
}

// Insert buffers a record.
func (r *Recorder) Insert(rec CallRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.batchSize {
		return r.flush()
	}

	return nil
}

// Flush inserts all the buffered records.
func (r *Recorder) Flush() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.flush()
}

func (r *Recorder) flush() error {
	if len(r.buffer) == 0 || r.db == nil {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(insertStatement())
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range r.buffer {
		if _, err := stmt.Exec(structs.Values(rec)...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.buffer = nil

	return nil
}

// Close flushes the buffered records and closes the database. Closing twice
// has no effect.
func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.db == nil {
		return nil
	}

	err := r.flush()
	err = errors.Join(err, r.db.Close())
	r.db = nil

	return err
}

func insertStatement() string {
	n := structs.Names(CallRecord{})
	for i := range n {
		n[i] = "?"
	}

	return "INSERT INTO " + CallTable + " VALUES (" + strings.Join(n, ", ") + ")"
}
