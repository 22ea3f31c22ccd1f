package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fatih/structs"
)

// QueryParams selects call records.
type QueryParams struct {
	// Target and Operation filter by equality when they are not empty.
	Target    string
	Operation string

	// FailedOnly keeps the calls that ended with an error.
	FailedOnly bool

	// Limit is the maximum number of records to return. Set to 0 for no
	// limit.
	Limit int

	// Offset is the number of records to skip.
	Offset int
}

// A Summary aggregates the calls of one operation.
type Summary struct {
	Target    string
	Operation string
	Count     int
	Failed    int
	AvgNs     float64
	MaxNs     int64
}

// Name returns "Target#Operation".
func (s Summary) Name() string {
	return s.Target + "#" + s.Operation
}

// Reader reads call records from a SQLite database.
type Reader struct {
	*sql.DB
}

// NewReader opens a database written by a Recorder.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return &Reader{DB: db}, nil
}

// NewReaderWithDB creates a Reader with a given database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{DB: db}
}

func (p QueryParams) where() (string, []any) {
	conds := []string{}
	args := []any{}

	if p.Target != "" {
		conds = append(conds, "Target = ?")
		args = append(args, p.Target)
	}

	if p.Operation != "" {
		conds = append(conds, "Operation = ?")
		args = append(args, p.Operation)
	}

	if p.FailedOnly {
		conds = append(conds, "Failed = 1")
	}

	if len(conds) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListCalls returns the selected records in start order, and the number of
// records that match without the limit.
func (r *Reader) ListCalls(
	ctx context.Context,
	params QueryParams,
) ([]CallRecord, int, error) {
	where, args := params.where()

	var total int
	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+CallTable+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + strings.Join(structs.Names(CallRecord{}), ", ") +
		" FROM " + CallTable + where + " ORDER BY Start, Depth"

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
		if params.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", params.Offset)
		}
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(scanTargets(&rec)...); err != nil {
			return nil, 0, err
		}

		records = append(records, rec)
	}

	return records, total, rows.Err()
}

func scanTargets(rec *CallRecord) []any {
	return []any{
		&rec.ID, &rec.ParentID, &rec.Context, &rec.Kind, &rec.Target,
		&rec.Operation, &rec.Depth, &rec.NumArgs, &rec.Start, &rec.End,
		&rec.DurationNs, &rec.Paired, &rec.Failed, &rec.Error,
	}
}

// Summaries aggregates the paired calls per operation, sorted by name.
func (r *Reader) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT Target, Operation, COUNT(*), SUM(Failed),
			AVG(DurationNs), MAX(DurationNs)
		FROM `+CallTable+`
		WHERE Paired = 1
		GROUP BY Target, Operation
		ORDER BY Target, Operation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		err := rows.Scan(&s.Target, &s.Operation, &s.Count, &s.Failed,
			&s.AvgNs, &s.MaxNs)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
