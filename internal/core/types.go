package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/tablexport/internal/config"
)

// Source reads rows from the source database.
// Implementations open whatever connection they need per call.
type Source interface {
	// CountRows returns SELECT COUNT(*) for table.
	CountRows(ctx context.Context, table string) (int64, error)

	// FetchBatch returns up to limit rows of table starting at offset,
	// with values in the order of table.Columns.
	FetchBatch(ctx context.Context, table config.TableSpec, limit, offset int64) ([][]any, error)
}

// Uploader ships a finished local file to the destination bucket under key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// TableState indicates the current stage of a table's export.
type TableState string

const (
	StatePending   TableState = "pending"
	StateCounting  TableState = "counting"
	StatePaging    TableState = "paging"
	StateDrained   TableState = "drained"
	StateUploading TableState = "uploading"
	StateDone      TableState = "done"
	StateFailed    TableState = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s TableState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Batch is one LIMIT/OFFSET window of a table.
type Batch struct {
	Offset int64
	Size   int64
	Rows   [][]any
}

// ExportJob is the transient state of one table's export.
type ExportJob struct {
	Table             config.TableSpec
	TotalRowCount     int64
	ProcessedRowCount int64
	Output            *Sink
}

// TableResult is the outcome of exporting one table.
type TableResult struct {
	Table         string
	State         TableState // StateDone or StateFailed
	FailedIn      TableState // stage that failed; empty on success
	TotalRows     int64
	ProcessedRows int64
	LocalPath     string
	Key           string
	Err           error
	Duration      time.Duration
}

// OK reports whether the table was exported and uploaded.
func (r TableResult) OK() bool {
	return r.State == StateDone && r.Err == nil
}

// Summary aggregates the per-table results of one run, in manifest order.
type Summary struct {
	Results  []TableResult
	Duration time.Duration
}

// Failed returns the results that did not complete.
func (s Summary) Failed() []TableResult {
	var failed []TableResult
	for _, r := range s.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// OK reports whether every table succeeded.
func (s Summary) OK() bool {
	return len(s.Failed()) == 0
}

// ExitCode maps the summary to the process exit status.
func (s Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}
