// Package core provides the export logic: paging tables out of the source
// database into local CSV files and handing those files to an uploader.
//
// The package is independent of the database driver and of the destination
// store. Both sit behind the [Source] and [Uploader] interfaces, so the
// exporter can be driven by the command, tests, or any other caller.
//
// # Table Lifecycle
//
// Tables run one at a time in manifest order. Each moves through:
//
//	pending -> counting -> paging -> drained -> uploading -> done
//
// Any stage can end in failed. A failed table is recorded in the [Summary]
// and the run moves on to the next table.
//
// # Paging
//
// The row count from counting fixes the offsets 0, size, 2*size, ... below
// the total. Offsets are dispatched in rounds of [Options.Parallelism]; a
// round finishes before the next starts. Each batch:
//
//  1. Fetches its window via [Source.FetchBatch]
//  2. Retries the same offset with backoff per [RetryPolicy]
//  3. Appends its rows to the table's [Sink] as one block
//
// Batch failures also count against a per-table [Breaker]. Once it opens,
// or a batch runs out of attempts, the table fails.
//
// # CSV Format
//
// Rows are written with encoding/csv: fields containing commas, quotes or
// newlines are quoted, quotes are doubled, and runs of whitespace inside a
// value collapse to a single space. There is no header row; columns follow
// the manifest order.
//
// # Error Handling
//
// Errors are mapped to stable codes with [MapError]. Every failure log
// carries the code:
//
//   - DB001-DB007: Database errors (connectivity, auth, missing relations)
//   - AWS001-AWS005: Destination errors (access, bucket, credentials)
//   - FILE001-FILE003: Local file errors
//   - EXP001-EXP004: Export control flow (retries, breaker, cancellation)
package core
