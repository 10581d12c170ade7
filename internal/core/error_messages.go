package core

// error_messages.go maps technical errors to stable codes and operator-facing
// messages. Every failure log line carries the code so that runbooks can be
// keyed on it.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: database host is not accepting connections
//	DB002 - Connection reset: connection dropped mid-query
//	DB003 - Authentication failed: RDS_USERNAME / RDS_PASSWORD rejected
//	DB004 - Missing relation: table or column in the manifest does not exist
//	DB005 - Permission denied: role lacks SELECT on the table
//	DB006 - Too many connections: server connection slots exhausted
//	DB007 - Timeout: dialing or querying timed out
//
// # AWS Errors (AWS001-AWS099)
//
//	AWS001 - Access denied: role cannot be assumed or lacks s3:PutObject
//	AWS002 - No such bucket: DESTINATION_BUCKET does not exist
//	AWS003 - Expired token: temporary credentials expired during upload
//	AWS004 - No credentials: source account credentials not found
//	AWS005 - Throttled: request rate exceeded
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Disk full: no space left for the local CSV
//	FILE002 - Read-only output: EXPORT_OUTPUT_DIR is not writable
//	FILE003 - Sink closed: batch finished after the table was finalized
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Retries exhausted: a batch failed on every attempt
//	EXP002 - Circuit open: too many batch failures for one table
//	EXP003 - Cancelled: the run was interrupted
//	EXP004 - Deadline exceeded: the run's deadline passed
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones. Sentinel errors
// (circuit open, cancellation) are checked with errors.Is before patterns,
// since their wrapped causes would otherwise match first.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides operator-facing error information with a suggested action.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Stable reference code
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgCircuitOpen = UserMessage{
		Message: "Too many batch failures for this table",
		Action:  "Check database health, then rerun the export",
		Code:    "EXP002",
	}
	msgCancelled = UserMessage{
		Message: "Export was cancelled",
		Action:  "Rerun the export when ready",
		Code:    "EXP003",
	}
	msgDeadline = UserMessage{
		Message: "Export deadline exceeded",
		Action:  "Rerun the export or raise the deadline",
		Code:    "EXP004",
	}
	msgUnknown = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Check the logged error for details",
		Code:    "ERR000",
	}
)

var errorPatterns = []errorPattern{
	// AWS first: S3 messages such as NoSuchBucket also say "does not exist"
	{"accessdenied", UserMessage{"Access denied in the destination account", "Check the role trust policy and its S3 permissions", "AWS001"}},
	{"nosuchbucket", UserMessage{"Destination bucket does not exist", "Verify DESTINATION_BUCKET", "AWS002"}},
	{"expiredtoken", UserMessage{"Temporary credentials expired", "Rerun the upload", "AWS003"}},
	{"failed to retrieve credentials", UserMessage{"No source account credentials found", "Configure AWS credentials for the exporter", "AWS004"}},
	{"slowdown", UserMessage{"Request rate exceeded", "Retry later", "AWS005"}},
	{"throttl", UserMessage{"Request rate exceeded", "Retry later", "AWS005"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Verify RDS_HOST / RDS_DB_PORT and security groups", "DB001"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Rerun the export", "DB002"}},
	{"password authentication failed", UserMessage{"Database rejected the credentials", "Verify RDS_USERNAME and RDS_PASSWORD", "DB003"}},
	{"does not exist", UserMessage{"Table or column does not exist", "Check the names in the tables manifest", "DB004"}},
	{"permission denied for", UserMessage{"Database role cannot read the table", "Grant SELECT to the export role", "DB005"}},
	{"too many connections", UserMessage{"Database has no free connection slots", "Lower EXPORT_PARALLELISM or retry later", "DB006"}},
	{"remaining connection slots", UserMessage{"Database has no free connection slots", "Lower EXPORT_PARALLELISM or retry later", "DB006"}},
	{"i/o timeout", UserMessage{"Database operation timed out", "Check network reachability of the database", "DB007"}},

	// Local files
	{"no space left", UserMessage{"Disk is full", "Free space in EXPORT_OUTPUT_DIR", "FILE001"}},
	{"read-only file system", UserMessage{"Output directory is read-only", "Point EXPORT_OUTPUT_DIR at a writable location", "FILE002"}},
	{"output sink closed", UserMessage{"Batch finished after the file was finalized", "Report this as a bug", "FILE003"}},

	// Export control flow
	{"retries exhausted", UserMessage{"A batch failed on every attempt", "Check database health, then rerun the export", "EXP001"}},
}

// MapError converts a technical error to an operator-facing message.
// Returns an empty UserMessage for nil errors.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return msgCircuitOpen
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return msgUnknown
}

// ErrorCode is shorthand for MapError(err).Code.
func ErrorCode(err error) string {
	return MapError(err).Code
}

// FormatUserError returns a one-line message suitable for the final report.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	msg := MapError(err)
	return msg.Message + ". " + msg.Action + " (" + msg.Code + ")"
}
