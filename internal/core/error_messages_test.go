package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"),
			wantCode:    "DB001",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "bad password maps correctly",
			err:         errors.New(`FATAL: password authentication failed for user "exporter"`),
			wantCode:    "DB003",
			wantMessage: "Database rejected the credentials",
		},
		{
			name:        "missing relation maps correctly",
			err:         errors.New(`ERROR: relation "orders" does not exist (SQLSTATE 42P01)`),
			wantCode:    "DB004",
			wantMessage: "Table or column does not exist",
		},
		{
			name:        "connection slots map correctly",
			err:         errors.New("FATAL: remaining connection slots are reserved"),
			wantCode:    "DB006",
			wantMessage: "Database has no free connection slots",
		},
		{
			name:        "access denied maps correctly",
			err:         errors.New("operation error STS: AssumeRole, api error AccessDenied: not authorized"),
			wantCode:    "AWS001",
			wantMessage: "Access denied in the destination account",
		},
		{
			name:        "missing bucket maps correctly",
			err:         errors.New("api error NoSuchBucket: The specified bucket does not exist"),
			wantCode:    "AWS002",
			wantMessage: "Destination bucket does not exist",
		},
		{
			name:        "disk full maps correctly",
			err:         errors.New("write /tmp/orders.csv: no space left on device"),
			wantCode:    "FILE001",
			wantMessage: "Disk is full",
		},
		{
			name:        "closed sink maps correctly",
			err:         ErrSinkClosed,
			wantCode:    "FILE003",
			wantMessage: "Batch finished after the file was finalized",
		},
		{
			name:        "retries exhausted maps correctly",
			err:         fmt.Errorf("%w after 3 attempts: %w", ErrRetriesExhausted, errors.New("unexpected EOF")),
			wantCode:    "EXP001",
			wantMessage: "A batch failed on every attempt",
		},
		{
			name:        "root cause wins over retries exhausted",
			err:         fmt.Errorf("%w after 3 attempts: %w", ErrRetriesExhausted, errors.New("connection refused")),
			wantCode:    "DB001",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "circuit open wins over wrapped cause",
			err:         errors.Join(ErrCircuitOpen, errors.New("connection refused")),
			wantCode:    "EXP002",
			wantMessage: "Too many batch failures for this table",
		},
		{
			name:        "cancellation maps correctly",
			err:         fmt.Errorf("count rows: %w", context.Canceled),
			wantCode:    "EXP003",
			wantMessage: "Export was cancelled",
		},
		{
			name:        "deadline maps correctly",
			err:         context.DeadlineExceeded,
			wantCode:    "EXP004",
			wantMessage: "Export deadline exceeded",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("CONNECTION REFUSED"),
			wantCode:    "DB001",
			wantMessage: "Unable to connect to database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(errors.New("i/o timeout")); got != "DB007" {
		t.Errorf("ErrorCode() = %q, want DB007", got)
	}
	if got := ErrorCode(nil); got != "" {
		t.Errorf("ErrorCode(nil) = %q, want empty", got)
	}
}

func TestFormatUserError(t *testing.T) {
	err := errors.New("api error NoSuchBucket")
	result := FormatUserError(err)

	expected := "Destination bucket does not exist. Verify DESTINATION_BUCKET (AWS002)"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}
