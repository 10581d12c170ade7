package core

// csv.go turns database rows into CSV text.
//
// Every value is stringified, internal whitespace runs are collapsed to a
// single space and NULL becomes an empty field. Quoting follows RFC 4180 via
// encoding/csv: fields containing a comma, a double quote or a line break are
// quoted and embedded quotes are doubled.

import (
	"bytes"
	"database/sql/driver"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatValue renders a single column value the way it appears in the CSV.
func FormatValue(v any) string {
	return collapseWhitespace(stringify(v))
}

// FormatRecord renders one row.
func FormatRecord(values []any) []string {
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = FormatValue(v)
	}
	return record
}

// EncodeRows writes rows as CSV lines terminated by "\n".
func EncodeRows(w io.Writer, rows [][]any) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(FormatRecord(row)); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeLine returns a single row as a CSV line without the trailing newline.
func EncodeLine(values []any) (string, error) {
	var buf bytes.Buffer
	if err := EncodeRows(&buf, [][]any{values}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func collapseWhitespace(s string) string {
	if s == "" {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case driver.Valuer:
		// pgtype values (Numeric, Interval, ...) render through their SQL form
		val, err := x.Value()
		if err != nil || val == nil {
			return ""
		}
		return stringify(val)
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
