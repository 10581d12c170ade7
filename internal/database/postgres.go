// Package database reads export batches from the source PostgreSQL database.
//
// Every call opens its own connection and closes it before returning; there
// is no pool. Table and column names come from the manifest and are
// interpolated into the SQL as-is, so the manifest must be trusted input.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/tablexport/internal/config"
)

// applicationName is reported to the server in pg_stat_activity.
const applicationName = "tablexport"

// querier is the subset of *pgx.Conn the exporter needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Postgres implements core.Source over short-lived pgx connections.
type Postgres struct {
	connConfig *pgx.ConnConfig
	connect    func(ctx context.Context) (querier, error)
}

// NewPostgres parses the connection settings. No connection is opened.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	connConfig, err := pgx.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	connConfig.RuntimeParams["application_name"] = applicationName

	p := &Postgres{connConfig: connConfig}
	p.connect = func(ctx context.Context) (querier, error) {
		conn, err := pgx.ConnectConfig(ctx, p.connConfig.Copy())
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return p, nil
}

// ConnString builds a keyword/value connection string. Values are quoted so
// passwords may contain spaces or quotes.
func ConnString(cfg config.DatabaseConfig) string {
	parts := []string{
		"host=" + quoteValue(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"user=" + quoteValue(cfg.User),
		"password=" + quoteValue(cfg.Password),
		"dbname=" + quoteValue(cfg.Name),
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteValue(cfg.SSLMode))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// CountQuery returns the row count statement for table.
func CountQuery(table string) string {
	return "SELECT COUNT(*) FROM " + table
}

// SelectQuery returns the paged statement for one batch.
func SelectQuery(table config.TableSpec, limit, offset int64) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d",
		strings.Join(table.Columns, ", "), table.Name, limit, offset)
}

// Ping opens a connection and checks the server responds.
func (p *Postgres) Ping(ctx context.Context) error {
	conn, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	return conn.Ping(ctx)
}

// CountRows returns SELECT COUNT(*) for table on a fresh connection.
func (p *Postgres) CountRows(ctx context.Context, table string) (int64, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	var total int64
	if err := conn.QueryRow(ctx, CountQuery(table)).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

// FetchBatch returns up to limit rows of table starting at offset on a fresh
// connection. Values are in manifest column order.
func (p *Postgres) FetchBatch(ctx context.Context, table config.TableSpec, limit, offset int64) ([][]any, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	rows, err := conn.Query(ctx, SelectQuery(table, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("select %s at offset %d: %w", table.Name, offset, err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([][]any, error) {
	fields := rows.FieldDescriptions()

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		normalize(fields, values)
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalize rewrites values whose Go form loses the column's SQL meaning.
// DATE columns decode to midnight UTC time.Time and are written back as
// plain dates.
func normalize(fields []pgconn.FieldDescription, values []any) {
	for i, v := range values {
		if i >= len(fields) {
			return
		}
		if fields[i].DataTypeOID != pgtype.DateOID {
			continue
		}
		if t, ok := v.(time.Time); ok {
			values[i] = t.Format(time.DateOnly)
		}
	}
}
