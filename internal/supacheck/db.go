package supacheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

// DBTX is the subset of *sql.DB the SQL client needs.
type DBTX interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLClient runs the check against a database URL instead of the REST
// endpoint.
type SQLClient struct {
	db      DBTX
	closer  func() error
	backend string
}

func NewSQLClient(ctx context.Context, backend, dsn string) (*SQLClient, error) {
	db, err := openDatabase(backend, dsn)
	if err != nil {
		return nil, err
	}

	c, err := newSQLClient(ctx, db, backend)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.closer = db.Close
	return c, nil
}

func newSQLClient(ctx context.Context, db DBTX, backend string) (*SQLClient, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", backend, err)
	}
	return &SQLClient{db: db, backend: backend}, nil
}

func openDatabase(backend, dsn string) (*sql.DB, error) {
	var driverName string

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrMissingDBURL
	}

	switch backend {
	case "sqlite":
		driverName = "sqlite"
		if err := validateSQLiteLocation(dsn); err != nil {
			return nil, err
		}
	case "postgres":
		driverName = "pgx"
	case "mysql":
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("unsupported database backend %q", backend)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(time.Minute)
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	return db, nil
}

// Select runs a single bounded SELECT. Errors raised by the database server
// itself come back in Response.Err; everything else is returned as the error.
func (c *SQLClient) Select(ctx context.Context, table, columns string, limit int) (Response, error) {
	query, err := buildSelect(c.backend, table, columns, limit)
	if err != nil {
		return Response{}, err
	}

	cols, rows, err := executeQuery(ctx, c.db, query)
	if err != nil {
		if apiErr, ok := reportedDriverError(err); ok {
			return Response{Err: apiErr}, nil
		}
		return Response{}, fmt.Errorf("execute select: %w", err)
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return Response{Columns: cols, Rows: rows}, nil
}

func (c *SQLClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func executeQuery(ctx context.Context, db DBTX, query string) ([]string, []Row, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			if i < len(dbTypes) {
				dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
			}
		}
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeDBValue(values[i], dbTypes[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, result, nil
}

func reportedDriverError(err error) (*APIError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &APIError{
			Code:    pgErr.Code,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Message: pgErr.Message,
		}, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &APIError{
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: myErr.Message,
		}, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return &APIError{
			Code:    strconv.Itoa(liteErr.Code()),
			Message: liteErr.Error(),
		}, true
	}

	return nil, false
}

// normalizeDBValue turns a scanned value into something encoding/json accepts.
// Raw bytes are only converted when the column type says they hold a number or
// a boolean, so text such as "007" or "Nan" comes back unchanged.
func normalizeDBValue(v any, dbType string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case float64:
		return finiteOrString(t)
	case float32:
		return finiteOrString(float64(t))
	case []byte:
		s := string(t)
		switch {
		case integerTypes[dbType]:
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
			if u, err := strconv.ParseUint(s, 10, 64); err == nil {
				return u
			}
		case floatTypes[dbType]:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return finiteOrString(f)
			}
		case boolTypes[dbType]:
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
		return s
	default:
		return t
	}
}

// JSON has no NaN or Infinity.
func finiteOrString(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

var integerTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true,
	"INT2": true, "INT4": true, "INT8": true, "YEAR": true,
	"UNSIGNED INT": true, "UNSIGNED TINYINT": true, "UNSIGNED SMALLINT": true,
	"UNSIGNED MEDIUMINT": true, "UNSIGNED BIGINT": true,
}

var floatTypes = map[string]bool{
	"FLOAT": true, "DOUBLE": true, "REAL": true, "FLOAT4": true, "FLOAT8": true, "DOUBLE PRECISION": true,
}

var boolTypes = map[string]bool{
	"BOOL": true, "BOOLEAN": true,
}

func sqlitePathFromDSN(dsn string) (string, bool) {
	s := strings.TrimSpace(dsn)
	s = strings.TrimPrefix(s, "file:")

	query := ""
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s, query = s[:i], s[i+1:]
	}

	if s == "" || s == ":memory:" || strings.Contains(query, "mode=memory") {
		return "", false
	}
	return s, true
}

func validateSQLiteLocation(dsn string) error {
	path, ok := sqlitePathFromDSN(dsn)
	if !ok {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sqlite database %q does not exist", path)
		}
		return fmt.Errorf("stat sqlite database: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("sqlite path %q points to a directory", path)
	}
	return nil
}
