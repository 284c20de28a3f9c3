package marker

import (
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	// database/sql drivers for the supported dialects
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the driver and default marker query.
type Dialect string

const (
	DialectOracle   Dialect = "oracle"
	DialectPostgres Dialect = "postgres"
	DialectTiDB     Dialect = "tidb"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DialectOracle, DialectPostgres, DialectTiDB, DialectMySQL, DialectSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("marker: unknown dialect %q", s)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectOracle:
		return "oracle"
	case DialectPostgres:
		return "pgx"
	case DialectTiDB, DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}

// DefaultQuery returns the marker query for the dialect, or "" when the
// dialect has no single totally ordered position and a query must be configured.
func (d Dialect) DefaultQuery() string {
	switch d {
	case DialectOracle:
		return "SELECT TO_CHAR(current_scn) FROM v$database"
	case DialectPostgres:
		return "SELECT (pg_current_wal_lsn() - '0/0')::bigint"
	case DialectTiDB:
		return "SELECT TIDB_CURRENT_TSO()"
	default:
		return ""
	}
}

// OracleDSN builds a go-ora connection URL.
func OracleDSN(host string, port int, service, user, password string) string {
	return go_ora.BuildUrl(host, port, service, user, password, nil)
}
