package ddl

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/roach88/tableshard/internal/schema"
)

// Executor applies a single statement.
type Executor interface {
	Exec(ctx context.Context, stmt Statement) error
}

// SQLExecutor runs statements on a MySQL connection pool. Each statement
// gets its own connection scope, released whether or not it succeeds.
type SQLExecutor struct {
	db *sql.DB
}

// NewSQLExecutor creates an executor over db.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// Exec runs stmt. Errors are *schema.Error with kind CONNECTION_FAILURE
// or STATEMENT_FAILURE.
func (e *SQLExecutor) Exec(ctx context.Context, stmt Statement) error {
	query := stmt.SQL()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return &schema.Error{
			Kind:      schema.KindConnectionFailure,
			Message:   "cannot obtain a connection",
			Shard:     stmt.Table,
			Statement: query,
			Err:       err,
		}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return &schema.Error{
			Kind:      Classify(err),
			Message:   "statement failed",
			Shard:     stmt.Table,
			Statement: query,
			Err:       err,
		}
	}
	return nil
}

// Classify maps a driver error onto a reconciliation error kind.
func Classify(err error) schema.ErrorKind {
	if err == nil {
		return ""
	}
	if k := schema.KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return schema.KindConnectionFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return schema.KindConnectionFailure
	}
	return schema.KindStatementFailure
}

// MySQLErrorNumber returns the server error number, or 0 if err did not
// come from the server.
func MySQLErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
