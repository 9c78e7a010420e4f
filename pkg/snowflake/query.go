package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	sf "github.com/snowflakedb/gosnowflake"
)

// Statements wrapped around a MultiQuery run as a transaction.
const (
	BeginTransactionStatement = "BEGIN TRANSACTION"
	EndTransactionStatement   = "COMMIT"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// MultiQueryOptions controls how MultiQuery runs its statements.
type MultiQueryOptions struct {
	// AsTransaction wraps the statements in BEGIN TRANSACTION/COMMIT.
	AsTransaction bool
	// ReturnTransactionControlResults keeps the results of the BEGIN/COMMIT
	// statements in the returned slice.
	ReturnTransactionControlResults bool
}

// Query executes a query and returns all result rows. The statement is
// submitted in the driver's asynchronous mode, so warehouse-side execution
// does not hold a server thread; the call still blocks until results are
// ready. PUT and GET statements must use QuerySync instead.
func (c *Connector) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return c.query(sf.WithAsyncMode(ctx), query, args...)
}

// QuerySync executes a query synchronously. Required for file transfer
// statements (PUT/GET), which the driver cannot run asynchronously.
func (c *Connector) QuerySync(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return c.query(ctx, query, args...)
}

// MultiQuery executes several statements on one session so session state
// (temporary tables, variables, an open transaction) carries across them.
// With AsTransaction set, the statements are bracketed by BEGIN
// TRANSACTION/COMMIT and rolled back if any of them fails.
func (c *Connector) MultiQuery(ctx context.Context, queries []string, opts MultiQueryOptions, args ...interface{}) ([][]Row, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries provided")
	}

	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session: %v", err)
	}
	defer conn.Close()

	statements := queries
	if opts.AsTransaction {
		statements = make([]string, 0, len(queries)+2)
		statements = append(statements, BeginTransactionStatement)
		statements = append(statements, queries...)
		statements = append(statements, EndTransactionStatement)
	}

	results := make([][]Row, 0, len(statements))
	for _, query := range statements {
		rows, err := conn.QueryContext(sf.WithAsyncMode(ctx), query, args...)
		if err != nil {
			if opts.AsTransaction {
				// Best effort: the driver also rolls back when the session closes.
				conn.ExecContext(ctx, "ROLLBACK")
			}
			return nil, fmt.Errorf("query %q failed: %v", query, err)
		}

		result, err := scanRows(rows)
		if err != nil {
			if opts.AsTransaction {
				conn.ExecContext(ctx, "ROLLBACK")
			}
			return nil, err
		}
		results = append(results, result)
	}

	if opts.AsTransaction && !opts.ReturnTransactionControlResults {
		results = results[1 : len(results)-1]
	}
	return results, nil
}

// FetchOne returns the first row of the result set, or io.EOF if the result
// set is empty.
func (c *Connector) FetchOne(ctx context.Context, query string, args ...interface{}) (Row, error) {
	rows, err := c.FetchMany(ctx, query, 1, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows[0], nil
}

// FetchMany returns up to size rows of the result set.
func (c *Connector) FetchMany(ctx context.Context, query string, size int, args ...interface{}) ([]Row, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}

	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %v", err)
	}

	result := make([]Row, 0, size)
	for len(result) < size && rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}
	return result, nil
}

// FetchAll returns every row of the result set.
func (c *Connector) FetchAll(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return c.Query(ctx, query, args...)
}

// Execute runs a statement that produces no result set.
func (c *Connector) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("no query provided")
	}

	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, query, args...)
}

// ExecuteMany runs a statement once per parameter set inside a single
// transaction, reusing one prepared statement.
func (c *Connector) ExecuteMany(ctx context.Context, query string, paramSets [][]interface{}) error {
	if query == "" {
		return fmt.Errorf("no query provided")
	}
	if len(paramSets) == 0 {
		return fmt.Errorf("no parameter sets provided")
	}

	db, err := c.DB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %v", err)
	}
	defer stmt.Close()

	for _, params := range paramSets {
		if _, err := stmt.ExecContext(ctx, params...); err != nil {
			tx.Rollback()
			return fmt.Errorf("statement failed: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (c *Connector) query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	if query == "" {
		return nil, fmt.Errorf("no query provided")
	}

	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// scanRows drains a result set into row maps and closes it.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %v", err)
	}

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}
	return result, nil
}

func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %v", err)
	}

	row := make(Row, len(columns))
	for i, name := range columns {
		row[name] = values[i]
	}
	return row, nil
}
