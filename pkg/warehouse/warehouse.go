// Package warehouse provides read-side connectors for the warehouses that
// data can be migrated into Snowflake from.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// Column describes one column of a source table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Rows is the minimal result-set surface the transfer pipeline needs.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Source is a warehouse that tables can be extracted from.
type Source interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// Columns returns the columns of a table in ordinal order.
	Columns(ctx context.Context, table string) ([]Column, error)

	// TotalRows returns the number of rows in a table.
	TotalRows(ctx context.Context, table string) (int64, error)

	// ExtractBatch reads limit rows of a table starting at offset.
	ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error)

	// Query runs an arbitrary query against the source.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
}

// Config holds the connection parameters for every supported source type.
type Config struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	Schema   string `yaml:"schema,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`

	// BigQuery specific
	ProjectID string `yaml:"project_id,omitempty"`
	Location  string `yaml:"location,omitempty"`

	// Databricks specific
	Workspace string `yaml:"workspace,omitempty"`
	Token     string `yaml:"token,omitempty"`
	Catalog   string `yaml:"catalog,omitempty"`

	// Snowflake specific
	Account   string `yaml:"account,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
}

// New creates a source for the configured warehouse type.
func New(cfg *Config) (Source, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgres(cfg), nil
	case "mssql":
		return NewMSSQL(cfg), nil
	case "databricks":
		return NewDatabricks(cfg), nil
	case "duckdb":
		return NewDuckDB(cfg), nil
	case "bigquery":
		return NewBigQuery(cfg), nil
	case "snowflake":
		return NewSnowflake(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}

// sqlSource carries the database/sql plumbing shared by the driver-backed
// sources.
type sqlSource struct {
	driverName string
	dsn        func() (string, error)
	db         *sql.DB
}

func (s *sqlSource) Connect(ctx context.Context) error {
	dsn, err := s.dsn()
	if err != nil {
		return err
	}

	db, err := sql.Open(s.driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	s.db = db
	return nil
}

func (s *sqlSource) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqlSource) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not connected")
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlSource) totalRows(ctx context.Context, table string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("not connected")
	}

	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total rows: %v", err)
	}
	return count, nil
}

// scanColumns reads (name, type, nullable-as-YES/NO) triples.
func scanColumns(rows *sql.Rows) ([]Column, error) {
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %v", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %v", err)
	}
	return columns, nil
}
