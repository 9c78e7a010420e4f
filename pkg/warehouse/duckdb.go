package warehouse

import (
	"context"
	"fmt"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDB implements Source for local DuckDB files. Mostly used in tests and
// for trying the transfer pipeline without a live warehouse.
type DuckDB struct {
	cfg *Config
	sqlSource
}

// NewDuckDB creates a DuckDB source. The database name is the file path; an
// empty name opens an in-memory database.
func NewDuckDB(cfg *Config) *DuckDB {
	d := &DuckDB{cfg: cfg}
	d.driverName = "duckdb"
	d.dsn = d.buildDSN
	return d
}

func (d *DuckDB) buildDSN() (string, error) {
	if d.cfg.Database == "" {
		return "", nil
	}

	path := d.cfg.Database
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	return path, nil
}

func (d *DuckDB) Columns(ctx context.Context, table string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := d.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}
	return scanColumns(rows)
}

func (d *DuckDB) TotalRows(ctx context.Context, table string) (int64, error) {
	return d.totalRows(ctx, table)
}

func (d *DuckDB) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", table, limit, offset)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract batch: %v", err)
	}
	return rows, nil
}
