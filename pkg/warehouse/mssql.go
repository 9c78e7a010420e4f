package warehouse

import (
	"context"
	"fmt"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"
)

// MSSQL implements Source for Microsoft SQL Server.
type MSSQL struct {
	cfg *Config
	sqlSource
}

// NewMSSQL creates a SQL Server source.
func NewMSSQL(cfg *Config) *MSSQL {
	m := &MSSQL{cfg: cfg}
	m.driverName = "sqlserver"
	m.dsn = m.buildDSN
	return m
}

func (m *MSSQL) buildDSN() (string, error) {
	dsn := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(m.cfg.User, m.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
	}

	q := dsn.Query()
	q.Set("database", m.cfg.Database)
	dsn.RawQuery = q.Encode()
	return dsn.String(), nil
}

func (m *MSSQL) Columns(ctx context.Context, table string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = @p1
		ORDER BY ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}
	return scanColumns(rows)
}

func (m *MSSQL) TotalRows(ctx context.Context, table string) (int64, error) {
	return m.totalRows(ctx, table)
}

func (m *MSSQL) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	// SQL Server requires ORDER BY for OFFSET/FETCH.
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		table, offset, limit)
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract batch: %v", err)
	}
	return rows, nil
}
