package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/databricks/databricks-sql-go"
)

// Databricks implements Source for Databricks SQL warehouses.
type Databricks struct {
	cfg *Config
	sqlSource
}

// NewDatabricks creates a Databricks source.
func NewDatabricks(cfg *Config) *Databricks {
	d := &Databricks{cfg: cfg}
	d.driverName = "databricks"
	d.dsn = d.buildDSN
	return d
}

func (d *Databricks) buildDSN() (string, error) {
	if d.cfg.Workspace == "" || d.cfg.Token == "" {
		return "", fmt.Errorf("workspace and token must be provided")
	}

	// databricks://token:<access_token>@<workspace>:443/<http_path>?catalog=<catalog>&schema=<schema>
	dsn := url.URL{
		Scheme: "databricks",
		User:   url.UserPassword("token", d.cfg.Token),
		Host:   d.cfg.Workspace + ":443",
		Path:   d.cfg.Database,
	}

	q := dsn.Query()
	if d.cfg.Catalog != "" {
		q.Set("catalog", d.cfg.Catalog)
	}
	if d.cfg.Schema != "" {
		q.Set("schema", d.cfg.Schema)
	}
	dsn.RawQuery = q.Encode()
	return dsn.String(), nil
}

func (d *Databricks) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("DESCRIBE TABLE %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var name, dataType, comment sql.NullString
		if err := rows.Scan(&name, &dataType, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column: %v", err)
		}
		// DESCRIBE TABLE emits a blank-name separator row before partition info.
		if name.String == "" {
			break
		}
		columns = append(columns, Column{
			Name:     name.String,
			Type:     dataType.String,
			Nullable: true,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %v", err)
	}
	return columns, nil
}

func (d *Databricks) TotalRows(ctx context.Context, table string) (int64, error) {
	return d.totalRows(ctx, table)
}

func (d *Databricks) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", table, limit, offset)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract batch: %v", err)
	}
	return rows, nil
}
