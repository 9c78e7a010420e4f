package warehouse

import (
	"context"
	"fmt"

	"github.com/PrefectHQ/prefect-snowflake/pkg/snowflake"
)

// Snowflake implements Source on top of the connector block, so tables can be
// read back out of Snowflake, or copied between accounts by pairing a
// Snowflake source with the stage loader.
type Snowflake struct {
	connector *snowflake.Connector
	sqlSource
}

// NewSnowflake creates a Snowflake source from the source config. Password
// and token authentication are supported here; use NewSnowflakeForConnector
// for key-pair or SSO credentials.
func NewSnowflake(cfg *Config) *Snowflake {
	return NewSnowflakeForConnector(&snowflake.Connector{
		Database:  cfg.Database,
		Warehouse: cfg.Warehouse,
		Schema:    cfg.Schema,
		Credentials: snowflake.Credentials{
			Account:  cfg.Account,
			User:     cfg.User,
			Password: cfg.Password,
			Token:    cfg.Token,
		},
	})
}

// NewSnowflakeForConnector creates a Snowflake source backed by an existing
// connector block.
func NewSnowflakeForConnector(connector *snowflake.Connector) *Snowflake {
	s := &Snowflake{connector: connector}
	s.driverName = "snowflake"
	s.dsn = connector.DSN
	return s
}

func (s *Snowflake) Columns(ctx context.Context, table string) ([]Column, error) {
	// Unquoted Snowflake identifiers are stored uppercase.
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = UPPER(?)
		ORDER BY ordinal_position
	`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}
	return scanColumns(rows)
}

func (s *Snowflake) TotalRows(ctx context.Context, table string) (int64, error) {
	return s.totalRows(ctx, table)
}

func (s *Snowflake) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 LIMIT %d OFFSET %d", table, limit, offset)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract batch: %v", err)
	}
	return rows, nil
}
