package warehouse

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres implements Source for PostgreSQL.
type Postgres struct {
	cfg *Config
	sqlSource
}

// NewPostgres creates a PostgreSQL source.
func NewPostgres(cfg *Config) *Postgres {
	p := &Postgres{cfg: cfg}
	p.driverName = "postgres"
	p.dsn = p.buildDSN
	return p
}

func (p *Postgres) buildDSN() (string, error) {
	sslMode := p.cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.cfg.Host, p.cfg.Port, p.cfg.User, p.cfg.Password, p.cfg.Database, sslMode), nil
}

func (p *Postgres) Columns(ctx context.Context, table string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := p.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}
	return scanColumns(rows)
}

func (p *Postgres) TotalRows(ctx context.Context, table string) (int64, error) {
	return p.totalRows(ctx, table)
}

func (p *Postgres) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 OFFSET %d LIMIT %d", table, offset, limit)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract batch: %v", err)
	}
	return rows, nil
}
