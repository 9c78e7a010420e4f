package warehouse

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// BigQuery implements Source for Google BigQuery. Unlike the other sources it
// speaks the BigQuery client API rather than database/sql.
type BigQuery struct {
	cfg    *Config
	client *bigquery.Client
}

// NewBigQuery creates a BigQuery source.
func NewBigQuery(cfg *Config) *BigQuery {
	return &BigQuery{cfg: cfg}
}

func (b *BigQuery) Connect(ctx context.Context) error {
	if b.cfg.ProjectID == "" {
		return fmt.Errorf("project_id must be provided")
	}

	client, err := bigquery.NewClient(ctx, b.cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery client: %v", err)
	}
	if b.cfg.Location != "" {
		client.Location = b.cfg.Location
	}

	b.client = client
	return nil
}

func (b *BigQuery) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// splitTable splits a "dataset.table" reference.
func splitTable(table string) (string, string, error) {
	parts := strings.Split(table, ".")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid table name format, expected 'dataset.table', got %s", table)
	}
	return parts[0], parts[1], nil
}

func (b *BigQuery) Columns(ctx context.Context, table string) ([]Column, error) {
	dataset, name, err := splitTable(table)
	if err != nil {
		return nil, err
	}

	md, err := b.client.Dataset(dataset).Table(name).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table metadata: %v", err)
	}

	columns := make([]Column, len(md.Schema))
	for i, field := range md.Schema {
		columns[i] = Column{
			Name:     field.Name,
			Type:     string(field.Type),
			Nullable: !field.Required,
		}
	}
	return columns, nil
}

func (b *BigQuery) TotalRows(ctx context.Context, table string) (int64, error) {
	rows, err := b.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM `%s`", table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("failed to get total rows: empty result")
	}

	var count interface{}
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}

	n, ok := count.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", count)
	}
	return n, nil
}

func (b *BigQuery) ExtractBatch(ctx context.Context, table string, offset, limit int64) (Rows, error) {
	query := fmt.Sprintf("SELECT * FROM `%s` LIMIT %d OFFSET %d", table, limit, offset)
	return b.Query(ctx, query)
}

func (b *BigQuery) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	if b.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	q := b.client.Query(query)
	params := make([]bigquery.QueryParameter, len(args))
	for i, arg := range args {
		params[i] = bigquery.QueryParameter{Value: arg}
	}
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %v", err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read query results: %v", err)
	}
	return &bigqueryRows{it: it}, nil
}

// bigqueryRows adapts a BigQuery row iterator to the Rows interface. Scan
// destinations must be *interface{} pointers.
type bigqueryRows struct {
	it      *bigquery.RowIterator
	current []bigquery.Value
	err     error
}

func (r *bigqueryRows) Next() bool {
	var values []bigquery.Value
	err := r.it.Next(&values)
	if err == iterator.Done {
		return false
	}
	if err != nil {
		r.err = err
		return false
	}
	r.current = values
	return true
}

func (r *bigqueryRows) Scan(dest ...interface{}) error {
	if len(dest) != len(r.current) {
		return fmt.Errorf("expected %d scan destinations, got %d", len(r.current), len(dest))
	}
	for i, d := range dest {
		ptr, ok := d.(*interface{})
		if !ok {
			return fmt.Errorf("bigquery rows require *interface{} destinations, got %T", d)
		}
		*ptr = r.current[i]
	}
	return nil
}

func (r *bigqueryRows) Close() error { return nil }

func (r *bigqueryRows) Err() error { return r.err }
