// Package export writes warehouse result sets to local files that the
// Snowflake stage loader can ingest.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// Supported output formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// WriteFile drains rows into a file of the given format and returns the
// number of data rows written.
func WriteFile(path, format string, columns []warehouse.Column, rows warehouse.Rows) (int64, error) {
	switch format {
	case FormatCSV:
		file, err := os.Create(path)
		if err != nil {
			return 0, fmt.Errorf("failed to create output file: %v", err)
		}
		defer file.Close()
		return ToCSV(file, columns, rows)
	case FormatParquet:
		return ToParquet(path, columns, rows)
	default:
		return 0, fmt.Errorf("unsupported format: %s", format)
	}
}

// ToCSV writes rows as CSV with a header line. Values are stringified; NULLs
// become empty fields.
func ToCSV(w io.Writer, columns []warehouse.Column, rows warehouse.Rows) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns provided")
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %v", err)
	}

	var written int64
	for rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return written, err
		}

		record := make([]string, len(columns))
		for i, val := range values {
			record[i] = formatValue(val)
		}
		if err := writer.Write(record); err != nil {
			return written, fmt.Errorf("failed to write record: %v", err)
		}
		written++
	}

	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("error iterating rows: %v", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush output: %v", err)
	}
	return written, nil
}

func scanValues(rows warehouse.Rows, n int) ([]interface{}, error) {
	values := make([]interface{}, n)
	valuePtrs := make([]interface{}, n)
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %v", err)
	}
	return values, nil
}

func formatValue(val interface{}) string {
	if val == nil {
		return ""
	}
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", val)
}
