package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// ToParquet writes rows to a Parquet file. Every column is written as an
// optional UTF8 string, mirroring the stringification of the CSV path; the
// COPY INTO side matches columns by name.
func ToParquet(path string, columns []warehouse.Column, rows warehouse.Rows) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns provided")
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %v", err)
	}
	defer fw.Close()

	pw, err := writer.NewJSONWriter(parquetSchema(columns), fw, 2)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet writer: %v", err)
	}

	var written int64
	for rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return written, err
		}

		record := make(map[string]*string, len(columns))
		for i, col := range columns {
			if values[i] == nil {
				record[col.Name] = nil
				continue
			}
			s := formatValue(values[i])
			record[col.Name] = &s
		}

		data, err := json.Marshal(record)
		if err != nil {
			return written, fmt.Errorf("failed to marshal record: %v", err)
		}
		if err := pw.Write(string(data)); err != nil {
			return written, fmt.Errorf("failed to write record: %v", err)
		}
		written++
	}

	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("error iterating rows: %v", err)
	}

	if err := pw.WriteStop(); err != nil {
		return written, fmt.Errorf("failed to finalize parquet file: %v", err)
	}
	return written, nil
}

// parquetSchema builds the JSON schema for the writer: one optional UTF8
// field per column.
func parquetSchema(columns []warehouse.Column) string {
	fields := make([]string, len(columns))
	for i, col := range columns {
		fields[i] = fmt.Sprintf(
			`{"Tag": "name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}`,
			col.Name,
		)
	}
	return fmt.Sprintf(
		`{"Tag": "name=parquet_go_root, repetitiontype=REQUIRED", "Fields": [%s]}`,
		strings.Join(fields, ", "),
	)
}
