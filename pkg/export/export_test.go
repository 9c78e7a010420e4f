package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// sliceRows serves canned rows through the warehouse.Rows interface.
type sliceRows struct {
	rows [][]interface{}
	next int
	err  error
}

func (r *sliceRows) Next() bool {
	if r.err != nil || r.next >= len(r.rows) {
		return false
	}
	r.next++
	return true
}

func (r *sliceRows) Scan(dest ...interface{}) error {
	row := r.rows[r.next-1]
	for i, d := range dest {
		*(d.(*interface{})) = row[i]
	}
	return nil
}

func (r *sliceRows) Close() error { return nil }
func (r *sliceRows) Err() error   { return r.err }

var testColumns = []warehouse.Column{
	{Name: "id", Type: "bigint"},
	{Name: "name", Type: "text", Nullable: true},
}

func TestToCSV(t *testing.T) {
	t.Run("header and stringified values", func(t *testing.T) {
		rows := &sliceRows{rows: [][]interface{}{
			{int64(1), "marvin"},
			{int64(2), []byte("ford")},
			{int64(3), nil},
		}}

		var buf bytes.Buffer
		written, err := ToCSV(&buf, testColumns, rows)
		require.NoError(t, err)
		assert.Equal(t, int64(3), written)
		assert.Equal(t, "id,name\n1,marvin\n2,ford\n3,\n", buf.String())
	})

	t.Run("no columns", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := ToCSV(&buf, nil, &sliceRows{})
		assert.ErrorContains(t, err, "no columns provided")
	})

	t.Run("iteration error surfaces", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := ToCSV(&buf, testColumns, &sliceRows{err: os.ErrClosed})
		assert.ErrorContains(t, err, "error iterating rows")
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batch.csv")
		rows := &sliceRows{rows: [][]interface{}{{int64(1), "marvin"}}}

		written, err := WriteFile(path, FormatCSV, testColumns, rows)
		require.NoError(t, err)
		assert.Equal(t, int64(1), written)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "id,name\n1,marvin\n", string(data))
	})

	t.Run("parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batch.parquet")
		rows := &sliceRows{rows: [][]interface{}{
			{int64(1), "marvin"},
			{int64(2), nil},
		}}

		written, err := WriteFile(path, FormatParquet, testColumns, rows)
		require.NoError(t, err)
		assert.Equal(t, int64(2), written)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := WriteFile("out.avro", "avro", testColumns, &sliceRows{})
		assert.ErrorContains(t, err, "unsupported format: avro")
	})
}

func TestParquetSchema(t *testing.T) {
	schema := parquetSchema(testColumns)
	assert.Contains(t, schema, `"name=parquet_go_root, repetitiontype=REQUIRED"`)
	assert.Contains(t, schema, "name=id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL")
	assert.Contains(t, schema, "name=name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL")
}
