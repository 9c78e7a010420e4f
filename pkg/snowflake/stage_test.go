package snowflake

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutScript(t *testing.T) {
	loader := NewStageLoader(nil, "LOAD_STAGE")

	t.Run("without prefix", func(t *testing.T) {
		script, err := loader.PutScript("/tmp/batch.csv", "")
		require.NoError(t, err)
		assert.Equal(t, "PUT file:///tmp/batch.csv @LOAD_STAGE AUTO_COMPRESS=FALSE OVERWRITE=TRUE", script)
	})

	t.Run("with prefix", func(t *testing.T) {
		script, err := loader.PutScript("/tmp/batch.csv", "/job-1/")
		require.NoError(t, err)
		assert.Equal(t, "PUT file:///tmp/batch.csv @LOAD_STAGE/job-1 AUTO_COMPRESS=FALSE OVERWRITE=TRUE", script)
	})

	t.Run("relative path resolved", func(t *testing.T) {
		script, err := loader.PutScript("batch.csv", "")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(strings.TrimPrefix(strings.Fields(script)[1], "file://")))
	})

	t.Run("missing stage", func(t *testing.T) {
		_, err := NewStageLoader(nil, "").PutScript("/tmp/batch.csv", "")
		assert.ErrorContains(t, err, "stage must be provided")
	})
}

func TestCopyScript(t *testing.T) {
	loader := NewStageLoader(nil, "LOAD_STAGE")

	t.Run("csv", func(t *testing.T) {
		script, err := loader.CopyScript("EVENTS", "job-1", FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, `COPY INTO EVENTS FROM @LOAD_STAGE/job-1 FILE_FORMAT = (TYPE = CSV FIELD_OPTIONALLY_ENCLOSED_BY = '"' SKIP_HEADER = 1) ON_ERROR = 'ABORT_STATEMENT' PURGE = TRUE`, script)
	})

	t.Run("parquet", func(t *testing.T) {
		script, err := loader.CopyScript("EVENTS", "", FormatParquet)
		require.NoError(t, err)
		assert.Equal(t, "COPY INTO EVENTS FROM @LOAD_STAGE FILE_FORMAT = (TYPE = PARQUET) MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE ON_ERROR = 'ABORT_STATEMENT' PURGE = TRUE", script)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := loader.CopyScript("EVENTS", "", "avro")
		assert.ErrorContains(t, err, "unsupported format: avro")
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := loader.CopyScript("", "", FormatCSV)
		assert.ErrorContains(t, err, "table must be provided")
	})
}

func TestStageLoaderLoad(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	loader := NewStageLoader(fakeConnector(t, engine), "LOAD_STAGE")

	require.NoError(t, loader.Load(ctx, "/tmp/batch-0.csv", "EVENTS", FormatCSV))

	assert.Contains(t, engine.execs, "CREATE STAGE IF NOT EXISTS LOAD_STAGE")
	require.Len(t, engine.queries, 1)
	assert.Equal(t, "PUT file:///tmp/batch-0.csv @LOAD_STAGE AUTO_COMPRESS=FALSE OVERWRITE=TRUE", engine.queries[0])

	copied := false
	for _, stmt := range engine.execs {
		if strings.HasPrefix(stmt, "COPY INTO EVENTS FROM @LOAD_STAGE/batch-0.csv") {
			copied = true
		}
	}
	assert.True(t, copied, "expected a COPY INTO statement, got %v", engine.execs)
}
