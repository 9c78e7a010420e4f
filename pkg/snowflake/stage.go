package snowflake

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// File formats accepted by the stage loader.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// StageLoader uploads local files to a named internal stage and loads them
// into a table with COPY INTO. Script generation is separated from execution
// so operators can review the statements before running them.
type StageLoader struct {
	Connector *Connector
	// Stage is the name of the internal stage, created on demand.
	Stage string
}

// NewStageLoader creates a loader for the given connector and stage name.
func NewStageLoader(connector *Connector, stage string) *StageLoader {
	return &StageLoader{Connector: connector, Stage: stage}
}

// PutScript generates the PUT statement that uploads a local file to the
// stage under the given prefix.
func (l *StageLoader) PutScript(localPath, prefix string) (string, error) {
	if l.Stage == "" {
		return "", fmt.Errorf("stage must be provided")
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %v", err)
	}

	location := "@" + l.Stage
	if prefix != "" {
		location += "/" + strings.Trim(prefix, "/")
	}
	return fmt.Sprintf("PUT file://%s %s AUTO_COMPRESS=FALSE OVERWRITE=TRUE", abs, location), nil
}

// CopyScript generates the COPY INTO statement that loads staged files under
// prefix into the target table.
func (l *StageLoader) CopyScript(table, prefix, format string) (string, error) {
	if l.Stage == "" {
		return "", fmt.Errorf("stage must be provided")
	}
	if table == "" {
		return "", fmt.Errorf("table must be provided")
	}

	var fileFormat, matching string
	switch format {
	case FormatCSV:
		fileFormat = "TYPE = CSV FIELD_OPTIONALLY_ENCLOSED_BY = '\"' SKIP_HEADER = 1"
	case FormatParquet:
		fileFormat = "TYPE = PARQUET"
		matching = " MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE"
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	location := "@" + l.Stage
	if prefix != "" {
		location += "/" + strings.Trim(prefix, "/")
	}
	return fmt.Sprintf("COPY INTO %s FROM %s FILE_FORMAT = (%s)%s ON_ERROR = 'ABORT_STATEMENT' PURGE = TRUE",
		table, location, fileFormat, matching), nil
}

// EnsureStage creates the internal stage if it does not exist.
func (l *StageLoader) EnsureStage(ctx context.Context) error {
	if l.Stage == "" {
		return fmt.Errorf("stage must be provided")
	}

	_, err := l.Connector.Execute(ctx, fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", l.Stage))
	if err != nil {
		return fmt.Errorf("failed to create stage: %v", err)
	}
	return nil
}

// Load uploads a local file and copies it into the target table. The PUT
// statement runs on the synchronous path, which file transfers require.
func (l *StageLoader) Load(ctx context.Context, localPath, table, format string) error {
	if err := l.EnsureStage(ctx); err != nil {
		return err
	}

	prefix := filepath.Base(localPath)

	putSQL, err := l.PutScript(localPath, "")
	if err != nil {
		return err
	}
	if _, err := l.Connector.QuerySync(ctx, putSQL); err != nil {
		return fmt.Errorf("failed to upload file to stage: %v", err)
	}

	copySQL, err := l.CopyScript(table, prefix, format)
	if err != nil {
		return err
	}
	if _, err := l.Connector.Execute(ctx, copySQL); err != nil {
		return fmt.Errorf("failed to load staged file: %v", err)
	}
	return nil
}
