// Package transfer moves tables from a source warehouse into Snowflake in
// resumable batches.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
	"github.com/PrefectHQ/prefect-snowflake/pkg/export"
	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// Job status values recorded in the checkpoint.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Checkpoint records the progress of a transfer job. It is stored as a block
// so a restarted job resumes at the last committed batch.
type Checkpoint struct {
	JobID         string    `json:"job_id"`
	Table         string    `json:"table"`
	LastOffset    int64     `json:"last_offset"`
	ProcessedRows int64     `json:"processed_rows"`
	TotalRows     int64     `json:"total_rows"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func init() {
	blocks.Register(func() blocks.Block { return &Checkpoint{} })
}

// BlockType implements blocks.Block.
func (c *Checkpoint) BlockType() string { return "transfer-checkpoint" }

// Validate implements blocks.Block.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return fmt.Errorf("job_id must be provided")
	}
	if c.Table == "" {
		return fmt.Errorf("table must be provided")
	}
	return nil
}

// Loader loads a spooled local file into a Snowflake table. Satisfied by
// snowflake.StageLoader.
type Loader interface {
	Load(ctx context.Context, localPath, table, format string) error
}

// Transfer copies one table from a source warehouse into Snowflake.
type Transfer struct {
	Source warehouse.Source
	Loader Loader
	// Store persists checkpoints. A memory store makes the job best-effort.
	Store blocks.Store

	// Table is the source table; TargetTable defaults to the same name.
	Table       string
	TargetTable string

	// BatchSize is the number of rows per spool file. Defaults to 10000.
	BatchSize int64
	// Format is the spool file format, csv (default) or parquet.
	Format string
	// SpoolDir is where batch files are written. Defaults to the OS temp dir.
	SpoolDir string

	// JobID identifies the job across restarts. Generated when empty, but a
	// resumable job must set it explicitly.
	JobID string

	Logger *zap.Logger
}

// Run executes the transfer, resuming from a stored checkpoint if one exists
// for the job. A batch is checkpointed only after its COPY INTO succeeds, so
// committed batches are never re-emitted on resume.
func (t *Transfer) Run(ctx context.Context) error {
	if err := t.prepare(); err != nil {
		return err
	}
	log := t.Logger.With(zap.String("job_id", t.JobID), zap.String("table", t.Table))

	cp, err := t.loadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if cp.Status == StatusCompleted {
		log.Info("transfer already completed, nothing to do")
		return nil
	}

	totalRows, err := t.Source.TotalRows(ctx, t.Table)
	if err != nil {
		return t.fail(ctx, cp, fmt.Errorf("failed to get total rows: %v", err))
	}
	columns, err := t.Source.Columns(ctx, t.Table)
	if err != nil {
		return t.fail(ctx, cp, fmt.Errorf("failed to get columns: %v", err))
	}
	if len(columns) == 0 {
		return t.fail(ctx, cp, fmt.Errorf("table %s has no columns", t.Table))
	}

	cp.TotalRows = totalRows
	cp.Status = StatusRunning
	log.Info("starting transfer",
		zap.Int64("total_rows", totalRows),
		zap.Int64("resume_offset", cp.LastOffset),
		zap.String("format", t.Format))

	for offset := cp.LastOffset; offset < totalRows; offset += t.BatchSize {
		if err := ctx.Err(); err != nil {
			return t.fail(ctx, cp, err)
		}

		written, err := t.runBatch(ctx, columns, offset)
		if err != nil {
			return t.fail(ctx, cp, err)
		}

		cp.LastOffset = offset + t.BatchSize
		cp.ProcessedRows += written
		if err := t.saveCheckpoint(ctx, cp); err != nil {
			return err
		}
		log.Debug("batch committed",
			zap.Int64("offset", offset),
			zap.Int64("rows", written),
			zap.Int64("processed_rows", cp.ProcessedRows))
	}

	cp.Status = StatusCompleted
	if err := t.saveCheckpoint(ctx, cp); err != nil {
		return err
	}
	log.Info("transfer completed", zap.Int64("processed_rows", cp.ProcessedRows))
	return nil
}

func (t *Transfer) prepare() error {
	if t.Source == nil {
		return fmt.Errorf("source must be provided")
	}
	if t.Loader == nil {
		return fmt.Errorf("loader must be provided")
	}
	if t.Store == nil {
		return fmt.Errorf("store must be provided")
	}
	if t.Table == "" {
		return fmt.Errorf("table must be provided")
	}
	if t.TargetTable == "" {
		t.TargetTable = t.Table
	}
	if t.BatchSize <= 0 {
		t.BatchSize = 10000
	}
	if t.Format == "" {
		t.Format = export.FormatCSV
	}
	if t.Format != export.FormatCSV && t.Format != export.FormatParquet {
		return fmt.Errorf("unsupported format: %s", t.Format)
	}
	if t.SpoolDir == "" {
		t.SpoolDir = os.TempDir()
	}
	if t.JobID == "" {
		t.JobID = uuid.NewString()
	}
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	return nil
}

// runBatch extracts one batch, spools it, and loads it into Snowflake.
func (t *Transfer) runBatch(ctx context.Context, columns []warehouse.Column, offset int64) (int64, error) {
	rows, err := t.Source.ExtractBatch(ctx, t.Table, offset, t.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to extract batch at offset %d: %v", offset, err)
	}
	defer rows.Close()

	spoolFile := filepath.Join(t.SpoolDir,
		fmt.Sprintf("%s-%d.%s", t.JobID, offset, t.Format))
	defer os.Remove(spoolFile)

	written, err := export.WriteFile(spoolFile, t.Format, columns, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to spool batch at offset %d: %v", offset, err)
	}
	if written == 0 {
		return 0, nil
	}

	if err := t.Loader.Load(ctx, spoolFile, t.TargetTable, t.Format); err != nil {
		return 0, fmt.Errorf("failed to load batch at offset %d: %v", offset, err)
	}
	return written, nil
}

func (t *Transfer) checkpointName() string {
	return fmt.Sprintf("transfer-%s", t.JobID)
}

func (t *Transfer) loadCheckpoint(ctx context.Context) (*Checkpoint, error) {
	cp := &Checkpoint{}
	err := t.Store.Get(ctx, t.checkpointName(), cp)
	if errors.Is(err, blocks.ErrNotFound) {
		return &Checkpoint{JobID: t.JobID, Table: t.Table, Status: StatusRunning}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %v", err)
	}
	if cp.Table != t.Table {
		return nil, fmt.Errorf("checkpoint table mismatch: got %s, want %s", cp.Table, t.Table)
	}
	return cp, nil
}

func (t *Transfer) saveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	if err := t.Store.Save(ctx, t.checkpointName(), cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %v", err)
	}
	return nil
}

// fail records the error on the checkpoint before surfacing it. The write
// uses a detached context so it still lands when the run context was the
// cause of the failure.
func (t *Transfer) fail(ctx context.Context, cp *Checkpoint, cause error) error {
	cp.Status = StatusFailed
	cp.Error = cause.Error()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := t.saveCheckpoint(saveCtx, cp); err != nil {
		t.Logger.Warn("failed to record failure checkpoint", zap.Error(err))
	}
	return cause
}
