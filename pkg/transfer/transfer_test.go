package transfer

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// fakeSource serves a fixed table from memory.
type fakeSource struct {
	columns []warehouse.Column
	data    [][]interface{}

	extractErr error
}

func (s *fakeSource) Connect(ctx context.Context) error { return nil }
func (s *fakeSource) Close() error                      { return nil }

func (s *fakeSource) Columns(ctx context.Context, table string) ([]warehouse.Column, error) {
	return s.columns, nil
}

func (s *fakeSource) TotalRows(ctx context.Context, table string) (int64, error) {
	return int64(len(s.data)), nil
}

func (s *fakeSource) ExtractBatch(ctx context.Context, table string, offset, limit int64) (warehouse.Rows, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}

	end := offset + limit
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	if offset > end {
		offset = end
	}
	return &fakeRows{rows: s.data[offset:end]}, nil
}

func (s *fakeSource) Query(ctx context.Context, query string, args ...interface{}) (warehouse.Rows, error) {
	return &fakeRows{}, nil
}

type fakeRows struct {
	rows [][]interface{}
	next int
}

func (r *fakeRows) Next() bool {
	if r.next >= len(r.rows) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.next-1]
	for i, d := range dest {
		*(d.(*interface{})) = row[i]
	}
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

// fakeLoader records the spooled files it is asked to load.
type fakeLoader struct {
	loads   []loadedFile
	loadErr error
}

type loadedFile struct {
	table   string
	format  string
	content string
}

func (l *fakeLoader) Load(ctx context.Context, localPath, table, format string) error {
	if l.loadErr != nil {
		return l.loadErr
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	l.loads = append(l.loads, loadedFile{table: table, format: format, content: string(data)})
	return nil
}

func testSource() *fakeSource {
	return &fakeSource{
		columns: []warehouse.Column{
			{Name: "id", Type: "bigint"},
			{Name: "name", Type: "text", Nullable: true},
		},
		data: [][]interface{}{
			{int64(1), "arthur"},
			{int64(2), "ford"},
			{int64(3), "trillian"},
			{int64(4), "zaphod"},
			{int64(5), "marvin"},
		},
	}
}

func newTransfer(source *fakeSource, loader *fakeLoader, store blocks.Store) *Transfer {
	return &Transfer{
		Source:    source,
		Loader:    loader,
		Store:     store,
		Table:     "events",
		BatchSize: 2,
		JobID:     "job-1",
	}
}

func TestTransferRun(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	store := blocks.NewMemoryStore()
	job := newTransfer(testSource(), loader, store)
	job.SpoolDir = t.TempDir()

	require.NoError(t, job.Run(ctx))

	require.Len(t, loader.loads, 3)
	assert.Equal(t, "id,name\n1,arthur\n2,ford\n", loader.loads[0].content)
	assert.Equal(t, "id,name\n3,trillian\n4,zaphod\n", loader.loads[1].content)
	assert.Equal(t, "id,name\n5,marvin\n", loader.loads[2].content)
	for _, load := range loader.loads {
		assert.Equal(t, "events", load.table)
		assert.Equal(t, "csv", load.format)
	}

	cp := &Checkpoint{}
	require.NoError(t, store.Get(ctx, "transfer-job-1", cp))
	assert.Equal(t, StatusCompleted, cp.Status)
	assert.Equal(t, int64(5), cp.ProcessedRows)
	assert.Equal(t, int64(5), cp.TotalRows)
}

func TestTransferTargetTable(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	job := newTransfer(testSource(), loader, blocks.NewMemoryStore())
	job.TargetTable = "EVENTS_RAW"
	job.SpoolDir = t.TempDir()

	require.NoError(t, job.Run(ctx))
	require.NotEmpty(t, loader.loads)
	for _, load := range loader.loads {
		assert.Equal(t, "EVENTS_RAW", load.table)
	}
}

func TestTransferResume(t *testing.T) {
	ctx := context.Background()
	store := blocks.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "transfer-job-1", &Checkpoint{
		JobID:         "job-1",
		Table:         "events",
		LastOffset:    4,
		ProcessedRows: 4,
		Status:        StatusRunning,
	}))

	loader := &fakeLoader{}
	job := newTransfer(testSource(), loader, store)
	job.SpoolDir = t.TempDir()

	require.NoError(t, job.Run(ctx))

	// Only the uncommitted batch is re-emitted.
	require.Len(t, loader.loads, 1)
	assert.Equal(t, "id,name\n5,marvin\n", loader.loads[0].content)

	cp := &Checkpoint{}
	require.NoError(t, store.Get(ctx, "transfer-job-1", cp))
	assert.Equal(t, StatusCompleted, cp.Status)
	assert.Equal(t, int64(5), cp.ProcessedRows)
}

func TestTransferAlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	store := blocks.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "transfer-job-1", &Checkpoint{
		JobID:  "job-1",
		Table:  "events",
		Status: StatusCompleted,
	}))

	loader := &fakeLoader{}
	job := newTransfer(testSource(), loader, store)

	require.NoError(t, job.Run(ctx))
	assert.Empty(t, loader.loads)
}

func TestTransferCheckpointTableMismatch(t *testing.T) {
	ctx := context.Background()
	store := blocks.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "transfer-job-1", &Checkpoint{
		JobID:  "job-1",
		Table:  "orders",
		Status: StatusRunning,
	}))

	job := newTransfer(testSource(), &fakeLoader{}, store)
	err := job.Run(ctx)
	assert.ErrorContains(t, err, "checkpoint table mismatch")
}

func TestTransferFailureRecorded(t *testing.T) {
	ctx := context.Background()
	store := blocks.NewMemoryStore()
	loader := &fakeLoader{loadErr: fmt.Errorf("stage unavailable")}
	job := newTransfer(testSource(), loader, store)
	job.SpoolDir = t.TempDir()

	err := job.Run(ctx)
	assert.ErrorContains(t, err, "stage unavailable")

	cp := &Checkpoint{}
	require.NoError(t, store.Get(ctx, "transfer-job-1", cp))
	assert.Equal(t, StatusFailed, cp.Status)
	assert.Contains(t, cp.Error, "stage unavailable")
}

// ctxStore fails writes once their context is done, the way a remote store
// would.
type ctxStore struct {
	*blocks.MemoryStore
}

func (s *ctxStore) Save(ctx context.Context, name string, block blocks.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Save(ctx, name, block)
}

func TestTransferCancelRecordsFailure(t *testing.T) {
	store := &ctxStore{MemoryStore: blocks.NewMemoryStore()}
	job := newTransfer(testSource(), &fakeLoader{}, store)
	job.SpoolDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The failure checkpoint is written even though the run context is dead.
	cp := &Checkpoint{}
	require.NoError(t, store.Get(context.Background(), "transfer-job-1", cp))
	assert.Equal(t, StatusFailed, cp.Status)
	assert.Contains(t, cp.Error, "context canceled")
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	store := blocks.NewMemoryStore()

	tests := []struct {
		name    string
		mutate  func(*Transfer)
		wantErr string
	}{
		{
			name:    "missing source",
			mutate:  func(j *Transfer) { j.Source = nil },
			wantErr: "source must be provided",
		},
		{
			name:    "missing loader",
			mutate:  func(j *Transfer) { j.Loader = nil },
			wantErr: "loader must be provided",
		},
		{
			name:    "missing store",
			mutate:  func(j *Transfer) { j.Store = nil },
			wantErr: "store must be provided",
		},
		{
			name:    "missing table",
			mutate:  func(j *Transfer) { j.Table = "" },
			wantErr: "table must be provided",
		},
		{
			name:    "unsupported format",
			mutate:  func(j *Transfer) { j.Format = "avro" },
			wantErr: "unsupported format: avro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newTransfer(testSource(), &fakeLoader{}, store)
			tt.mutate(job)
			assert.ErrorContains(t, job.Run(ctx), tt.wantErr)
		})
	}
}

func TestTransferGeneratesJobID(t *testing.T) {
	job := newTransfer(testSource(), &fakeLoader{}, blocks.NewMemoryStore())
	job.JobID = ""
	require.NoError(t, job.prepare())
	assert.NotEmpty(t, job.JobID)
}

func TestCheckpointValidate(t *testing.T) {
	assert.ErrorContains(t, (&Checkpoint{}).Validate(), "job_id must be provided")
	assert.ErrorContains(t, (&Checkpoint{JobID: "job-1"}).Validate(), "table must be provided")
	assert.NoError(t, (&Checkpoint{JobID: "job-1", Table: "events"}).Validate())
}
