package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists each block as a JSON document in a directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file-based block store rooted at baseDir. The
// directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create block directory: %v", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.baseDir, fmt.Sprintf("%s.block.json", name))
}

func (f *FileStore) Save(ctx context.Context, name string, block Block) error {
	doc, err := encode(name, block)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal block document: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Credentials may be stored here, keep the file private to the owner.
	if err := os.WriteFile(f.path(name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write block file: %v", err)
	}
	return nil
}

func (f *FileStore) Get(ctx context.Context, name string, into Block) error {
	f.mu.RLock()
	data, err := os.ReadFile(f.path(name))
	f.mu.RUnlock()

	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read block file: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal block document: %v", err)
	}
	return decode(&doc, into)
}

func (f *FileStore) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete block file: %v", err)
	}
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read block directory: %v", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(f.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
