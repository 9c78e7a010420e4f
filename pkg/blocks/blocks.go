package blocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned by stores when no block exists under the requested name.
var ErrNotFound = errors.New("block not found")

// Block is a named, serializable configuration object that the host
// orchestration framework stores and hands to tasks at run time.
type Block interface {
	// BlockType returns the stable type slug the block is registered under.
	BlockType() string

	// Validate reports whether the block holds enough information to be used.
	Validate() error
}

// Document is the stored form of a block: its name, type slug, and the
// JSON-encoded fields.
type Document struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Store persists block documents.
type Store interface {
	// Save validates and persists a block under the given name.
	Save(ctx context.Context, name string, block Block) error

	// Get loads the block stored under name into the given value.
	// Returns ErrNotFound if no such block exists.
	Get(ctx context.Context, name string, into Block) error

	// Delete removes the block stored under name.
	Delete(ctx context.Context, name string) error

	// List returns the documents of all stored blocks.
	List(ctx context.Context) ([]Document, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Block)
)

// Register makes a block type constructible by type slug. It is intended to
// be called from package init functions and panics on duplicate slugs.
func Register(factory func() Block) {
	slug := factory().BlockType()

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[slug]; exists {
		panic(fmt.Sprintf("blocks: type %q registered twice", slug))
	}
	registry[slug] = factory
}

// New returns a zero value of the block type registered under slug.
func New(slug string) (Block, error) {
	registryMu.RLock()
	factory, ok := registry[slug]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown block type: %s", slug)
	}
	return factory(), nil
}

// Types returns the registered block type slugs in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	slugs := make([]string, 0, len(registry))
	for slug := range registry {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Load fetches a block from the store and validates it before returning.
func Load(ctx context.Context, store Store, name string, into Block) error {
	if err := store.Get(ctx, name, into); err != nil {
		return err
	}
	if err := into.Validate(); err != nil {
		return fmt.Errorf("stored block %q is invalid: %v", name, err)
	}
	return nil
}

// encode builds the stored document for a block.
func encode(name string, block Block) (*Document, error) {
	if err := block.Validate(); err != nil {
		return nil, fmt.Errorf("invalid block: %v", err)
	}

	data, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block: %v", err)
	}

	return &Document{Name: name, Type: block.BlockType(), Data: data}, nil
}

// decode loads a stored document into the given block value, checking that
// the stored type matches.
func decode(doc *Document, into Block) error {
	if doc.Type != into.BlockType() {
		return fmt.Errorf("block type mismatch: stored %s, want %s", doc.Type, into.BlockType())
	}
	if err := json.Unmarshal(doc.Data, into); err != nil {
		return fmt.Errorf("failed to unmarshal block: %v", err)
	}
	return nil
}
