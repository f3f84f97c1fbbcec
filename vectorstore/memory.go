package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
)

type memoryCollection struct {
	mu      sync.RWMutex
	records []Record
}

// MemoryIndex keeps collections in process memory. It is safe for concurrent
// use; writers to one collection are serialised while other collections stay
// available.
type MemoryIndex struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryIndex) collection(name string, create bool) *memoryCollection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok && create {
		c = &memoryCollection{}
		m.collections[name] = c
	}
	return c
}

func (m *MemoryIndex) Upsert(_ context.Context, name string, records []Record) error {
	if err := validate(name, records); err != nil {
		return err
	}

	snapshot := make([]Record, len(records))
	for i, r := range records {
		snapshot[i] = Record{
			ChunkID:  r.ChunkID,
			Text:     r.Text,
			Vector:   slices.Clone(r.Vector),
			Metadata: maps.Clone(r.Metadata),
		}
	}

	c := m.collection(name, true)
	c.mu.Lock()
	c.records = snapshot
	c.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if err := validateQuery(name, vector, k); err != nil {
		return nil, err
	}
	c := m.collection(name, false)
	if c == nil {
		return nil, fmt.Errorf("query %s: %w", name, domain.ErrCollectionNotFound)
	}

	c.mu.RLock()
	records := c.records
	c.mu.RUnlock()
	if len(records) == 0 {
		return nil, fmt.Errorf("query %s: %w", name, domain.ErrCollectionEmpty)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]domain.RetrievedChunk, len(records))
	for i, r := range records {
		results[i] = domain.RetrievedChunk{
			ChunkID:          r.ChunkID,
			Text:             r.Text,
			SimilarityScore:  score(embeddings.Similarity(vector, r.Vector)),
			SourceCollection: name,
			Metadata:         maps.Clone(r.Metadata),
		}
	}
	sortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (m *MemoryIndex) List(_ context.Context) ([]Collection, error) {
	m.mu.Lock()
	names := slices.Sorted(maps.Keys(m.collections))
	cols := make([]*memoryCollection, len(names))
	for i, n := range names {
		cols[i] = m.collections[n]
	}
	m.mu.Unlock()

	out := make([]Collection, len(names))
	for i, c := range cols {
		c.mu.RLock()
		out[i] = Collection{Name: names[i], Chunks: len(c.records)}
		c.mu.RUnlock()
	}
	return out, nil
}

func (m *MemoryIndex) Count(_ context.Context, name string) (int, error) {
	c := m.collection(name, false)
	if c == nil {
		return 0, fmt.Errorf("count %s: %w", name, domain.ErrCollectionNotFound)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

func (m *MemoryIndex) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("delete %s: %w", name, domain.ErrCollectionNotFound)
	}
	delete(m.collections, name)
	return nil
}

var _ Index = (*MemoryIndex)(nil)
