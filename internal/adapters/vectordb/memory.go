package vectordb

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

// InMemoryStore is a non-persistent ports.PersistedIndex. It keeps
// insertion order so ties rank the same way as in SQLiteStore.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks []entities.Chunk
	pos    map[string]int // chunkID -> index into chunks
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{pos: make(map[string]int)}
}

// Store saves chunks; an existing ID is replaced in place.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if i, ok := s.pos[chunk.ID]; ok {
			s.chunks[i] = chunk
			continue
		}
		s.pos[chunk.ID] = len(s.chunks)
		s.chunks = append(s.chunks, chunk)
	}
	return nil
}

// Search finds the most similar chunks to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entities.QueryResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     cosineSimilarity(embedding, chunk.Embedding),
			SourceDoc: filepath.Base(chunk.DocumentID),
		})
	}
	return topResults(results, topK), nil
}

// ChunkCount returns the number of stored chunks.
func (s *InMemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
