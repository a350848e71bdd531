package usecases

import (
	"context"
	"errors"
	"sync"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	model   string
	embedFn func(text string) ([]float32, error)
}

func (m *mockEmbedder) Model() string {
	if m.model != "" {
		return m.model
	}
	return "mock-embed"
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.PersistedIndex for testing
type mockVectorStore struct {
	chunks []entities.Chunk
	closed bool
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	var results []entities.QueryResult
	for i, c := range m.chunks {
		if i >= topK {
			break
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: 0.9, SourceDoc: c.DocumentID})
	}
	return results, nil
}

func (m *mockVectorStore) ChunkCount(ctx context.Context) (int, error) {
	return len(m.chunks), nil
}

func (m *mockVectorStore) Close() error {
	m.closed = true
	return nil
}

// mockLoader implements ports.DocumentLoader for testing
type mockLoader struct {
	docs  []*entities.Document
	err   error
	calls int
}

func (m *mockLoader) LoadDir(ctx context.Context, dir string) ([]*entities.Document, error) {
	m.calls++
	return m.docs, m.err
}

// fakeRepo implements ports.IndexRepository in memory
type fakeRepo struct {
	indexes map[string]persisted
	openErr error
	creates int
}

type persisted struct {
	chunks   []entities.Chunk
	manifest entities.IndexManifest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{indexes: make(map[string]persisted)}
}

func (r *fakeRepo) Exists(dir string) bool {
	_, ok := r.indexes[dir]
	return ok
}

func (r *fakeRepo) SchemaVersion() int { return 1 }

func (r *fakeRepo) Open(ctx context.Context, dir string) (ports.PersistedIndex, entities.IndexManifest, error) {
	if r.openErr != nil {
		return nil, entities.IndexManifest{}, r.openErr
	}
	p, ok := r.indexes[dir]
	if !ok {
		return nil, entities.IndexManifest{}, errors.New("not found")
	}
	return &mockVectorStore{chunks: append([]entities.Chunk(nil), p.chunks...)}, p.manifest, nil
}

func (r *fakeRepo) Create(ctx context.Context, dir string, chunks []entities.Chunk, manifest entities.IndexManifest) (ports.PersistedIndex, error) {
	r.creates++
	manifest.SchemaVersion = r.SchemaVersion()
	r.indexes[dir] = persisted{chunks: append([]entities.Chunk(nil), chunks...), manifest: manifest}
	r.openErr = nil
	return &mockVectorStore{chunks: chunks}, nil
}

// mockLLM implements ports.LLMService for testing. It has no Complete.
type mockLLM struct {
	mu        sync.Mutex
	response  string
	tokens    []string
	err       error
	streamErr error
	calls     [][]entities.ChatMessage
}

func (m *mockLLM) Chat(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return "mocked answer", nil
}

func (m *mockLLM) ChatStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	ch := make(chan ports.StreamToken, len(m.tokens)+1)
	for _, t := range m.tokens {
		ch <- ports.StreamToken{Content: t}
	}
	if m.streamErr != nil {
		ch <- ports.StreamToken{Done: true, Error: m.streamErr}
	} else {
		ch <- ports.StreamToken{Done: true}
	}
	close(ch)
	return ch, nil
}

func (m *mockLLM) lastCall() []entities.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// completerLLM adds the Completer capability.
type completerLLM struct {
	mockLLM
	completion string
	prompts    []string
}

func (c *completerLLM) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.completion, nil
}
