// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding model; it is part of the index fingerprint.
	Model() string
}

// LLMService holds a conversation with a language model.
type LLMService interface {
	// Chat sends the full message list and returns the assistant reply.
	Chat(ctx context.Context, messages []entities.ChatMessage) (string, error)

	// ChatStream is Chat with token-by-token delivery.
	ChatStream(ctx context.Context, messages []entities.ChatMessage) (<-chan StreamToken, error)
}

// Completer is the optional single-prompt capability. Fact extraction
// memory and the startup connection check need it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// VectorStore persists and queries document embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the most similar chunks to a query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// ChunkCount returns the number of stored chunks.
	ChunkCount(ctx context.Context) (int, error)
}

// IndexRepository persists whole indexes under a directory.
type IndexRepository interface {
	// Exists reports whether something is persisted at dir.
	Exists(dir string) bool

	// SchemaVersion is the layout version Open accepts and Create writes.
	SchemaVersion() int

	// Open loads the index at dir and returns its manifest.
	Open(ctx context.Context, dir string) (PersistedIndex, entities.IndexManifest, error)

	// Create writes chunks and manifest to dir, replacing any previous index.
	Create(ctx context.Context, dir string, chunks []entities.Chunk, manifest entities.IndexManifest) (PersistedIndex, error)
}

// PersistedIndex is a loaded index that can be searched and closed.
type PersistedIndex interface {
	VectorStore
	Close() error
}

// DocumentLoader reads the Markdown corpus.
type DocumentLoader interface {
	// LoadDir reads every supported document under dir, recursively.
	LoadDir(ctx context.Context, dir string) ([]*entities.Document, error)
}

// DocumentConverter turns one PDF into Markdown plus images.
type DocumentConverter interface {
	// Warmup loads the engine once; it is reused for every document.
	Warmup(ctx context.Context) error

	// Convert renders the document at path.
	Convert(ctx context.Context, path string) (*entities.Rendered, error)
}

// ArtifactWriter persists conversion output.
type ArtifactWriter interface {
	// Write stores the rendered document for job under outDir.
	Write(outDir string, job entities.ConversionJob, rendered *entities.Rendered) (string, error)
}

// ChatMemory is bounded conversational history.
type ChatMemory interface {
	// Messages returns the retained turns, oldest first.
	Messages() []entities.ChatMessage

	// Put appends a turn, evicting old turns past the token budget.
	Put(ctx context.Context, msg entities.ChatMessage) error

	// SystemAddendum returns extra system prompt text (e.g. extracted facts).
	SystemAddendum() string

	// SessionID identifies the conversation.
	SessionID() string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
