// Package entities contains core business entities.
// These are pure domain objects with no knowledge of storage or external systems.
package entities

import (
	"path/filepath"
	"strings"
	"time"
)

// Document represents a Markdown source document from the data directory.
type Document struct {
	ID        string // File path; stable across rebuilds
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk represents a piece of a document for embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Vector representation (populated by adapter)
}

// QueryResult represents a search result with relevance.
type QueryResult struct {
	Chunk     Chunk
	Score     float64 // Similarity score
	SourceDoc string  // Document name for citation
}

// Chat roles understood by the model server.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatResponse represents the LLM's answer with sources.
type ChatResponse struct {
	Answer  string
	Sources []QueryResult
}

// IndexManifest fingerprints a persisted index. An index is only valid for
// the embedding model and chunking parameters it was built with.
type IndexManifest struct {
	SchemaVersion  int
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
	BuildID        string
	BuiltAt        time.Time
	DocumentCount  int
	ChunkCount     int
}

// Compatible reports whether an index built with m can serve queries under want.
// Only the fields that change vector meaning are compared.
func (m IndexManifest) Compatible(want IndexManifest) bool {
	return m.SchemaVersion == want.SchemaVersion &&
		m.EmbeddingModel == want.EmbeddingModel &&
		m.ChunkSize == want.ChunkSize &&
		m.ChunkOverlap == want.ChunkOverlap
}

// ConversionJob is one discovered PDF waiting to be converted.
type ConversionJob struct {
	InputPath string
	Stem      string
}

// NewConversionJob derives the output stem from the input file name.
func NewConversionJob(path string) ConversionJob {
	base := filepath.Base(path)
	return ConversionJob{
		InputPath: path,
		Stem:      strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// MarkdownName is the output file name for the job.
func (j ConversionJob) MarkdownName() string { return j.Stem + ".md" }

// ImageDirName is the per-document image folder name.
func (j ConversionJob) ImageDirName() string { return j.Stem + "_images" }

// Rendered is what a conversion engine returns for one document.
// Image payloads are either raw encoded bytes ([]byte) or decoded images
// (image.Image); writers reject anything else.
type Rendered struct {
	Markdown string
	Images   map[string]any
}

// BatchReport summarizes a conversion run.
type BatchReport struct {
	Succeeded int
	Failed    int
	Errors    []string
}
