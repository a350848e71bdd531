// Package usecases contains application business rules: converting PDFs,
// building or loading the index, and answering chat turns. Usecases
// depend only on entities and port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

var (
	// ErrNoDocuments means the data directory has no Markdown to index.
	ErrNoDocuments = errors.New("no markdown documents found")
	// ErrFingerprintMismatch means a persisted index was built with another
	// embedding model or chunking.
	ErrFingerprintMismatch = errors.New("index fingerprint mismatch")
)

// embedBatchSize bounds each EmbedBatch call so progress can be logged.
const embedBatchSize = 32

// IndexConfig holds the directories and chunking parameters.
type IndexConfig struct {
	DataDir      string
	IndexDir     string
	ChunkSize    int
	ChunkOverlap int
}

// IndexUseCase builds or loads the persisted vector index.
type IndexUseCase struct {
	loader   ports.DocumentLoader
	embedder ports.EmbeddingService
	repo     ports.IndexRepository
	cfg      IndexConfig
	splitter *SentenceSplitter
	newID    func() string
}

// NewIndexUseCase creates an IndexUseCase with injected dependencies.
func NewIndexUseCase(
	loader ports.DocumentLoader,
	embedder ports.EmbeddingService,
	repo ports.IndexRepository,
	cfg IndexConfig,
) *IndexUseCase {
	splitter := NewSentenceSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	cfg.ChunkSize, cfg.ChunkOverlap = splitter.ChunkSize, splitter.Overlap
	return &IndexUseCase{
		loader:   loader,
		embedder: embedder,
		repo:     repo,
		cfg:      cfg,
		splitter: splitter,
		newID:    uuid.NewString,
	}
}

// Fingerprint is the manifest a usable index must match.
func (uc *IndexUseCase) Fingerprint() entities.IndexManifest {
	return entities.IndexManifest{
		SchemaVersion:  uc.repo.SchemaVersion(),
		EmbeddingModel: uc.embedder.Model(),
		ChunkSize:      uc.cfg.ChunkSize,
		ChunkOverlap:   uc.cfg.ChunkOverlap,
	}
}

// BuildIndex loads the index from the index directory unless force is set
// or the directory is missing. Any load failure, including a fingerprint
// mismatch, falls back to a full rebuild.
func (uc *IndexUseCase) BuildIndex(ctx context.Context, force bool) (ports.PersistedIndex, entities.IndexManifest, error) {
	if !force && uc.repo.Exists(uc.cfg.IndexDir) {
		idx, manifest, err := uc.load(ctx)
		if err == nil {
			logging.Infof("loaded index from %s (%d chunks, built %s)",
				uc.cfg.IndexDir, manifest.ChunkCount, manifest.BuiltAt.Format(time.RFC3339))
			return idx, manifest, nil
		}
		if ctx.Err() != nil {
			return nil, entities.IndexManifest{}, ctx.Err()
		}
		logging.Warnf("could not load index from %s: %v; rebuilding", uc.cfg.IndexDir, err)
	}
	return uc.rebuild(ctx)
}

func (uc *IndexUseCase) load(ctx context.Context) (ports.PersistedIndex, entities.IndexManifest, error) {
	idx, manifest, err := uc.repo.Open(ctx, uc.cfg.IndexDir)
	if err != nil {
		return nil, entities.IndexManifest{}, err
	}
	want := uc.Fingerprint()
	if !manifest.Compatible(want) {
		idx.Close()
		return nil, entities.IndexManifest{}, fmt.Errorf("%w: index has %s/%d/%d, configured %s/%d/%d",
			ErrFingerprintMismatch,
			manifest.EmbeddingModel, manifest.ChunkSize, manifest.ChunkOverlap,
			want.EmbeddingModel, want.ChunkSize, want.ChunkOverlap)
	}
	return idx, manifest, nil
}

func (uc *IndexUseCase) rebuild(ctx context.Context) (ports.PersistedIndex, entities.IndexManifest, error) {
	logging.Infof("building index from %s", uc.cfg.DataDir)

	docs, err := uc.loader.LoadDir(ctx, uc.cfg.DataDir)
	if err != nil {
		return nil, entities.IndexManifest{}, fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, entities.IndexManifest{}, fmt.Errorf("%w in %s", ErrNoDocuments, uc.cfg.DataDir)
	}

	var chunks []entities.Chunk
	for _, doc := range docs {
		chunks = append(chunks, uc.chunkDocument(doc)...)
	}
	if len(chunks) == 0 {
		return nil, entities.IndexManifest{}, fmt.Errorf("%w: all %d documents are empty", ErrNoDocuments, len(docs))
	}

	if err := uc.embed(ctx, chunks); err != nil {
		return nil, entities.IndexManifest{}, err
	}

	manifest := uc.Fingerprint()
	manifest.BuildID = uc.newID()
	manifest.BuiltAt = time.Now().UTC()
	manifest.DocumentCount = len(docs)
	manifest.ChunkCount = len(chunks)

	idx, err := uc.repo.Create(ctx, uc.cfg.IndexDir, chunks, manifest)
	if err != nil {
		return nil, entities.IndexManifest{}, fmt.Errorf("persisting index: %w", err)
	}
	logging.Infof("indexed %d documents as %d chunks (build %s)", len(docs), len(chunks), manifest.BuildID)
	return idx, manifest, nil
}

// embed attaches embeddings to chunks in place.
func (uc *IndexUseCase) embed(ctx context.Context, chunks []entities.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding chunks %d-%d: got %d vectors", start, end-1, len(embeddings))
		}
		for i, emb := range embeddings {
			chunks[start+i].Embedding = emb
		}
		logging.Debugf("embedded %d/%d chunks", end, len(chunks))
	}
	return nil
}

// chunkDocument splits document content into overlapping chunks.
func (uc *IndexUseCase) chunkDocument(doc *entities.Document) []entities.Chunk {
	parts := uc.splitter.Split(doc.Content)
	chunks := make([]entities.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = entities.Chunk{
			ID:         generateChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Content:    part,
			Index:      i,
		}
	}
	return chunks
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(docID + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
