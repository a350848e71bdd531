package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

func testIndexConfig() IndexConfig {
	return IndexConfig{DataDir: "./llm_ready", IndexDir: "./storage", ChunkSize: 64, ChunkOverlap: 8}
}

func lectureDocs() []*entities.Document {
	return []*entities.Document{
		{ID: "llm_ready/lecture1.md", Name: "lecture1.md", Content: "X"},
	}
}

func TestBuildIndex_MissingDirRebuildsRegardlessOfForce(t *testing.T) {
	for _, force := range []bool{false, true} {
		loader := &mockLoader{docs: lectureDocs()}
		repo := newFakeRepo()
		uc := NewIndexUseCase(loader, &mockEmbedder{}, repo, testIndexConfig())

		idx, manifest, err := uc.BuildIndex(context.Background(), force)
		require.NoError(t, err)
		require.NotNil(t, idx)
		require.Equal(t, 1, loader.calls)
		require.Equal(t, 1, repo.creates)
		require.Equal(t, 1, manifest.ChunkCount)
		require.Equal(t, 1, manifest.DocumentCount)
		require.NotEmpty(t, manifest.BuildID)
		require.Equal(t, "mock-embed", manifest.EmbeddingModel)
	}
}

func TestBuildIndex_PersistedIndexLoadsWithoutReadingDocuments(t *testing.T) {
	repo := newFakeRepo()
	cfg := testIndexConfig()

	first := NewIndexUseCase(&mockLoader{docs: lectureDocs()}, &mockEmbedder{}, repo, cfg)
	_, built, err := first.BuildIndex(context.Background(), false)
	require.NoError(t, err)

	loader := &mockLoader{err: errors.New("documents must not be read")}
	second := NewIndexUseCase(loader, &mockEmbedder{}, repo, cfg)
	idx, manifest, err := second.BuildIndex(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 0, loader.calls)
	require.Equal(t, 1, repo.creates)
	require.Equal(t, built.BuildID, manifest.BuildID)

	results, err := idx.Search(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "X", results[0].Chunk.Content)
}

func TestBuildIndex_ForceBypassesLoad(t *testing.T) {
	repo := newFakeRepo()
	cfg := testIndexConfig()
	loader := &mockLoader{docs: lectureDocs()}
	uc := NewIndexUseCase(loader, &mockEmbedder{}, repo, cfg)

	_, first, err := uc.BuildIndex(context.Background(), false)
	require.NoError(t, err)
	_, second, err := uc.BuildIndex(context.Background(), true)
	require.NoError(t, err)

	require.Equal(t, 2, loader.calls)
	require.Equal(t, 2, repo.creates)
	require.NotEqual(t, first.BuildID, second.BuildID)
}

func TestBuildIndex_LoadFailureRebuilds(t *testing.T) {
	repo := newFakeRepo()
	cfg := testIndexConfig()
	repo.indexes[cfg.IndexDir] = persisted{}
	repo.openErr = errors.New("database disk image is malformed")

	loader := &mockLoader{docs: lectureDocs()}
	_, _, err := NewIndexUseCase(loader, &mockEmbedder{}, repo, cfg).BuildIndex(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
	require.Equal(t, 1, repo.creates)
}

func TestBuildIndex_EmbeddingModelChangeForcesRebuild(t *testing.T) {
	repo := newFakeRepo()
	cfg := testIndexConfig()

	_, _, err := NewIndexUseCase(&mockLoader{docs: lectureDocs()}, &mockEmbedder{model: "nomic-embed-text"}, repo, cfg).
		BuildIndex(context.Background(), false)
	require.NoError(t, err)

	loader := &mockLoader{docs: lectureDocs()}
	_, manifest, err := NewIndexUseCase(loader, &mockEmbedder{model: "mxbai-embed-large"}, repo, cfg).
		BuildIndex(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
	require.Equal(t, 2, repo.creates)
	require.Equal(t, "mxbai-embed-large", manifest.EmbeddingModel)
}

func TestBuildIndex_FingerprintMismatchError(t *testing.T) {
	repo := newFakeRepo()
	cfg := testIndexConfig()
	repo.indexes[cfg.IndexDir] = persisted{manifest: entities.IndexManifest{SchemaVersion: 1, EmbeddingModel: "other", ChunkSize: 64, ChunkOverlap: 8}}

	uc := NewIndexUseCase(&mockLoader{}, &mockEmbedder{}, repo, cfg)
	_, _, err := uc.load(context.Background())
	require.ErrorIs(t, err, ErrFingerprintMismatch)
}

func TestBuildIndex_NoDocuments(t *testing.T) {
	uc := NewIndexUseCase(&mockLoader{}, &mockEmbedder{}, newFakeRepo(), testIndexConfig())
	_, _, err := uc.BuildIndex(context.Background(), false)
	require.ErrorIs(t, err, ErrNoDocuments)

	empty := &mockLoader{docs: []*entities.Document{{ID: "a.md", Content: "   "}}}
	uc = NewIndexUseCase(empty, &mockEmbedder{}, newFakeRepo(), testIndexConfig())
	_, _, err = uc.BuildIndex(context.Background(), false)
	require.ErrorIs(t, err, ErrNoDocuments)
}

func TestBuildIndex_EmbeddingErrorIsReturned(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}}
	repo := newFakeRepo()
	_, _, err := NewIndexUseCase(&mockLoader{docs: lectureDocs()}, embedder, repo, testIndexConfig()).
		BuildIndex(context.Background(), false)
	require.Error(t, err)
	require.Equal(t, 0, repo.creates)
}

func TestChunkDocument_StableUniqueIDs(t *testing.T) {
	uc := NewIndexUseCase(&mockLoader{}, &mockEmbedder{}, newFakeRepo(), IndexConfig{ChunkSize: 5, ChunkOverlap: 0})
	doc := &entities.Document{ID: "doc.md", Content: strings.Repeat("eins zwei drei vier fünf. ", 6)}

	chunks := uc.chunkDocument(doc)
	require.Len(t, chunks, 6)

	ids := make(map[string]bool)
	for i, c := range chunks {
		require.Equal(t, i, c.Index)
		require.Equal(t, "doc.md", c.DocumentID)
		require.False(t, ids[c.ID], "duplicate chunk id")
		ids[c.ID] = true
	}
	require.Equal(t, chunks[3].ID, uc.chunkDocument(doc)[3].ID)
}
