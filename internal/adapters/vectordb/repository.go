package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// DBFileName is the database file inside the index directory.
const DBFileName = "vectors.db"

// SQLiteRepository implements ports.IndexRepository with one SQLite file
// per index directory.
type SQLiteRepository struct{}

// NewSQLiteRepository creates the repository.
func NewSQLiteRepository() *SQLiteRepository {
	return &SQLiteRepository{}
}

// Exists reports whether the index directory is present.
func (r *SQLiteRepository) Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// SchemaVersion returns the on-disk layout version.
func (r *SQLiteRepository) SchemaVersion() int { return SchemaVersion }

// Open loads the index at dir. The manifest must be readable, carry the
// current schema version and describe at least one chunk.
func (r *SQLiteRepository) Open(ctx context.Context, dir string) (ports.PersistedIndex, entities.IndexManifest, error) {
	path := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, entities.IndexManifest{}, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, entities.IndexManifest{}, fmt.Errorf("stat %s: %w", path, err)
	}

	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, entities.IndexManifest{}, fmt.Errorf("%w: %v", ErrIndexIncompatible, err)
	}

	manifest, err := store.ReadManifest(ctx)
	if err != nil {
		store.Close()
		return nil, entities.IndexManifest{}, err
	}
	if manifest.SchemaVersion != SchemaVersion {
		store.Close()
		return nil, entities.IndexManifest{}, fmt.Errorf("%w: schema version %d, want %d",
			ErrIndexIncompatible, manifest.SchemaVersion, SchemaVersion)
	}

	count, err := store.ChunkCount(ctx)
	if err != nil {
		store.Close()
		return nil, entities.IndexManifest{}, fmt.Errorf("counting chunks: %w", err)
	}
	if count == 0 || count != manifest.ChunkCount {
		store.Close()
		return nil, entities.IndexManifest{}, fmt.Errorf("%w: %d chunks stored, manifest says %d",
			ErrIndexIncompatible, count, manifest.ChunkCount)
	}

	logging.Debugf("opened index %s (build %s, %d chunks)", path, manifest.BuildID, count)
	return store, manifest, nil
}

// Create writes chunks and manifest to a temporary database and renames it
// over dir/vectors.db, so a failed build leaves any previous index intact.
func (r *SQLiteRepository) Create(ctx context.Context, dir string, chunks []entities.Chunk, manifest entities.IndexManifest) (ports.PersistedIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	final := filepath.Join(dir, DBFileName)
	tmp := final + ".tmp"
	removeDB(tmp)

	store, err := NewSQLiteStore(tmp)
	if err != nil {
		return nil, err
	}

	manifest.SchemaVersion = SchemaVersion
	manifest.ChunkCount = len(chunks)

	if err := store.Store(ctx, chunks); err != nil {
		store.Close()
		removeDB(tmp)
		return nil, fmt.Errorf("storing chunks: %w", err)
	}
	if err := store.WriteManifest(ctx, manifest); err != nil {
		store.Close()
		removeDB(tmp)
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	if err := store.Close(); err != nil {
		removeDB(tmp)
		return nil, fmt.Errorf("closing database: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		removeDB(tmp)
		return nil, fmt.Errorf("replacing index: %w", err)
	}

	logging.Infof("persisted %d chunks to %s", len(chunks), final)
	store, err = NewSQLiteStore(final)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// removeDB deletes a database file and its rollback journal.
func removeDB(path string) {
	os.Remove(path)
	os.Remove(path + "-journal")
}
