// Package loader reads the Markdown corpus produced by the converter.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// MarkdownLoader implements ports.DocumentLoader for .md files.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a new Markdown loader.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

// SupportedExtensions returns file extensions this loader handles.
func (l *MarkdownLoader) SupportedExtensions() []string {
	return []string{".md"}
}

// Load reads one Markdown document. The path is the document ID.
func (l *MarkdownLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		ID:        path,
		Name:      filepath.Base(path),
		Path:      path,
		Content:   norm.NFC.String(string(content)),
		CreatedAt: info.ModTime(),
		UpdatedAt: time.Now(),
	}, nil
}

// LoadDir reads every .md file under dir, recursively, in lexical order.
func (l *MarkdownLoader) LoadDir(ctx context.Context, dir string) ([]*entities.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}

	var docs []*entities.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.supports(path) {
			return nil
		}
		doc, err := l.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Debugf("loaded %d markdown documents from %s", len(docs), dir)
	return docs, nil
}

func (l *MarkdownLoader) supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}
