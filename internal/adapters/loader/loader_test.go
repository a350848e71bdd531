package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMarkdownLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lecture1.md")
	os.WriteFile(path, []byte("# Hello World"), 0644)

	doc, err := NewMarkdownLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "# Hello World" {
		t.Errorf("unexpected content: %s", doc.Content)
	}
	if doc.Name != "lecture1.md" {
		t.Errorf("unexpected name: %s", doc.Name)
	}
	if doc.ID != path {
		t.Errorf("document id should be the path, got %s", doc.ID)
	}
}

func TestMarkdownLoader_NormalizesToNFC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "umlaut.md")
	// "u" followed by a combining diaeresis
	os.WriteFile(path, []byte("Pru\u0308fung"), 0644)

	doc, err := NewMarkdownLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Pr\u00fcfung" {
		t.Errorf("expected NFC content, got %q", doc.Content)
	}
}

func TestMarkdownLoader_LoadDirRecursive(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub", "deeper"), 0755)
	os.MkdirAll(filepath.Join(dir, "lecture1_images"), 0755)
	os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0644)
	os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(dir, "sub", "deeper", "c.md"), []byte("c"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644)
	os.WriteFile(filepath.Join(dir, "lecture1_images", "img.png"), []byte("png"), 0644)

	docs, err := NewMarkdownLoader().LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("load dir failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 markdown docs, got %d", len(docs))
	}
	if docs[0].Name != "a.md" || docs[1].Name != "b.md" || docs[2].Name != "c.md" {
		t.Errorf("unexpected order: %s %s %s", docs[0].Name, docs[1].Name, docs[2].Name)
	}
}

func TestMarkdownLoader_MissingDir(t *testing.T) {
	_, err := NewMarkdownLoader().LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("missing directory should error")
	}
}

func TestMarkdownLoader_EmptyDir(t *testing.T) {
	docs, err := NewMarkdownLoader().LoadDir(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}
