package entities

import (
	"testing"
	"time"
)

func TestConversionJob_DerivesStem(t *testing.T) {
	job := NewConversionJob("/data/Lecture 01.PDF")

	if job.Stem != "Lecture 01" {
		t.Errorf("expected stem 'Lecture 01', got %q", job.Stem)
	}
	if job.MarkdownName() != "Lecture 01.md" {
		t.Errorf("unexpected markdown name: %s", job.MarkdownName())
	}
	if job.ImageDirName() != "Lecture 01_images" {
		t.Errorf("unexpected image dir: %s", job.ImageDirName())
	}
}

func TestConversionJob_DottedName(t *testing.T) {
	job := NewConversionJob("notes.v2.pdf")
	if job.Stem != "notes.v2" {
		t.Errorf("expected stem notes.v2, got %q", job.Stem)
	}
}

func TestIndexManifest_Compatible(t *testing.T) {
	built := IndexManifest{
		SchemaVersion:  1,
		EmbeddingModel: "nomic-embed-text",
		ChunkSize:      512,
		ChunkOverlap:   50,
		BuildID:        "abc",
		BuiltAt:        time.Now(),
		ChunkCount:     10,
	}
	want := IndexManifest{SchemaVersion: 1, EmbeddingModel: "nomic-embed-text", ChunkSize: 512, ChunkOverlap: 50}

	if !built.Compatible(want) {
		t.Error("same fingerprint should be compatible")
	}

	want.EmbeddingModel = "mxbai-embed-large"
	if built.Compatible(want) {
		t.Error("different embedding model must not be compatible")
	}
}

func TestIndexManifest_ChunkingChangeIncompatible(t *testing.T) {
	built := IndexManifest{SchemaVersion: 1, EmbeddingModel: "m", ChunkSize: 512, ChunkOverlap: 50}
	if built.Compatible(IndexManifest{SchemaVersion: 1, EmbeddingModel: "m", ChunkSize: 256, ChunkOverlap: 50}) {
		t.Error("chunk size change should be incompatible")
	}
}
