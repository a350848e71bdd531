package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

func newTestEngine(llm *mockLLM, store *mockVectorStore) *ChatEngine {
	return NewChatEngine(&mockEmbedder{}, store, llm, NewBufferMemory(3000), "Antworte immer auf Deutsch.", 3)
}

func TestChatEngine_ReturnsAnswerAndSources(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{
		{ID: "c1", Content: "source 1", DocumentID: "doc1.md"},
		{ID: "c2", Content: "source 2", DocumentID: "doc2.md"},
	}}
	llm := &mockLLM{response: "The answer is here"}
	engine := newTestEngine(llm, store)

	resp, err := engine.Chat(context.Background(), "what is this?")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.Answer != "The answer is here" {
		t.Errorf("unexpected answer: %s", resp.Answer)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(resp.Sources))
	}

	sent := llm.lastCall()
	if len(sent) != 2 || sent[0].Role != entities.RoleSystem || sent[1].Role != entities.RoleUser {
		t.Fatalf("expected [system, user], got %+v", sent)
	}
	system := sent[0].Content
	if !strings.HasPrefix(system, "Antworte immer auf Deutsch.") {
		t.Errorf("system prompt missing: %q", system)
	}
	if !strings.Contains(system, "[Source: doc1.md]\nsource 1") || !strings.Contains(system, "source 2") {
		t.Errorf("retrieved context missing: %q", system)
	}
}

func TestChatEngine_HistoryIsSentOnNextTurn(t *testing.T) {
	llm := &mockLLM{response: "A1"}
	engine := newTestEngine(llm, &mockVectorStore{})

	engine.Chat(context.Background(), "Q1")
	engine.Chat(context.Background(), "Q2")

	sent := llm.lastCall()
	if len(sent) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(sent))
	}
	if sent[1].Content != "Q1" || sent[2].Content != "A1" || sent[3].Content != "Q2" {
		t.Errorf("unexpected history: %+v", sent)
	}
	if n := len(engine.Memory().Messages()); n != 4 {
		t.Errorf("expected 4 remembered turns, got %d", n)
	}
}

func TestChatEngine_EmptyIndexStillAnswers(t *testing.T) {
	llm := &mockLLM{response: "no context available"}
	resp, err := newTestEngine(llm, &mockVectorStore{}).Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("should not fail on empty store: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Error("should have no sources")
	}
	if strings.Contains(llm.lastCall()[0].Content, "Context information") {
		t.Error("no context block expected without sources")
	}
}

func TestChatEngine_LLMErrorLeavesMemoryUntouched(t *testing.T) {
	llm := &mockLLM{err: errors.New("model not found")}
	engine := newTestEngine(llm, &mockVectorStore{})

	if _, err := engine.Chat(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if n := len(engine.Memory().Messages()); n != 0 {
		t.Errorf("failed turn should not be remembered, got %d messages", n)
	}
}

func TestChatEngine_EmbeddingErrorIsReturned(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, errors.New("down") }}
	llm := &mockLLM{}
	engine := NewChatEngine(embedder, &mockVectorStore{}, llm, NewBufferMemory(100), "", 3)

	if _, err := engine.Chat(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if llm.lastCall() != nil {
		t.Error("model should not be called when retrieval fails")
	}
}

func TestChatEngine_StreamChat(t *testing.T) {
	llm := &mockLLM{tokens: []string{"Hal", "lo", "!"}}
	engine := newTestEngine(llm, &mockVectorStore{})

	var got []string
	resp, err := engine.StreamChat(context.Background(), "hi", func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("stream chat failed: %v", err)
	}
	if resp.Answer != "Hallo!" {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 streamed tokens, got %v", got)
	}
	msgs := engine.Memory().Messages()
	if len(msgs) != 2 || msgs[1].Content != "Hallo!" {
		t.Errorf("streamed turn not remembered: %+v", msgs)
	}
}

func TestChatEngine_StreamErrorLeavesMemoryUntouched(t *testing.T) {
	llm := &mockLLM{tokens: []string{"Hal"}, streamErr: errors.New("connection reset")}
	engine := newTestEngine(llm, &mockVectorStore{})

	if _, err := engine.StreamChat(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error")
	}
	if n := len(engine.Memory().Messages()); n != 0 {
		t.Errorf("failed turn should not be remembered, got %d", n)
	}
}

func TestChatEngine_IncludesExtractedFacts(t *testing.T) {
	llm := &completerLLM{completion: "- Die Klausur ist am Freitag"}
	memory := NewFactMemory(4, 10, llm)
	engine := NewChatEngine(&mockEmbedder{}, &mockVectorStore{}, llm, memory, "sys", 3)

	engine.Chat(context.Background(), "wann ist die Klausur genau")
	engine.Chat(context.Background(), "danke")

	system := llm.lastCall()[0].Content
	if !strings.Contains(system, "- Die Klausur ist am Freitag") {
		t.Errorf("facts missing from system message: %q", system)
	}
}
