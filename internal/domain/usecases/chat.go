package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
)

// ChatEngine answers each message from retrieved context plus history.
// It owns its memory; a new engine starts a new conversation.
type ChatEngine struct {
	embedder     ports.EmbeddingService
	index        ports.VectorStore
	llm          ports.LLMService
	memory       ports.ChatMemory
	systemPrompt string
	topK         int
}

// NewChatEngine creates a context chat engine with injected dependencies.
func NewChatEngine(
	embedder ports.EmbeddingService,
	index ports.VectorStore,
	llm ports.LLMService,
	memory ports.ChatMemory,
	systemPrompt string,
	topK int,
) *ChatEngine {
	if topK <= 0 {
		topK = 3
	}
	return &ChatEngine{
		embedder:     embedder,
		index:        index,
		llm:          llm,
		memory:       memory,
		systemPrompt: systemPrompt,
		topK:         topK,
	}
}

// Memory exposes the conversation history.
func (e *ChatEngine) Memory() ports.ChatMemory { return e.memory }

// Chat retrieves context for message, asks the model and records the turn.
func (e *ChatEngine) Chat(ctx context.Context, message string) (*entities.ChatResponse, error) {
	messages, sources, err := e.prepare(ctx, message)
	if err != nil {
		return nil, err
	}

	answer, err := e.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	if err := e.record(ctx, message, answer); err != nil {
		return nil, err
	}
	return &entities.ChatResponse{Answer: answer, Sources: sources}, nil
}

// StreamChat is Chat with each token passed to onToken as it arrives. The
// turn is only recorded once the stream completes.
func (e *ChatEngine) StreamChat(ctx context.Context, message string, onToken func(string)) (*entities.ChatResponse, error) {
	messages, sources, err := e.prepare(ctx, message)
	if err != nil {
		return nil, err
	}

	stream, err := e.llm.ChatStream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	var answer strings.Builder
	done := false
	for tok := range stream {
		if tok.Error != nil {
			// Drain so the producer can exit.
			for range stream {
			}
			return nil, fmt.Errorf("generating response: %w", tok.Error)
		}
		if tok.Content != "" {
			answer.WriteString(tok.Content)
			if onToken != nil {
				onToken(tok.Content)
			}
		}
		if tok.Done {
			done = true
		}
	}
	if !done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("generating response: stream ended early")
	}

	if err := e.record(ctx, message, answer.String()); err != nil {
		return nil, err
	}
	return &entities.ChatResponse{Answer: answer.String(), Sources: sources}, nil
}

// Retrieve returns the topK chunks most similar to query.
func (e *ChatEngine) Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := e.index.Search(ctx, embedding, e.topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	return results, nil
}

// prepare builds [system] + history + user.
func (e *ChatEngine) prepare(ctx context.Context, message string) ([]entities.ChatMessage, []entities.QueryResult, error) {
	sources, err := e.Retrieve(ctx, message)
	if err != nil {
		return nil, nil, err
	}

	history := e.memory.Messages()
	messages := make([]entities.ChatMessage, 0, len(history)+2)
	messages = append(messages, entities.ChatMessage{
		Role:    entities.RoleSystem,
		Content: e.buildSystemMessage(sources),
	})
	messages = append(messages, history...)
	messages = append(messages, entities.ChatMessage{Role: entities.RoleUser, Content: message})
	return messages, sources, nil
}

func (e *ChatEngine) record(ctx context.Context, message, answer string) error {
	if err := e.memory.Put(ctx, entities.ChatMessage{Role: entities.RoleUser, Content: message}); err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}
	if err := e.memory.Put(ctx, entities.ChatMessage{Role: entities.RoleAssistant, Content: answer}); err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}
	return nil
}

// buildSystemMessage appends retrieved context and any memory addendum to
// the configured system prompt.
func (e *ChatEngine) buildSystemMessage(sources []entities.QueryResult) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(e.systemPrompt))

	if len(sources) > 0 {
		sb.WriteString("\n\nContext information is below.\n--------------------\n")
		for i, r := range sources {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "[Source: %s]\n%s", r.SourceDoc, r.Chunk.Content)
		}
		sb.WriteString("\n--------------------")
	}

	if add := e.memory.SystemAddendum(); add != "" {
		sb.WriteString("\n\n")
		sb.WriteString(add)
	}
	return sb.String()
}
