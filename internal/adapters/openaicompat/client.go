// Package openaicompat talks to any OpenAI-compatible endpoint, including
// Ollama's /v1 API, through the official openai-go client.
package openaicompat

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// placeholderKey is sent when no key is configured; local servers ignore it.
const placeholderKey = "ollama"

// Options configures both adapters.
type Options struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

func newClient(o Options) openai.Client {
	base := o.BaseURL
	if base == "" {
		base = "http://localhost:11434/v1/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	key := ""
	if o.APIKeyEnv != "" {
		key = strings.TrimSpace(os.Getenv(o.APIKeyEnv))
	}
	if key == "" {
		key = placeholderKey
	}

	opts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	return openai.NewClient(opts...)
}

// ChatAdapter implements ports.LLMService and ports.Completer.
type ChatAdapter struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewChatAdapter creates a chat adapter for o.Model.
func NewChatAdapter(o Options, temperature float64) *ChatAdapter {
	return &ChatAdapter{client: newClient(o), model: o.Model, temperature: temperature}
}

// Model returns the chat model name.
func (a *ChatAdapter) Model() string { return a.model }

func (a *ChatAdapter) params(messages []entities.ChatMessage) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case entities.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case entities.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.model),
		Messages:    msgs,
		Temperature: openai.Float(a.temperature),
	}
}

// Chat returns the first choice of a chat completion.
func (a *ChatAdapter) Chat(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.params(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream streams deltas of the first choice.
func (a *ChatAdapter) ChatStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(messages))
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("chat stream: %w", err)
	}

	ch := make(chan ports.StreamToken, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if c := chunk.Choices[0].Delta.Content; c != "" {
				ch <- ports.StreamToken{Content: c}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: fmt.Errorf("chat stream: %w", err)}
			return
		}
		ch <- ports.StreamToken{Done: true}
	}()
	return ch, nil
}

// Complete sends prompt as a single user message.
func (a *ChatAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	return a.Chat(ctx, []entities.ChatMessage{{Role: entities.RoleUser, Content: prompt}})
}

// EmbeddingAdapter implements ports.EmbeddingService.
type EmbeddingAdapter struct {
	client openai.Client
	model  string
}

// NewEmbeddingAdapter creates an embedding adapter for o.Model.
func NewEmbeddingAdapter(o Options) *EmbeddingAdapter {
	return &EmbeddingAdapter{client: newClient(o), model: o.Model}
}

// Model returns the embedding model name.
func (a *EmbeddingAdapter) Model() string { return a.model }

// Embed embeds one text.
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request, ordered by the returned index.
func (a *EmbeddingAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(a.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", i)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	logging.Debugf("embedded %d texts with %s", len(texts), a.model)
	return out, nil
}
