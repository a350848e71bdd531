// Package llm provides the native Ollama LLM adapter.
// It implements ports.LLMService over /api/chat and ports.Completer over
// /api/generate.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
)

// OllamaLLMAdapter talks to a local Ollama server.
type OllamaLLMAdapter struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter. A zero timeout
// means 300s; generation on large models is slow.
func NewOllamaLLMAdapter(baseURL, model string, temperature float64, timeout time.Duration) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "gemma3:27b"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaLLMAdapter{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Model returns the model name requests are sent to.
func (a *OllamaLLMAdapter) Model() string { return a.model }

type options struct {
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Chat sends the conversation and waits for the full reply.
func (a *OllamaLLMAdapter) Chat(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	resp, err := a.post(ctx, "/api/chat", a.chatRequest(messages, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("Ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}

// ChatStream streams the reply as NDJSON chunks. The channel is closed after
// a Done token or an error token.
func (a *OllamaLLMAdapter) ChatStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	resp, err := a.post(ctx, "/api/chat", a.chatRequest(messages, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil {
				ch <- ports.StreamToken{Done: true, Error: ctx.Err()}
				return
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // skip malformed lines
			}
			if chunk.Error != "" {
				ch <- ports.StreamToken{Done: true, Error: fmt.Errorf("Ollama: %s", chunk.Error)}
				return
			}

			ch <- ports.StreamToken{Content: chunk.Message.Content, Done: chunk.Done}
			if chunk.Done {
				return
			}
		}

		err := scanner.Err()
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		ch <- ports.StreamToken{Done: true, Error: err}
	}()

	return ch, nil
}

// Complete runs a single prompt through /api/generate.
func (a *OllamaLLMAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.post(ctx, "/api/generate", generateRequest{
		Model:   a.model,
		Prompt:  prompt,
		Options: options{Temperature: a.temperature},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("Ollama: %s", out.Error)
	}
	return out.Response, nil
}

func (a *OllamaLLMAdapter) chatRequest(messages []entities.ChatMessage, stream bool) chatRequest {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return chatRequest{
		Model:    a.model,
		Messages: msgs,
		Stream:   stream,
		Options:  options{Temperature: a.temperature},
	}
}

// post sends a JSON body and returns the response if it is 200 OK.
// The caller closes the body.
func (a *OllamaLLMAdapter) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}
