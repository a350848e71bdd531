package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// SessionID is the fixed conversation id.
const SessionID = "chat_history"

// BufferMemory keeps the most recent turns within a token budget.
type BufferMemory struct {
	limit    int
	messages []entities.ChatMessage
	tokens   int
	onEvict  func(ctx context.Context, evicted []entities.ChatMessage)
}

// NewBufferMemory creates a sliding-window memory of tokenLimit tokens.
func NewBufferMemory(tokenLimit int) *BufferMemory {
	if tokenLimit <= 0 {
		tokenLimit = 3000
	}
	return &BufferMemory{limit: tokenLimit}
}

// Messages returns a copy of the retained turns, oldest first.
func (m *BufferMemory) Messages() []entities.ChatMessage {
	out := make([]entities.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Put appends msg and evicts the oldest turns until the budget holds.
// The newest turn is never evicted.
func (m *BufferMemory) Put(ctx context.Context, msg entities.ChatMessage) error {
	m.messages = append(m.messages, msg)
	m.tokens += CountTokens(msg.Content)

	var evicted []entities.ChatMessage
	for len(m.messages) > 1 && m.tokens > m.limit {
		evicted = append(evicted, m.messages[0])
		m.tokens -= CountTokens(m.messages[0].Content)
		m.messages = m.messages[1:]
	}
	if len(evicted) > 0 && m.onEvict != nil {
		m.onEvict(ctx, evicted)
	}
	return nil
}

// Tokens returns the approximate size of the retained history.
func (m *BufferMemory) Tokens() int { return m.tokens }

// SystemAddendum is empty for the plain buffer.
func (m *BufferMemory) SystemAddendum() string { return "" }

// SessionID identifies the conversation.
func (m *BufferMemory) SessionID() string { return SessionID }

const factPrompt = `Extract the important, self-contained facts from the conversation below.
Return one fact per line, each starting with "- ". Return nothing else.
If there are no facts worth keeping, return an empty answer.

Conversation:
%s`

// FactMemory is a BufferMemory that distills evicted turns into facts
// and offers them to the system prompt.
type FactMemory struct {
	*BufferMemory
	completer ports.Completer
	maxFacts  int
	facts     []string
}

// NewFactMemory creates a fact-extracting memory.
func NewFactMemory(tokenLimit, maxFacts int, completer ports.Completer) *FactMemory {
	if maxFacts <= 0 {
		maxFacts = 50
	}
	fm := &FactMemory{
		BufferMemory: NewBufferMemory(tokenLimit),
		completer:    completer,
		maxFacts:     maxFacts,
	}
	fm.BufferMemory.onEvict = fm.extract
	return fm
}

// Facts returns the retained facts, oldest first.
func (m *FactMemory) Facts() []string {
	out := make([]string, len(m.facts))
	copy(out, m.facts)
	return out
}

// SystemAddendum lists the known facts.
func (m *FactMemory) SystemAddendum() string {
	if len(m.facts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Facts from earlier in this conversation:\n")
	for _, f := range m.facts {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// extract asks the model for facts; failures only cost the facts.
func (m *FactMemory) extract(ctx context.Context, evicted []entities.ChatMessage) {
	var transcript strings.Builder
	for _, msg := range evicted {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	out, err := m.completer.Complete(ctx, fmt.Sprintf(factPrompt, transcript.String()))
	if err != nil {
		logging.Warnf("fact extraction failed: %v", err)
		return
	}

	seen := make(map[string]bool, len(m.facts))
	for _, f := range m.facts {
		seen[f] = true
	}
	for _, fact := range parseFacts(out) {
		if seen[fact] {
			continue
		}
		seen[fact] = true
		m.facts = append(m.facts, fact)
	}
	if len(m.facts) > m.maxFacts {
		m.facts = m.facts[len(m.facts)-m.maxFacts:]
	}
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseFacts reads bullet or numbered lines; bare lines count too.
func parseFacts(s string) []string {
	var facts []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line != "" {
			facts = append(facts, line)
		}
	}
	return facts
}

// NewChatMemory resolves the configured strategy. Fact extraction needs the
// Completer capability; without it the plain buffer is used.
func NewChatMemory(useFacts bool, llm ports.LLMService, tokenLimit, maxFacts int) ports.ChatMemory {
	if useFacts {
		if c, ok := llm.(ports.Completer); ok {
			return NewFactMemory(tokenLimit, maxFacts, c)
		}
		logging.Warnf("fact memory needs a completion-capable model backend; using basic memory")
	}
	return NewBufferMemory(tokenLimit)
}
