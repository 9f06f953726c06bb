package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/csvsage/backend/internal/model/chat"
	"github.com/zhouzirui/csvsage/backend/pkg/log"
)

const (
	summarizerInstruction = "You are a helpful summarizer."
	summaryRequest        = "Summarize this conversation briefly:\n"
	summaryPrefix         = "Conversation summary: "
)

// Memory is the ordered, append-only turn log of one conversation. When the
// log grows past a word threshold it is collapsed into a single system turn.
type Memory struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewMemory returns an empty conversation log.
func NewMemory() *Memory {
	return &Memory{turns: make([]chat.Turn, 0, 16)}
}

// AppendUser records a user query.
func (m *Memory) AppendUser(content string) {
	m.append(chat.Turn{Role: chat.RoleUser, Content: content})
}

// AppendAssistant records a model reply.
func (m *Memory) AppendAssistant(content string) {
	m.append(chat.Turn{Role: chat.RoleAssistant, Content: content})
}

func (m *Memory) append(turn chat.Turn) {
	m.mu.Lock()
	m.turns = append(m.turns, turn)
	m.mu.Unlock()
}

// Turns returns a copy of the log in append order.
func (m *Memory) Turns() []chat.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make([]chat.Turn, len(m.turns))
	copy(copied, m.turns)
	return copied
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// WordCount returns the number of whitespace-separated words in the
// transcript form of the log.
func (m *Memory) WordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(strings.Fields(transcript(m.turns)))
}

// MaybeCompact summarizes the whole log through the completer once its word
// count exceeds threshold, replacing every turn with one system turn. A
// threshold of zero or less disables compaction. On completer failure the
// log is left untouched.
func (m *Memory) MaybeCompact(ctx context.Context, completer Completer, threshold int) (bool, error) {
	if threshold <= 0 {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	text := transcript(m.turns)
	words := len(strings.Fields(text))
	logger := log.FromCtx(ctx)
	if words <= threshold {
		logger.Debug().Int("words", words).Int("threshold", threshold).Msg("history within budget")
		return false, nil
	}

	summary, err := completer.Complete(ctx, []*schema.Message{
		schema.SystemMessage(summarizerInstruction),
		schema.UserMessage(summaryRequest + text),
	})
	if err != nil {
		return false, fmt.Errorf("failed to summarize history: %w", err)
	}

	logger.Info().
		Int("words", words).
		Int("threshold", threshold).
		Int("turns", len(m.turns)).
		Msg("compacted conversation history")

	m.turns = []chat.Turn{{Role: chat.RoleSystem, Content: summaryPrefix + strings.TrimSpace(summary)}}
	return true, nil
}

func transcript(turns []chat.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.String()
	}
	return strings.Join(lines, "\n")
}
