package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/csvsage/backend/internal/model/chat"
)

// ErrTemplateRender reports an instruction template the assembler cannot fill.
var ErrTemplateRender = errors.New("template render failed")

// DefaultSystemInstruction opens every query prompt.
const DefaultSystemInstruction = "You are a data analysis assistant. Answer based on CSV context."

// DefaultInstructionTemplate is the final user message. It accepts the
// {context} and {query} placeholders.
const DefaultInstructionTemplate = `
You are a professional data analyst. You are given a CSV dataset context and a user query.

Steps:
1. Analyze the dataset and figure out what information is most relevant.
2. Think step by step about what the query is asking.
3. Provide a final clear answer that is useful and well-structured.

Only output the final answer, not your reasoning.

Dataset Context:
{context}

User Query:
{query}

Final Answer:
`

const (
	keyContext = "context"
	keyQuery   = "query"
	keyHistory = "history"
)

var knownPlaceholders = map[string]struct{}{
	keyContext: {},
	keyQuery:   {},
}

// Assembler builds the message sequence for a query: the system instruction,
// the conversation turns in order, then the rendered instruction template.
type Assembler struct {
	system   string
	template string
}

// NewAssembler returns an assembler. Empty arguments select the defaults.
func NewAssembler(system, template string) *Assembler {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemInstruction
	}
	if strings.TrimSpace(template) == "" {
		template = DefaultInstructionTemplate
	}
	return &Assembler{system: system, template: template}
}

// Validate checks the instruction template only references placeholders the
// assembler supplies.
func (a *Assembler) Validate() error {
	names, err := placeholders(a.template)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := knownPlaceholders[name]; !ok {
			return fmt.Errorf("%w: unknown placeholder {%s}", ErrTemplateRender, name)
		}
	}
	return nil
}

// Assemble renders the final message sequence. It performs no I/O.
func (a *Assembler) Assemble(ctx context.Context, pc PromptContext, history []chat.Turn, query string) ([]*schema.Message, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	rendered, err := pc.Render()
	if err != nil {
		return nil, err
	}

	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(escapeBraces(a.system)),
		schema.MessagesPlaceholder(keyHistory, true),
		schema.UserMessage(a.template),
	)

	messages, err := tpl.Format(ctx, map[string]any{
		keyContext: rendered,
		keyQuery:   query,
		keyHistory: toSchemaMessages(history),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return messages, nil
}

func toSchemaMessages(turns []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(t.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		default:
			messages = append(messages, schema.SystemMessage(t.Content))
		}
	}
	return messages
}

// placeholders lists the field names referenced by a brace template,
// untrimmed, as the formatter looks them up. Doubled braces are literals.
func placeholders(tpl string) ([]string, error) {
	var names []string
	for i := 0; i < len(tpl); i++ {
		switch tpl[i] {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", ErrTemplateRender, i)
			}
			field := tpl[i+1 : i+1+end]
			if k := strings.IndexAny(field, ":!"); k >= 0 {
				field = field[:k]
			}
			names = append(names, field)
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				i++
				continue
			}
			return nil, fmt.Errorf("%w: unmatched '}' at offset %d", ErrTemplateRender, i)
		}
	}
	return names, nil
}

func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}
