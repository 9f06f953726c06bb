package ai_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/csvsage/backend/internal/model/chat"
	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
)

func sampleContext(t *testing.T) ai.PromptContext {
	ds := parse(t, "units,price\n1,2\n2,4\n")
	return ai.BuildContext(ds, ai.Summarize(ds))
}

func TestAssembleOrdersMessages(t *testing.T) {
	history := []chat.Turn{
		{Role: chat.RoleSystem, Content: "Conversation summary: earlier talk"},
		{Role: chat.RoleUser, Content: "first"},
		{Role: chat.RoleAssistant, Content: "reply"},
		{Role: chat.RoleUser, Content: "first"},
	}

	messages, err := ai.NewAssembler("", "").Assemble(context.Background(), sampleContext(t), history, "what is the mean price?")
	require.NoError(t, err)
	require.Len(t, messages, len(history)+2)

	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, ai.DefaultSystemInstruction, messages[0].Content)

	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}
	for i, turn := range history {
		assert.Equal(t, wantRoles[i], messages[i+1].Role)
		assert.Equal(t, turn.Content, messages[i+1].Content)
	}

	last := messages[len(messages)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Contains(t, last.Content, "User Query:\nwhat is the mean price?")
	assert.Contains(t, last.Content, `"schema":{"columns":["units","price"],"rows":2}`)
	assert.NotContains(t, last.Content, "{query}")
}

func TestAssembleWithEmptyHistory(t *testing.T) {
	messages, err := ai.NewAssembler("", "").Assemble(context.Background(), sampleContext(t), nil, "hi")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, schema.User, messages[1].Role)
}

func TestAssembleUnknownPlaceholderFails(t *testing.T) {
	asm := ai.NewAssembler("", "Context: {context}\nTable: {table}\nQ: {query}")

	_, err := asm.Assemble(context.Background(), sampleContext(t), nil, "hi")
	require.ErrorIs(t, err, ai.ErrTemplateRender)
	assert.Contains(t, err.Error(), "{table}")
	require.ErrorIs(t, asm.Validate(), ai.ErrTemplateRender)
}

func TestAssembleUnusedPlaceholderIsAllowed(t *testing.T) {
	messages, err := ai.NewAssembler("be brief {ok}", "Question: {query}").Assemble(context.Background(), sampleContext(t), nil, "count rows")
	require.NoError(t, err)
	assert.Equal(t, "be brief {ok}", messages[0].Content)
	assert.Equal(t, "Question: count rows", messages[1].Content)
}

func TestValidateRejectsMalformedTemplates(t *testing.T) {
	for _, tpl := range []string{"open {query", "close }", "{}", "Q: { query }", "{context }"} {
		err := ai.NewAssembler("", tpl).Validate()
		assert.ErrorIs(t, err, ai.ErrTemplateRender, tpl)
	}
	assert.NoError(t, ai.NewAssembler("", "literal {{braces}} and {query}").Validate())
	assert.True(t, strings.Contains(ai.DefaultInstructionTemplate, "{context}"))
}

func TestAssembleRejectsPaddedPlaceholder(t *testing.T) {
	asm := ai.NewAssembler("", "Context: {context}\nQ: { query }")
	require.ErrorIs(t, asm.Validate(), ai.ErrTemplateRender)

	_, err := asm.Assemble(context.Background(), sampleContext(t), nil, "hi")
	require.ErrorIs(t, err, ai.ErrTemplateRender)
	assert.Contains(t, err.Error(), "{ query }")
}
