package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
)

func TestChatCompleterReturnsTrimmedReply(t *testing.T) {
	temperature := float32(0.2)
	var gotInput []*schema.Message
	var gotOpts []model.Option

	chatModel := &fakeChatModel{generate: func(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
		gotInput = input
		gotOpts = opts
		return schema.AssistantMessage("  42 rows \n", nil), nil
	}}

	completer := ai.NewChatCompleter(chatModel, ai.CompletionOptions{Temperature: &temperature})
	reply, err := completer.Complete(context.Background(), []*schema.Message{schema.UserMessage("rows?")})

	require.NoError(t, err)
	assert.Equal(t, "42 rows", reply)
	require.Len(t, gotInput, 1)
	assert.Len(t, gotOpts, 1)

	applied := model.GetCommonOptions(nil, gotOpts...)
	require.NotNil(t, applied.Temperature)
	assert.Equal(t, temperature, *applied.Temperature)
}

func TestChatCompleterWrapsFailure(t *testing.T) {
	chatModel := &fakeChatModel{generate: func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
		return nil, errors.New("503 from upstream")
	}}

	_, err := ai.NewChatCompleter(chatModel, ai.CompletionOptions{}).Complete(context.Background(), nil)

	require.ErrorIs(t, err, ai.ErrCompletionFailed)
	assert.NotErrorIs(t, err, ai.ErrCompletionTimeout)
	assert.Contains(t, err.Error(), "503 from upstream")
}

func TestChatCompleterTimesOut(t *testing.T) {
	chatModel := &fakeChatModel{generate: func(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	_, err := ai.NewChatCompleter(chatModel, ai.CompletionOptions{Timeout: 10 * time.Millisecond}).Complete(context.Background(), nil)

	require.ErrorIs(t, err, ai.ErrCompletionTimeout)
	assert.ErrorIs(t, err, ai.ErrCompletionFailed)
}

func TestChatCompleterRejectsNilResponse(t *testing.T) {
	chatModel := &fakeChatModel{generate: func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
		return nil, nil
	}}

	_, err := ai.NewChatCompleter(chatModel, ai.CompletionOptions{}).Complete(context.Background(), nil)
	require.ErrorIs(t, err, ai.ErrCompletionFailed)
}

func TestAsCompletionError(t *testing.T) {
	assert.NoError(t, ai.AsCompletionError(nil))
	assert.ErrorIs(t, ai.AsCompletionError(errors.New("boom")), ai.ErrCompletionFailed)
	assert.ErrorIs(t, ai.AsCompletionError(context.DeadlineExceeded), ai.ErrCompletionTimeout)
	assert.Same(t, ai.ErrCompletionTimeout, ai.AsCompletionError(ai.ErrCompletionTimeout))
}
