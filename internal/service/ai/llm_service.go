package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var (
	// ErrCompletionFailed reports an upstream completion error.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrCompletionTimeout reports a completion that exceeded its deadline.
	// It matches ErrCompletionFailed under errors.Is.
	ErrCompletionTimeout = fmt.Errorf("%w: deadline exceeded", ErrCompletionFailed)
)

// Completer is the black-box text completion service.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// CompletionOptions tunes each call made by a ChatCompleter.
type CompletionOptions struct {
	Timeout     time.Duration
	Temperature *float32
	MaxTokens   *int
}

// ChatCompleter adapts an eino chat model to Completer. Each call is bounded
// by the configured timeout and issued once.
type ChatCompleter struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
	opts      []model.Option
}

// NewChatCompleter wraps chatModel.
func NewChatCompleter(chatModel model.BaseChatModel, options CompletionOptions) *ChatCompleter {
	var opts []model.Option
	if options.Temperature != nil {
		opts = append(opts, model.WithTemperature(*options.Temperature))
	}
	if options.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*options.MaxTokens))
	}
	return &ChatCompleter{
		chatModel: chatModel,
		timeout:   options.Timeout,
		opts:      opts,
	}
}

// Complete sends messages to the model and returns the trimmed reply.
func (c *ChatCompleter) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	response, err := c.chatModel.Generate(ctx, messages, c.opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if response == nil {
		return "", fmt.Errorf("%w: empty response", ErrCompletionFailed)
	}
	return strings.TrimSpace(response.Content), nil
}

// AsCompletionError classifies err as a completion failure, keeping
// timeouts distinguishable.
func AsCompletionError(err error) error {
	if err == nil || errors.Is(err, ErrCompletionFailed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
}
