package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/storyweft/novelmap/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

// classify wraps an Ollama API error into a ServiceError. Ollama surfaces
// HTTP failures as api.StatusError; anything without a status is treated as
// a network-level failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if ai.TransientStatus(statusErr.StatusCode) || statusErr.StatusCode == http.StatusServiceUnavailable {
			return ai.NewTransientError("chat completion failed", err)
		}
		return ai.NewTerminalError("chat completion failed", err)
	}
	return ai.NewTransientError("chat request failed", err)
}

// promptContextTokens estimates the context window needed for a prompt so
// that long novel segments are not silently truncated by the model's
// default num_ctx.
func promptContextTokens(prompt string, systemPrompts []string) (int, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return 0, err
	}
	tokens := 200
	tokens += len(enc.Encode(prompt, nil, nil))
	for _, sp := range systemPrompts {
		tokens += len(enc.Encode(sp, nil, nil))
	}
	return tokens, nil
}

func (c *NovelOllamaClient) chat(
	ctx context.Context,
	req *api.ChatRequest,
) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", classify(err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

func buildMessages(prompt string, systemPrompts []string) []api.Message {
	msgs := make([]api.Message, 0, len(systemPrompts)+1)
	for _, sp := range systemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	return append(msgs, api.Message{Role: "user", Content: prompt})
}

// resolveOptions applies opts over the defaults and fills in the model:
// an explicit WithModel wins, otherwise the outline model for outline
// requests and the analysis model for everything else.
func (c *NovelOllamaClient) resolveOptions(defaults ai.GenerateOptions, opts []ai.GenerateOption) ai.GenerateOptions {
	options := defaults
	for _, o := range opts {
		o(&options)
	}
	if options.Model == "" {
		if options.Outline {
			options.Model = c.outlineModel
		} else {
			options.Model = c.analysisModel
		}
	}
	return options
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *NovelOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := c.resolveOptions(ai.GenerateOptions{Temperature: 0.3}, opts)

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: buildMessages(prompt, options.SystemPrompts),
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	tokens, err := promptContextTokens(prompt, options.SystemPrompts)
	if err != nil {
		return "", err
	}
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}

	return c.chat(ctx, req)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *NovelOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}

	options := c.resolveOptions(ai.GenerateOptions{Temperature: 0.1}, opts)

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: buildMessages(prompt, options.SystemPrompts),
		Stream:   &stream,
		Format:   json.RawMessage(formatBytes),
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	tokens, err := promptContextTokens(prompt, options.SystemPrompts)
	if err != nil {
		return err
	}
	if tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}

	content, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	if content == "" {
		return ai.NewTerminalError("empty response from model", nil)
	}
	return ai.UnmarshalFlexible(content, out)
}
