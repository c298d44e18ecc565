package openai

import (
	"context"
	"errors"
	"time"

	"github.com/storyweft/novelmap/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// classify wraps an OpenAI API error into a ServiceError with the transient
// flag derived from the HTTP status, never from the error text.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if ai.TransientStatus(apierr.StatusCode) {
			return ai.NewTransientError("chat completion failed", err)
		}
		return ai.NewTerminalError("chat completion failed", err)
	}
	// No structured status: treat as a network-level failure.
	return ai.NewTransientError("chat request failed", err)
}

// resolveOptions applies opts over the defaults and fills in the model:
// an explicit WithModel wins, otherwise the outline model for outline
// requests and the analysis model for everything else.
func (c *NovelOpenAIClient) resolveOptions(defaults ai.GenerateOptions, opts []ai.GenerateOption) ai.GenerateOptions {
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

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
func (c *NovelOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := c.resolveOptions(ai.GenerateOptions{Temperature: 0.3}, opts)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", classify(err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return "", ai.NewTerminalError("no choices in response from model", nil)
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateCompletionWithFormat sends a prompt to the chat model and
// unmarshals the response into out, using a JSON schema generated from out's
// type to enforce structure.
func (c *NovelOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	schema := ai.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	options := c.resolveOptions(ai.GenerateOptions{Temperature: 0.1}, opts)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return classify(err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return ai.NewTerminalError("no choices in response from model", nil)
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return ai.NewTerminalError("empty response from model (finish_reason: "+string(response.Choices[0].FinishReason)+")", nil)
	}
	return ai.UnmarshalFlexible(message, out)
}
