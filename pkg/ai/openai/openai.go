package openai

import (
	"sync"

	"github.com/storyweft/novelmap/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// NovelOpenAIClient implements ai.NovelAIClient against the OpenAI API or
// any OpenAI-compatible endpoint.
//
// A NovelOpenAIClient should be created using NewNovelOpenAIClient.
type NovelOpenAIClient struct {
	analysisModel string
	outlineModel  string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewNovelOpenAIClientParams defines the configuration parameters for
// creating a new NovelOpenAIClient. ChatURL may be empty to use the default
// OpenAI endpoint.
type NewNovelOpenAIClientParams struct {
	AnalysisModel string
	OutlineModel  string

	ChatURL string
	ChatKey string
}

// NewNovelOpenAIClient creates a new OpenAI-backed AI client configured with
// the provided parameters.
func NewNovelOpenAIClient(params NewNovelOpenAIClientParams) *NovelOpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(params.ChatKey)}
	if params.ChatURL != "" {
		opts = append(opts, option.WithBaseURL(params.ChatURL))
	}
	client := openai.NewClient(opts...)

	outlineModel := params.OutlineModel
	if outlineModel == "" {
		outlineModel = params.AnalysisModel
	}

	return &NovelOpenAIClient{
		analysisModel: params.AnalysisModel,
		outlineModel:  outlineModel,
		chatURL:       params.ChatURL,
		chatKey:       params.ChatKey,
		ChatClient:    &client,
	}
}

func (c *NovelOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *NovelOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the usage metrics accumulated since the last reset.
func (c *NovelOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
