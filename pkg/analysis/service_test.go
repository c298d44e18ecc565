package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/storyweft/novelmap/pkg/ai"
	"github.com/storyweft/novelmap/pkg/common"
)

type fakeAIClient struct {
	completion string
	lastOpts   ai.GenerateOptions
}

func (f *fakeAIClient) apply(opts []ai.GenerateOption) {
	options := ai.GenerateOptions{}
	for _, o := range opts {
		o(&options)
	}
	f.lastOpts = options
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.apply(opts)
	return f.completion, nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.apply(opts)
	return nil
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testService(client ai.NovelAIClient) *AIService {
	return NewAIService(NewAIServiceParams{
		Client:    client,
		MaxTries:  1,
		BaseDelay: time.Millisecond,
	})
}

func TestAnalyzeTargetsAnalysisModel(t *testing.T) {
	client := &fakeAIClient{}
	svc := testService(client)

	if _, err := svc.Analyze(context.Background(), "正文", common.Settings{}, ""); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if client.lastOpts.Outline {
		t.Fatal("expected analysis request not to target the outline model")
	}
	if client.lastOpts.Model != "" {
		t.Fatalf("expected no explicit model, got %q", client.lastOpts.Model)
	}
}

func TestOutlineChunkTargetsOutlineModel(t *testing.T) {
	client := &fakeAIClient{completion: `[{"title":"第一章","summary":"开场"}]`}
	svc := testService(client)

	outlines, err := svc.OutlineChunk(context.Background(), "正文", common.Settings{})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(outlines) != 1 {
		t.Fatalf("expected 1 outline, got %d", len(outlines))
	}
	if !client.lastOpts.Outline {
		t.Fatal("expected outline request to target the outline model")
	}
}

func TestSummarizeSectionTargetsOutlineModel(t *testing.T) {
	client := &fakeAIClient{completion: "本章摘要。"}
	svc := testService(client)

	summary, err := svc.SummarizeSection(context.Background(), "第一章", "正文", common.Settings{})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if summary != "本章摘要。" {
		t.Fatalf("expected summary, got %q", summary)
	}
	if !client.lastOpts.Outline {
		t.Fatal("expected summarize request to target the outline model")
	}
}

func TestSettingsModelOverridesOutlineDefault(t *testing.T) {
	client := &fakeAIClient{completion: `[]`}
	svc := testService(client)

	settings := common.Settings{Model: "custom-model"}
	if _, err := svc.OutlineChunk(context.Background(), "正文", settings); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if client.lastOpts.Model != "custom-model" {
		t.Fatalf("expected explicit model to win, got %q", client.lastOpts.Model)
	}
}
