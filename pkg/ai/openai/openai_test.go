package openai

import (
	"testing"

	"github.com/storyweft/novelmap/pkg/ai"
)

func TestResolveOptionsModelSelection(t *testing.T) {
	client := NewNovelOpenAIClient(NewNovelOpenAIClientParams{
		AnalysisModel: "analysis-model",
		OutlineModel:  "outline-model",
	})

	tests := []struct {
		name     string
		opts     []ai.GenerateOption
		expected string
	}{
		{"defaults to analysis model", nil, "analysis-model"},
		{"outline requests use outline model", []ai.GenerateOption{ai.ForOutline()}, "outline-model"},
		{"explicit model wins", []ai.GenerateOption{ai.ForOutline(), ai.WithModel("custom")}, "custom"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			options := client.resolveOptions(ai.GenerateOptions{Temperature: 0.3}, test.opts)
			if options.Model != test.expected {
				t.Fatalf("expected model %q, got %q", test.expected, options.Model)
			}
		})
	}
}

func TestResolveOptionsOutlineModelFallsBackToAnalysis(t *testing.T) {
	client := NewNovelOpenAIClient(NewNovelOpenAIClientParams{
		AnalysisModel: "analysis-model",
	})

	options := client.resolveOptions(ai.GenerateOptions{}, []ai.GenerateOption{ai.ForOutline()})
	if options.Model != "analysis-model" {
		t.Fatalf("expected fallback to analysis model, got %q", options.Model)
	}
}
